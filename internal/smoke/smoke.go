// Package smoke implements the smoke-test echo handler from
// _examples/original_source/0_smoke_test.c: the smallest possible
// handler that exercises server.Serve end to end.
package smoke

import "github.com/halvarsen/protoharbor/internal/server"

// Handler echoes every byte read back to the client until the connection
// closes.
func Handler(c *server.Conn) {
	buf := make([]byte, 512)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			if _, werr := c.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
