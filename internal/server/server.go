// Package server implements the three interchangeable I/O dispatch modes
// described in spec.md §4.1: a pre-forked worker pool over blocking
// accept, a single-threaded readiness-multiplexed loop, and a datagram
// receive loop, all behind one Config surface — ported from
// _examples/original_source/server.h's _serve, readch, and read_until.
package server

import (
	"fmt"
	"net"
	"time"

	"github.com/halvarsen/protoharbor/internal/xlog"
)

// pollInterval bounds how long the multiplexed loop's listener Accept and
// each connection's readiness Peek block before the loop re-scans the
// whole table. It is the Go-idiomatic analogue of a short select() timeout
// — the original C source used a real select(2) over all descriptors;
// Go's net package does not expose raw fd readiness without dropping to
// golang.org/x/sys/unix, so this dispatcher uses short deadlines on each
// connection instead.
const pollInterval = 20 * time.Millisecond

// acceptRetryDelay is how long a threaded worker pauses after a failed
// Accept before retrying, matching sleep(1) in _server_worker.
const acceptRetryDelay = time.Second

// Serve starts the dispatcher described by cfg and blocks until the
// listening socket can no longer be created (a bind/listen failure is
// fatal, per spec.md §7). Per-iteration accept/recv errors are logged and
// the loop continues.
func Serve(cfg Config) error {
	cfg = cfg.withDefaults()

	switch cfg.Mode {
	case ModeDatagram:
		return serveDatagram(cfg)
	case ModeMultiplexed:
		return serveMultiplexed(cfg)
	default:
		return serveThreaded(cfg)
	}
}

func listenTCP(cfg Config) (*net.TCPListener, error) {
	addr := &net.TCPAddr{Port: cfg.Port}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind failed on port %d: %w", cfg.Port, err)
	}
	return ln, nil
}

// serveThreaded spawns cfg.Threads worker goroutines, each blocking on
// Accept and invoking cfg.Handler once per connection, closing the socket
// on return — matching _server_worker's loop exactly.
func serveThreaded(cfg Config) error {
	ln, err := listenTCP(cfg)
	if err != nil {
		return err
	}
	defer ln.Close()

	xlog.Info("threaded dispatcher listening on :%d (%d workers, backlog %d)",
		cfg.Port, cfg.Threads, cfg.Backlog)

	done := make(chan struct{})
	for i := 0; i < cfg.Threads; i++ {
		go threadedWorker(ln, cfg.Handler, done)
	}
	<-done // workers never signal completion in normal operation (no graceful shutdown, per Non-goals)
	return nil
}

func threadedWorker(ln *net.TCPListener, handler Handler, done chan struct{}) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			xlog.Error("worker accept failed: %v", err)
			time.Sleep(acceptRetryDelay)
			continue
		}
		c := newConn(nc)
		func() {
			defer c.Close()
			handler(c)
		}()
	}
}

// serveMultiplexed runs a single goroutine over a fixed-size connection
// table, polling listener and connection readiness with short deadlines
// (see pollInterval). On listen readiness it accepts into the first free
// slot and invokes the handler once to let it emit a greeting; for every
// other ready connection it invokes the handler again. The handler signals
// close by calling Conn.Close, which frees the slot on the next sweep.
func serveMultiplexed(cfg Config) error {
	ln, err := listenTCP(cfg)
	if err != nil {
		return err
	}
	defer ln.Close()

	table := newConnTable(maxConnections)
	xlog.Info("multiplexed dispatcher listening on :%d (table size %d)", cfg.Port, maxConnections)

	for {
		ln.SetDeadline(time.Now().Add(pollInterval))
		nc, err := ln.Accept()
		if err == nil {
			c, ok := table.acquire(nc)
			if !ok {
				xlog.Warn("connection table full, rejecting new connection from %s", nc.RemoteAddr())
				nc.Close()
			} else {
				cfg.Handler(c) // initial invocation lets the handler greet
				if c.IsClosed() {
					table.release(c)
				}
			}
		} else if !isTimeout(err) {
			xlog.Error("multiplexed accept error: %v", err)
		}

		for _, c := range table.live() {
			if pollReadable(c) {
				cfg.Handler(c)
			}
			if c.IsClosed() {
				table.release(c)
			}
		}
	}
}

// pollReadable peeks one byte with a near-zero deadline to decide whether
// c has data (or an error, e.g. peer EOF) ready for the handler.
func pollReadable(c *Conn) bool {
	c.SetReadDeadline(time.Now().Add(time.Millisecond))
	_, err := c.reader.Peek(1)
	c.SetReadDeadline(time.Time{})
	if err == nil {
		return true
	}
	return !isTimeout(err)
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// serveDatagram runs a single-threaded UDP receive loop, invoking
// cfg.DgramHandler synchronously for each packet — matching the original's
// recvfrom loop. No per-peer state is retained by the dispatcher itself.
func serveDatagram(cfg Config) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.Port})
	if err != nil {
		return fmt.Errorf("bind failed on port %d: %w", cfg.Port, err)
	}
	defer conn.Close()

	xlog.Info("datagram dispatcher listening on :%d", cfg.Port)

	buf := make([]byte, 1024)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			xlog.Error("recvfrom error: %v", err)
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		cfg.DgramHandler(&Datagram{Socket: conn, Data: payload, Addr: addr})
	}
}
