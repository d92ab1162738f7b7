package server

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/halvarsen/protoharbor/internal/xlog"
)

// Conn is a per-connection descriptor handed to a Handler. In threaded
// mode it wraps one accepted connection for the lifetime of a single
// Handler call (which may block freely). In multiplexed mode it is reused
// across many short Handler invocations as the connection becomes
// readable; Data holds whatever per-connection state the handler attaches
// on the first call.
//
// Per REDESIGN FLAGS (spec.md §9), a Conn is allocated fresh on accept and
// discarded on Close — the dispatcher never zeroes and reuses one.
type Conn struct {
	netConn net.Conn
	reader  *bufio.Reader

	// Data is opaque per-connection scratch the handler may populate on
	// its first invocation and read back on subsequent ones.
	Data any

	mu     sync.Mutex
	closed bool

	table *connTable
	slot  int
}

func newConn(nc net.Conn) *Conn {
	xlog.Stats.AddConn()
	return &Conn{
		netConn: nc,
		reader:  bufio.NewReader(nc),
		slot:    -1,
	}
}

// NewConn wraps an already-established net.Conn as a dispatcher-style Conn,
// for protocol handlers exercised directly against a net.Pipe in tests
// without going through Serve.
func NewConn(nc net.Conn) *Conn { return newConn(nc) }

// Read implements io.Reader, reading through the connection's buffered
// reader so Peek-based readiness checks and ordinary reads stay consistent.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	if n > 0 {
		xlog.Stats.AddIn(n)
	}
	return n, err
}

// Write implements io.Writer.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.netConn.Write(p)
	if n > 0 {
		xlog.Stats.AddOut(n)
	}
	return n, err
}

// Reader exposes the buffered reader directly for protocols that need
// ReadUntil or Peek.
func (c *Conn) Reader() *bufio.Reader { return c.reader }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// SetReadDeadline forwards to the underlying net.Conn, used by the
// multiplexed loop's readiness poll and by handlers that need to
// interleave blocking reads with periodic work (e.g. heartbeats).
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.netConn.SetReadDeadline(t)
}

// SetWriteDeadline forwards to the underlying net.Conn, used by handlers
// that enforce a send timeout (e.g. Job Centre's 60s SO_SNDTIMEO).
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.netConn.SetWriteDeadline(t)
}

// Close marks the connection closed and closes the socket immediately, in
// every mode. In multiplexed mode it is also the "set descriptor to 0"
// signal from spec.md §3 — the dispatcher notices on its next sweep and
// frees the slot.
func (c *Conn) Close() error {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if already {
		return nil
	}
	xlog.Stats.RemoveConn()
	return c.netConn.Close()
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// connTable is the multiplexed mode's fixed-size connection table plus the
// peer-iteration primitive used for broadcast (spec.md §4.1).
type connTable struct {
	mu    sync.Mutex
	slots []*Conn // nil entry == free slot
}

func newConnTable(size int) *connTable {
	return &connTable{slots: make([]*Conn, size)}
}

// acquire finds a free slot for nc, or returns false if the table is full.
func (t *connTable) acquire(nc net.Conn) (*Conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.slots {
		if s == nil {
			c := newConn(nc)
			c.table = t
			c.slot = i
			t.slots[i] = c
			return c, true
		}
	}
	return nil, false
}

// release frees c's slot so it can be reused by a future accept.
func (t *connTable) release(c *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.slot >= 0 && c.slot < len(t.slots) && t.slots[c.slot] == c {
		t.slots[c.slot] = nil
	}
}

// live returns a snapshot of all currently occupied connections.
func (t *connTable) live() []*Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Conn, 0, len(t.slots))
	for _, s := range t.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// ForEachOther invokes fn for every live connection other than exclude.
// This is the "broadcast" primitive spec.md §4.1 calls for, letting a
// handler iterate peers and their per-connection Data.
func (c *Conn) ForEachOther(fn func(peer *Conn)) {
	if c.table == nil {
		return
	}
	for _, peer := range c.table.live() {
		if peer != c {
			fn(peer)
		}
	}
}
