package lrcp

import (
	"net"
	"sync"
	"time"

	"github.com/halvarsen/protoharbor/internal/server"
	"github.com/halvarsen/protoharbor/internal/xlog"
)

// sweepInterval is how often the background task re-scans all sessions for
// retransmission and expiry. The source scans in a tight loop with a 1ms
// per-session sleep; a fixed ticker is equivalent and cheaper.
const sweepInterval = 50 * time.Millisecond

// App is a per-session application coroutine, spawned once per connected
// session and handed blocking GetChar/PutChar access to its stream.
type App func(io *Session)

// Engine owns the LRCP session table and the background retransmit/expiry
// sweep — "one thread for datagram ingest, one background thread for
// retransmission/expiry" per spec.md §7.
type Engine struct {
	mu       sync.Mutex
	sessions map[uint32]*Session
	app      App

	socketMu sync.RWMutex
	socket   *net.UDPConn
}

// NewEngine constructs an Engine whose sessions each run app as their
// application coroutine, and starts the retransmit/expiry sweep.
func NewEngine(app App) *Engine {
	e := &Engine{sessions: make(map[uint32]*Session), app: app}
	go e.sweepLoop()
	return e
}

// Handler adapts Engine to server.DatagramHandler for the datagram
// dispatcher mode.
func (e *Engine) Handler() server.DatagramHandler {
	return e.HandleDatagram
}

// HandleDatagram processes one inbound LRCP datagram per spec.md §4.3.
func (e *Engine) HandleDatagram(pkt *server.Datagram) {
	e.socketMu.Lock()
	e.socket = pkt.Socket
	e.socketMu.Unlock()

	fr, ok := parseFrame(pkt.Data)
	if !ok {
		return // malformed or oversized: silently dropped
	}

	e.mu.Lock()
	sess, exists := e.sessions[fr.key]
	e.mu.Unlock()

	if fr.kind != cmdConnect && !exists {
		pkt.Reply(closeFrame(fr.key))
		return
	}

	switch fr.kind {
	case cmdConnect:
		if exists {
			sess.touch()
			pkt.Reply(connectAck(fr.key, sess.ackPosition()))
			return
		}
		sess = newSession(fr.key, pkt.Addr)
		e.mu.Lock()
		e.sessions[fr.key] = sess
		e.mu.Unlock()
		xlog.Info("lrcp: session %d connected from %s", fr.key, pkt.Addr)
		go e.app(sess)
		pkt.Reply(connectAck(fr.key, sess.ackPosition()))

	case cmdData:
		sess.touch()
		if ack := sess.handleData(fr.pos, fr.data); ack != nil {
			pkt.Reply(ack)
		}

	case cmdAck:
		sess.touch()
		if misbehaving := sess.handleAck(fr.pos); misbehaving {
			pkt.Reply(closeFrame(fr.key))
			e.remove(fr.key)
		}

	case cmdClose:
		pkt.Reply(closeFrame(fr.key))
		e.remove(fr.key)
	}
}

func (e *Engine) remove(key uint32) {
	e.mu.Lock()
	sess, ok := e.sessions[key]
	if ok {
		delete(e.sessions, key)
	}
	e.mu.Unlock()
	if ok {
		sess.destroy()
	}
}

func (e *Engine) snapshot() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	return out
}

func (e *Engine) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		for _, sess := range e.snapshot() {
			expired := sess.sweep(func(b []byte) {
				e.sendTo(sess, b)
			})
			if expired {
				xlog.Info("lrcp: session %d expired after 60s idle", sess.Key)
				e.sendTo(sess, closeFrame(sess.Key))
				e.remove(sess.Key)
			}
		}
	}
}

func (e *Engine) sendTo(sess *Session, b []byte) {
	// The socket is the one HandleDatagram recorded from the most recent
	// inbound datagram; until one has arrived there is nothing to send on.
	e.socketMu.RLock()
	sock := e.socket
	addr := sess.Addr
	e.socketMu.RUnlock()
	if sock == nil {
		return
	}
	sock.WriteToUDP(b, addr)
}
