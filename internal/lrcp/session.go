package lrcp

import (
	"net"
	"sync"
	"time"
)

// Session is one LRCP stream: independent receive and send buffers, each
// guarded by their own mutex/condvar pair — ported from struct Session in
// the original source, with the fixed 4096/8192-byte scratch buffers
// replaced by growable slices.
type Session struct {
	Key  uint32
	Addr *net.UDPAddr

	recvMu   sync.Mutex
	recvCond *sync.Cond
	rcvBuf   []byte
	readIdx  int
	received uint32

	sendMu       sync.Mutex
	sendCond     *sync.Cond
	sndBuf       []byte
	sent         uint32
	sentAcked    uint32
	lastSentTime time.Time

	lastMsgTime time.Time

	closed bool
}

const writeSoftCap = 800

func newSession(key uint32, addr *net.UDPAddr) *Session {
	s := &Session{Key: key, Addr: addr, lastMsgTime: time.Now()}
	s.recvCond = sync.NewCond(&s.recvMu)
	s.sendCond = sync.NewCond(&s.sendMu)
	return s
}

func (s *Session) touch() {
	s.recvMu.Lock()
	s.lastMsgTime = time.Now()
	s.recvMu.Unlock()
}

func (s *Session) idleFor() time.Duration {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()
	return time.Since(s.lastMsgTime)
}

// GetChar blocks until a byte is available and returns it, or returns
// ok=false if the session is destroyed while waiting — the application
// coroutine contract from spec.md §4.3.
func (s *Session) GetChar() (byte, bool) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()
	for s.readIdx >= len(s.rcvBuf) && !s.closed {
		s.recvCond.Wait()
	}
	if s.closed {
		return 0, false
	}
	ch := s.rcvBuf[s.readIdx]
	s.readIdx++
	return ch, true
}

// PutChar blocks while the outbound buffer is at its soft cap, then appends
// ch, returning ok=false if the session is destroyed while waiting.
func (s *Session) PutChar(ch byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	for len(s.sndBuf) >= writeSoftCap && !s.closed {
		s.sendCond.Wait()
	}
	if s.closed {
		return false
	}
	s.sndBuf = append(s.sndBuf, ch)
	return true
}

// ackPosition returns the receive position to echo in a connect ack —
// reading it fresh each time makes repeated connects idempotent per
// spec.md §8's "Idempotent connect" scenario.
func (s *Session) ackPosition() uint32 {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()
	return s.received
}

// handleData applies an inbound /data/ frame per spec.md §4.3's three-way
// split on pos vs received, returning the ack frame to send, or nil if the
// datagram is a gap to be silently dropped.
func (s *Session) handleData(pos uint32, data []byte) []byte {
	s.recvMu.Lock()

	if pos > s.received {
		s.recvMu.Unlock()
		return nil // gap: wait for retransmission
	}
	if pos < s.received {
		ack := dataAck(s.Key, s.received)
		s.recvMu.Unlock()
		return ack // replay/overlap: re-ack current position, don't reprocess
	}

	// pos == received: wait for the app to finish draining any previous
	// buffer before handing it a new one (ensure_all_handled in the source).
	for s.readIdx < len(s.rcvBuf) && !s.closed {
		s.recvCond.Wait()
	}
	if s.closed {
		s.recvMu.Unlock()
		return nil
	}
	s.rcvBuf = data
	s.readIdx = 0
	s.received += uint32(len(data))
	ack := dataAck(s.Key, s.received)
	s.recvMu.Unlock()
	s.recvCond.Broadcast()
	return ack
}

// handleAck applies an inbound /ack/ frame's position against the send
// window, per the original's all-or-nothing acknowledgement: only an ack
// of exactly the cumulative `sent` count frees the buffer for reuse. A
// position beyond anything ever sent means a misbehaving peer and the
// caller must close the session, per spec.md §4.3.
func (s *Session) handleAck(pos uint32) (misbehaving bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if pos > s.sent {
		return true
	}
	if pos <= s.sentAcked {
		return false
	}
	if pos == s.sent {
		// Drop only the acknowledged bytes; anything the application
		// appended after the last send stays queued for the next one.
		s.sndBuf = s.sndBuf[pos-s.sentAcked:]
		s.sentAcked = pos
		s.sendCond.Broadcast()
	}
	return false
}

// sweep is invoked periodically by the engine's background task. It
// retransmits unacknowledged data past the 1500ms timeout, transmits newly
// buffered data, or reports expiry after 60s of silence.
func (s *Session) sweep(send func([]byte)) (expired bool) {
	if s.idleFor() > 60*time.Second {
		return true
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	now := time.Now()
	switch {
	case s.sentAcked < s.sent:
		if now.Sub(s.lastSentTime) > 1500*time.Millisecond {
			send(dataFrame(s.Key, s.sentAcked, s.sndBuf[:s.sent-s.sentAcked]))
			s.lastSentTime = now
		}
	case len(s.sndBuf) > 0:
		send(dataFrame(s.Key, s.sentAcked, s.sndBuf))
		s.sent += uint32(len(s.sndBuf))
		s.lastSentTime = now
	}
	return false
}

// destroy releases every goroutine blocked in GetChar/PutChar with an
// error return, per spec.md §7's cancellation note: session destruction
// must terminate the application coroutine since no context is threaded
// into it.
func (s *Session) destroy() {
	s.recvMu.Lock()
	s.closed = true
	s.recvMu.Unlock()
	s.recvCond.Broadcast()

	s.sendMu.Lock()
	s.closed = true
	s.sendMu.Unlock()
	s.sendCond.Broadcast()
}
