package jobcentre

import (
	"io"
	"time"

	"github.com/halvarsen/protoharbor/internal/server"
	"github.com/halvarsen/protoharbor/internal/xlog"
)

// socketTimeout matches the original's SO_RCVTIMEO/SO_SNDTIMEO of 60s
// (spec.md §7's "Job Centre client sockets use a 60-second receive and
// send timeout").
const socketTimeout = 60 * time.Second

// Handler returns a server.Handler bound to b. Each connection runs on its
// own goroutine in the threaded dispatcher and tracks at most one held job
// at a time, per spec.md §4.4's client lifecycle rule.
func Handler(b *Broker) server.Handler {
	return func(c *server.Conn) {
		h := &clientHandler{broker: b, conn: c}
		h.run()
	}
}

type clientHandler struct {
	broker *Broker
	conn   *server.Conn
	held   *Job
}

func (h *clientHandler) run() {
	defer h.cleanup()

	for {
		h.conn.SetReadDeadline(time.Now().Add(socketTimeout))
		line, err := h.conn.Reader().ReadString('\n')
		if err != nil {
			if err != io.EOF {
				xlog.Debug("job centre read error: %v", err)
			}
			return
		}

		req, perr := parseRequest([]byte(line))
		if perr != nil {
			xlog.Debug("job centre invalid request: %v", perr)
			h.write(respError())
			continue
		}

		h.handle(req)
	}
}

func (h *clientHandler) handle(r *request) {
	switch r.typ {
	case reqPut:
		j := h.broker.Put(r.queue, r.priority, r.payload)
		h.write(respPutOK(j.ID))

	case reqGet:
		job, ok := h.broker.Get(r.queues, r.wait)
		if !ok {
			h.write(respNoJob())
			return
		}
		if h.held != nil {
			h.broker.MarkDone(h.held.ID)
		}
		h.write(respOK(job.ID, job.Priority, job.Queue, job.Payload))
		h.held = job

	case reqAbort:
		if h.broker.Abort(r.id, h.held) {
			h.held = nil
			h.write(respOKPlain())
			return
		}
		h.write(respNoJob())

	case reqDelete:
		selfHeldID := int64(-1)
		if h.held != nil {
			selfHeldID = h.held.ID
		}
		ok, wasSelf := h.broker.Delete(r.id, selfHeldID)
		if !ok {
			h.write(respNoJob())
			return
		}
		if wasSelf {
			h.held = nil
		}
		h.write(respOKPlain())
	}
}

func (h *clientHandler) write(s string) {
	h.conn.SetWriteDeadline(time.Now().Add(socketTimeout))
	if _, err := h.conn.Write([]byte(s)); err != nil {
		xlog.Debug("job centre write error: %v", err)
	}
}

// cleanup implicitly aborts any job this connection was still holding on
// disconnect, per spec.md §4.4.
func (h *clientHandler) cleanup() {
	if h.held != nil {
		h.broker.ImplicitAbort(h.held)
	}
}
