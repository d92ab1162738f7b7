package speeddaemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/halvarsen/protoharbor/internal/arena"
	"github.com/halvarsen/protoharbor/internal/server"
	"github.com/halvarsen/protoharbor/internal/xlog"
)

type role int

const (
	roleUnknown role = iota
	roleCamera
	roleDispatcher
)

// Handler returns a server.Handler bound to d, suitable for ModeThreaded —
// spec.md §7 runs Speed Daemon on the threaded worker pool. Each connection
// gets its own goroutine free to block on reads; a separate goroutine
// drives the heartbeat once the client requests one.
func Handler(d *Daemon) server.Handler {
	return func(c *server.Conn) {
		h := &clientHandler{daemon: d, conn: c}
		h.run()
	}
}

type clientHandler struct {
	daemon *Daemon
	conn   *server.Conn

	role            role
	camera          cameraMsg
	dispToken       *dispatcherEntry
	heartbeatWanted bool

	// plates is a per-connection arena that owns the long-lived copy of
	// every reported plate string, mirroring 6_speed_daemon.c's arena_str
	// call in add_car_position — a plate must outlive the read buffer it
	// was parsed from once it's stored in the shared car table.
	plates arena.Arena

	writeMu sync.Mutex

	heartbeatCancel context.CancelFunc
}

func (h *clientHandler) run() {
	connID := xlog.NewConnID()
	defer h.cleanup()

	for {
		msgType, err := server.ReadUint8(h.conn.Reader())
		if err != nil {
			return // peer closed or read error: teardown via read errors, per spec.md §7
		}

		if err := h.dispatch(msgType); err != nil {
			xlog.Debug("[%s] speed daemon client error: %v", connID, err)
			h.sendError(err.Error())
			return
		}
	}
}

var errUnrecognized = errors.New("Unrecognized message")
var errNoChangingRoles = errors.New("already identified")

func (h *clientHandler) dispatch(msgType uint8) error {
	r := h.conn.Reader()
	switch msgType {
	case msgPlate:
		msg, err := readPlate(r)
		if err != nil {
			return err
		}
		if h.role != roleCamera {
			return errors.New("Plate received before IAmCamera")
		}
		plate := h.plates.String(msg.Plate)
		h.daemon.RecordObservation(plate, Observation{
			TS:    msg.TS,
			Road:  h.camera.Road,
			Mile:  h.camera.Mile,
			Limit: h.camera.Limit,
		})
		return nil

	case msgWantHeartbeat:
		interval, err := readWantHeartbeat(r)
		if err != nil {
			return err
		}
		if h.heartbeatWanted {
			return errors.New("already requested a heartbeat")
		}
		h.heartbeatWanted = true
		h.startHeartbeat(interval)
		return nil

	case msgIAmCamera:
		if h.role != roleUnknown {
			return errNoChangingRoles
		}
		cam, err := readCamera(r)
		if err != nil {
			return err
		}
		h.role = roleCamera
		h.camera = cam
		return nil

	case msgIAmDispatcher:
		if h.role != roleUnknown {
			return errNoChangingRoles
		}
		roads, err := readDispatcher(r)
		if err != nil {
			return err
		}
		h.role = roleDispatcher
		h.dispToken = h.daemon.AddDispatcher(roads, h.send)
		return nil

	default:
		return errUnrecognized
	}
}

// send writes one frame, serializing against concurrent heartbeat and
// ticket-delivery writers on the same socket.
func (h *clientHandler) send(b []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_, err := h.conn.Write(b)
	return err
}

func (h *clientHandler) sendError(msg string) {
	_ = h.send(encodeError(msg))
}

// startHeartbeat launches (or restarts) a ticker goroutine writing 0x41 at
// the requested interval, expressed in deciseconds per spec.md §4.2. An
// interval of 0 disables heartbeats, matching the original's semantics of
// heartbeat==0 meaning "no heartbeat configured."
func (h *clientHandler) startHeartbeat(intervalDeciseconds uint32) {
	if h.heartbeatCancel != nil {
		h.heartbeatCancel()
		h.heartbeatCancel = nil
	}
	if intervalDeciseconds == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.heartbeatCancel = cancel
	period := time.Duration(intervalDeciseconds) * 100 * time.Millisecond

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.send(encodeHeartbeat()); err != nil {
					return
				}
			}
		}
	}()
}

func (h *clientHandler) cleanup() {
	if h.heartbeatCancel != nil {
		h.heartbeatCancel()
	}
	if h.role == roleDispatcher && h.dispToken != nil {
		h.daemon.RemoveDispatcher(h.dispToken)
	}
}
