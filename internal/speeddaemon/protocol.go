// Package speeddaemon implements the Speed Daemon challenge: a binary wire
// protocol over TCP for road-speed enforcement, ported from
// _examples/original_source/6_speed_daemon.c. Clients identify as a Camera
// or a Dispatcher exactly once per connection; cameras report observations,
// the daemon computes average speed between pairs of observations on the
// same road, and routes at most one ticket per plate per calendar day to a
// connected dispatcher for that road.
package speeddaemon

import (
	"bufio"
	"fmt"

	"github.com/halvarsen/protoharbor/internal/server"
)

// Message type codes, spec.md §4.2.
const (
	msgPlate         = 0x20
	msgWantHeartbeat = 0x40
	msgIAmCamera     = 0x80
	msgIAmDispatcher = 0x81
	msgError         = 0x10
	msgTicket        = 0x21
	msgHeartbeat     = 0x41
)

type plateMsg struct {
	Plate string
	TS    uint32
}

func readPlate(r *bufio.Reader) (plateMsg, error) {
	plate, err := server.ReadString(r)
	if err != nil {
		return plateMsg{}, fmt.Errorf("plate: %w", err)
	}
	ts, err := server.ReadUint32(r)
	if err != nil {
		return plateMsg{}, fmt.Errorf("plate timestamp: %w", err)
	}
	return plateMsg{Plate: plate, TS: ts}, nil
}

func readWantHeartbeat(r *bufio.Reader) (uint32, error) {
	interval, err := server.ReadUint32(r)
	if err != nil {
		return 0, fmt.Errorf("heartbeat interval: %w", err)
	}
	return interval, nil
}

type cameraMsg struct {
	Road, Mile, Limit uint16
}

func readCamera(r *bufio.Reader) (cameraMsg, error) {
	road, err := server.ReadUint16(r)
	if err != nil {
		return cameraMsg{}, fmt.Errorf("camera road: %w", err)
	}
	mile, err := server.ReadUint16(r)
	if err != nil {
		return cameraMsg{}, fmt.Errorf("camera mile: %w", err)
	}
	limit, err := server.ReadUint16(r)
	if err != nil {
		return cameraMsg{}, fmt.Errorf("camera limit: %w", err)
	}
	return cameraMsg{Road: road, Mile: mile, Limit: limit}, nil
}

func readDispatcher(r *bufio.Reader) ([]uint16, error) {
	n, err := server.ReadUint8(r)
	if err != nil {
		return nil, fmt.Errorf("dispatcher numroads: %w", err)
	}
	roads := make([]uint16, n)
	for i := range roads {
		road, err := server.ReadUint16(r)
		if err != nil {
			return nil, fmt.Errorf("dispatcher road[%d]: %w", i, err)
		}
		roads[i] = road
	}
	return roads, nil
}

// encodeError builds the 0x10 Error{msg:str8} frame.
func encodeError(msg string) []byte {
	body := server.PutString(msg)
	out := make([]byte, 1+len(body))
	out[0] = msgError
	copy(out[1:], body)
	return out
}

// encodeHeartbeat builds the single-byte 0x41 Heartbeat frame.
func encodeHeartbeat() []byte { return []byte{msgHeartbeat} }

// encodeTicket builds the 0x21 Ticket frame described in spec.md §4.2.
func encodeTicket(t PendingTicket) []byte {
	plate := server.PutString(t.Plate)
	out := make([]byte, 0, 1+len(plate)+2+2+4+2+4+2)
	out = append(out, msgTicket)
	out = append(out, plate...)
	out = append(out, server.PutUint16(t.Road)...)
	out = append(out, server.PutUint16(t.Mile1)...)
	out = append(out, server.PutUint32(t.TS1)...)
	out = append(out, server.PutUint16(t.Mile2)...)
	out = append(out, server.PutUint32(t.TS2)...)
	out = append(out, server.PutUint16(t.SpeedX100)...)
	return out
}
