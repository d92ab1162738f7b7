package speeddaemon

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture collects frames written to a simulated dispatcher socket.
type capture struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *capture) send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *capture) wait(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.frames)
		c.mu.Unlock()
		if got >= n {
			break
		}
		time.Sleep(time.Millisecond)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// TestSingleQualifyingPairProducesOneTicket is the concrete scenario from
// spec.md §8.1: two observations 45s apart, 1 mile apart, on a 60mph road
// qualify for an 80mph ticket.
func TestSingleQualifyingPairProducesOneTicket(t *testing.T) {
	d := NewDaemon()
	cap := &capture{}
	d.AddDispatcher([]uint16{123}, cap.send)

	d.RecordObservation("UN1X", Observation{TS: 0, Road: 123, Mile: 8, Limit: 60})
	d.RecordObservation("UN1X", Observation{TS: 45, Road: 123, Mile: 9, Limit: 60})

	frames := cap.wait(t, 1)
	require.Len(t, frames, 1)

	ticket := decodeTicketFrame(t, frames[0])
	assert.Equal(t, "UN1X", ticket.Plate)
	assert.EqualValues(t, 123, ticket.Road)
	assert.EqualValues(t, 8, ticket.Mile1)
	assert.EqualValues(t, 0, ticket.TS1)
	assert.EqualValues(t, 9, ticket.Mile2)
	assert.EqualValues(t, 45, ticket.TS2)
	assert.EqualValues(t, 8000, ticket.SpeedX100)
}

// TestAtMostOneTicketPerCalendarDay is the scenario from spec.md §8.3:
// four qualifying pairs, three of them on the same day, must produce only
// two tickets total.
func TestAtMostOneTicketPerCalendarDay(t *testing.T) {
	d := NewDaemon()
	cap := &capture{}
	d.AddDispatcher([]uint16{1}, cap.send)

	const day0 = uint32(0)
	const day1 = uint32(secondsPerDay)

	// Three pairs on day0 (0-60, 0-120, 60-120, all 120mph) that would each
	// independently qualify.
	d.RecordObservation("AAA111", Observation{TS: day0, Road: 1, Mile: 0, Limit: 50})
	d.RecordObservation("AAA111", Observation{TS: day0 + 60, Road: 1, Mile: 2, Limit: 50})
	d.RecordObservation("AAA111", Observation{TS: day0 + 120, Road: 1, Mile: 4, Limit: 50})

	// One qualifying pair on day1.
	d.RecordObservation("AAA111", Observation{TS: day1, Road: 1, Mile: 0, Limit: 50})
	d.RecordObservation("AAA111", Observation{TS: day1 + 60, Road: 1, Mile: 2, Limit: 50})

	frames := cap.wait(t, 2)
	time.Sleep(50 * time.Millisecond) // let any spurious extra ticket arrive
	frames = cap.wait(t, 2)
	assert.Len(t, frames, 2, "exactly one ticket per calendar day, not one per qualifying pair")
}

// TestNoDispatcherDoesNotDropTicket exercises the router's rotate-on-no-
// dispatcher path (spec.md §9): a ticket with no covering dispatcher stays
// pending and is delivered once one connects.
func TestNoDispatcherDoesNotDropTicket(t *testing.T) {
	d := NewDaemon()

	d.RecordObservation("ZZZ999", Observation{TS: 0, Road: 42, Mile: 0, Limit: 10})
	d.RecordObservation("ZZZ999", Observation{TS: 10, Road: 42, Mile: 1, Limit: 10})

	cap := &capture{}
	time.Sleep(20 * time.Millisecond) // router spins with no dispatcher for a bit
	d.AddDispatcher([]uint16{42}, cap.send)

	frames := cap.wait(t, 1)
	require.Len(t, frames, 1)
}

type decodedTicket struct {
	Plate     string
	Road      uint16
	Mile1     uint16
	TS1       uint32
	Mile2     uint16
	TS2       uint32
	SpeedX100 uint16
}

func decodeTicketFrame(t *testing.T, frame []byte) decodedTicket {
	t.Helper()
	require.NotEmpty(t, frame)
	require.Equal(t, byte(msgTicket), frame[0])
	pos := 1
	plen := int(frame[pos])
	pos++
	plate := string(frame[pos : pos+plen])
	pos += plen

	readU16 := func() uint16 {
		v := uint16(frame[pos])<<8 | uint16(frame[pos+1])
		pos += 2
		return v
	}
	readU32 := func() uint32 {
		v := uint32(frame[pos])<<24 | uint32(frame[pos+1])<<16 | uint32(frame[pos+2])<<8 | uint32(frame[pos+3])
		pos += 4
		return v
	}

	road := readU16()
	mile1 := readU16()
	ts1 := readU32()
	mile2 := readU16()
	ts2 := readU32()
	speed := readU16()

	return decodedTicket{Plate: plate, Road: road, Mile1: mile1, TS1: ts1, Mile2: mile2, TS2: ts2, SpeedX100: speed}
}
