package speeddaemon

import "sort"

const secondsPerDay = 86400

// Observation is one Plate reading tagged with the reporting camera's road,
// mile marker and speed limit — CarPos in the original source.
type Observation struct {
	TS    uint32
	Road  uint16
	Mile  uint16
	Limit uint16
}

// Car tracks one license plate's observation history plus the set of
// calendar days already ticketed. Tracking ticketed days on the Car itself
// is "variant A" from spec.md §9's Open Question: the original C source
// has no such set and double-tickets across overlapping qualifying pairs;
// this implementation follows the spec's mandated variant.
type Car struct {
	Plate        string
	Observations []Observation
	TicketedDays map[uint32]bool
}

func newCar(plate string) *Car {
	return &Car{Plate: plate, TicketedDays: make(map[uint32]bool)}
}

func day(ts uint32) uint32 { return ts / secondsPerDay }

// addObservation inserts obs in (road, ts) sorted order and returns any
// tickets newly qualified by pairing obs against every other observation on
// the same road, per spec.md §4.2's pairwise scan. At most one ticket is
// emitted per calendar day: both days of a qualifying pair are marked
// ticketed atomically with the ticket's creation, so a later-scanned pair
// spanning an already-ticketed day is skipped — "ties are broken in favour
// of the first pair encountered while scanning in sorted order."
func (c *Car) addObservation(obs Observation) []PendingTicket {
	c.Observations = append(c.Observations, obs)
	sort.SliceStable(c.Observations, func(i, j int) bool {
		a, b := c.Observations[i], c.Observations[j]
		if a.Road != b.Road {
			return a.Road < b.Road
		}
		return a.TS < b.TS
	})

	var tickets []PendingTicket
	for i := 0; i < len(c.Observations); i++ {
		for j := i + 1; j < len(c.Observations) && c.Observations[j].Road == c.Observations[i].Road; j++ {
			a, b := c.Observations[i], c.Observations[j]
			t, ok := c.qualify(a, b)
			if ok {
				tickets = append(tickets, t)
			}
		}
	}
	return tickets
}

// qualify checks one pair of same-road observations against the speed
// limit and the per-day ticketing invariant, marking both days ticketed on
// success.
func (c *Car) qualify(a, b Observation) (PendingTicket, bool) {
	if a.TS == b.TS {
		return PendingTicket{}, false
	}
	earlier, later := a, b
	if later.TS < earlier.TS {
		earlier, later = later, earlier
	}

	dMile := int64(later.Mile) - int64(earlier.Mile)
	if dMile < 0 {
		dMile = -dMile
	}
	dTS := int64(later.TS) - int64(earlier.TS)
	speed := roundSpeed(3600.0 * float64(dMile) / float64(dTS))

	if speed <= int64(earlier.Limit) {
		return PendingTicket{}, false
	}

	dayA, dayB := day(earlier.TS), day(later.TS)
	if c.TicketedDays[dayA] || c.TicketedDays[dayB] {
		return PendingTicket{}, false
	}
	c.TicketedDays[dayA] = true
	c.TicketedDays[dayB] = true

	return PendingTicket{
		Plate:     c.Plate,
		Road:      earlier.Road,
		Mile1:     earlier.Mile,
		TS1:       earlier.TS,
		Mile2:     later.Mile,
		TS2:       later.TS,
		SpeedX100: uint16(speed * 100),
	}, true
}

// roundSpeed rounds to nearest, matching the original's round(3).
func roundSpeed(mph float64) int64 {
	if mph >= 0 {
		return int64(mph + 0.5)
	}
	return -int64(-mph + 0.5)
}
