package speeddaemon

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/halvarsen/protoharbor/internal/dynarr"
	"github.com/halvarsen/protoharbor/internal/xhash"
	"github.com/halvarsen/protoharbor/internal/xlog"
)

// htSize mirrors HT_SIZE in the original source's CarArray bucket[4096].
const htSize = 4096

// PendingTicket is a ticket awaiting delivery to a dispatcher covering its
// road — Ticket in spec.md's GLOSSARY.
type PendingTicket struct {
	Plate     string
	Road      uint16
	Mile1     uint16
	TS1       uint32
	Mile2     uint16
	TS2       uint32
	SpeedX100 uint16
}

// dispatcherEntry is a connected dispatcher's road coverage and the
// connection used to deliver tickets, ported from struct Dispatcher.
type dispatcherEntry struct {
	roads []uint16
	send  func([]byte) error
}

func (d *dispatcherEntry) covers(road uint16) bool {
	for _, r := range d.roads {
		if r == road {
			return true
		}
	}
	return false
}

// Daemon holds all Speed Daemon state behind a single coarse mutex, matching
// the original's pthread_mutex_t lock over a process-global SpeedDaemon —
// spec.md §7's "parallel threads with a single coarse mutex over the entire
// state."
type Daemon struct {
	mu sync.Mutex

	buckets     [htSize]dynarr.Vector[*Car]
	dispatchers []*dispatcherEntry

	pending    dynarr.Vector[PendingTicket]
	ticketCond *sync.Cond

	livelockLimiter *rate.Limiter
}

// NewDaemon constructs an empty Daemon and starts its background ticket
// router.
func NewDaemon() *Daemon {
	d := &Daemon{
		livelockLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	d.ticketCond = sync.NewCond(&d.mu)
	go d.routeTickets()
	return d
}

// carFor returns the Car for plate, creating it on first sight — ported
// from add_car_position's bucket scan-or-append.
func (d *Daemon) carFor(plate string) *Car {
	bucket := &d.buckets[xhash.HashString(plate)%htSize]
	for i := 0; i < bucket.Len(); i++ {
		if bucket.At(i).Plate == plate {
			return bucket.At(i)
		}
	}
	c := newCar(plate)
	bucket.Append(c)
	return c
}

// RecordObservation adds obs for plate and enqueues any tickets the new
// observation qualifies, waking the router.
func (d *Daemon) RecordObservation(plate string, obs Observation) {
	d.mu.Lock()
	car := d.carFor(plate)
	tickets := car.addObservation(obs)
	for _, t := range tickets {
		d.pending.Append(t)
	}
	d.mu.Unlock()
	if len(tickets) > 0 {
		d.ticketCond.Broadcast()
	}
}

// AddDispatcher registers a dispatcher's road coverage and send function,
// returning a token to pass to RemoveDispatcher on disconnect.
func (d *Daemon) AddDispatcher(roads []uint16, send func([]byte) error) *dispatcherEntry {
	entry := &dispatcherEntry{roads: roads, send: send}
	d.mu.Lock()
	d.dispatchers = append(d.dispatchers, entry)
	d.mu.Unlock()
	d.ticketCond.Broadcast()
	return entry
}

// RemoveDispatcher unregisters the dispatcher identified by token (the
// value AddDispatcher returned) so the router stops considering it.
func (d *Daemon) RemoveDispatcher(token *dispatcherEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, disp := range d.dispatchers {
		if disp == token {
			d.dispatchers = append(d.dispatchers[:i], d.dispatchers[i+1:]...)
			return
		}
	}
}

// routeTickets is the dedicated background sender described in spec.md
// §7: "a dedicated background ticket-dispatch thread is the sole sender of
// 0x21 messages." It repeatedly takes the head pending ticket and, if a
// covering dispatcher exists, delivers it; otherwise it rotates the ticket
// to the back of the queue — "the head ticket is rotated indefinitely" per
// spec.md §9's accepted livelock note — logging at a rate-limited interval
// so an unservable road doesn't spam the log.
func (d *Daemon) routeTickets() {
	for {
		d.mu.Lock()
		for d.pending.Len() == 0 {
			d.ticketCond.Wait()
		}
		t := d.pending.At(0)

		var target *dispatcherEntry
		for _, disp := range d.dispatchers {
			if disp.covers(t.Road) {
				target = disp
				break
			}
		}

		if target == nil {
			d.pending.RemoveOrdered(0)
			d.pending.Append(t)
			d.mu.Unlock()
			if d.livelockLimiter.Allow() {
				xlog.Warn("no dispatcher for road %d, ticket for %s still pending", t.Road, t.Plate)
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		d.pending.RemoveOrdered(0)
		d.mu.Unlock()

		if err := target.send(encodeTicket(t)); err != nil {
			// spec.md §4.2: "A send failure on a dispatcher drops that
			// dispatcher from the list; the ticket is retried." After the
			// dispatcher is dropped the ticket is re-enqueued, so a pending
			// ticket is never silently lost.
			xlog.Error("ticket delivery failed for plate %s: %v, dropping dispatcher and retrying", t.Plate, err)
			d.RemoveDispatcher(target)
			d.mu.Lock()
			d.pending.Append(t)
			d.mu.Unlock()
		}
	}
}
