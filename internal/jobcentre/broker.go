package jobcentre

import (
	"sync"
	"time"
)

// getPollInterval is how often a blocking get re-scans its queues while
// waiting for work, matching dequeue_job's usleep(10000) in the original
// source — spec.md §4.4 explicitly permits "poll internally at a small
// interval" rather than requiring a wakeup signal.
const getPollInterval = 10 * time.Millisecond

// Broker owns the queues map, the id counter, and the status map behind
// their own coarse mutexes, per spec.md §7: "Job Centre uses one
// connection thread per client plus coarse mutexes on the queues map, the
// id counter, and the status map; each queue additionally has its own
// mutex."
type Broker struct {
	queuesMu sync.Mutex
	queues   map[string]*Queue

	idMu   sync.Mutex
	nextID int64

	statusMu sync.Mutex
	status   map[int64]Status
}

// NewBroker constructs an empty Broker with the id counter starting at 1,
// matching next_id's initial value in the source.
func NewBroker() *Broker {
	return &Broker{
		queues: make(map[string]*Queue),
		nextID: 1,
		status: make(map[int64]Status),
	}
}

func (b *Broker) queueFor(name string) *Queue {
	b.queuesMu.Lock()
	defer b.queuesMu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = newQueue()
		b.queues[name] = q
	}
	return q
}

func (b *Broker) nextJobID() int64 {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	id := b.nextID
	b.nextID++
	return id
}

func (b *Broker) setStatus(id int64, s Status) {
	b.statusMu.Lock()
	b.status[id] = s
	b.statusMu.Unlock()
}

func (b *Broker) getStatus(id int64) Status {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	return b.status[id]
}

// Put enqueues a new job and returns its assigned id.
func (b *Broker) Put(queueName string, priority int64, payload []byte) *Job {
	j := &Job{ID: b.nextJobID(), Priority: priority, Queue: queueName, Payload: payload}
	b.queueFor(queueName).enqueue(j)
	b.setStatus(j.ID, StatusQueued)
	return j
}

// Get dequeues the highest-priority job across queueNames — "among
// multiple queues the overall highest pri wins with ties broken by first
// queue in the request's list" (spec.md §4.4). If wait is true and no job
// is currently available, it polls every getPollInterval until one is
// enqueued in any queue — ported from dequeue_job's peek-then-sleep loop.
// A condition variable was tried here and dropped: broadcasting under a
// separate lock than the one the waiter's scan and wait must share as one
// atomic step is exactly the lost-wakeup trap condvars exist to avoid, and
// every queue/status lock would need to nest under it to close the window
// cleanly. Polling sidesteps the race entirely and spec.md §4.4 permits it.
func (b *Broker) Get(queueNames []string, wait bool) (*Job, bool) {
	qs := make([]*Queue, len(queueNames))
	for i, name := range queueNames {
		qs[i] = b.queueFor(name)
	}

	for {
		var best *Job
		var bestIdx int
		for i, q := range qs {
			cand, ok := q.peek()
			if !ok {
				continue
			}
			if best == nil || cand.Priority > best.Priority {
				best, bestIdx = cand, i
			}
		}

		if best != nil {
			if taken, ok := qs[bestIdx].take(best.ID, best.Priority); ok {
				b.setStatus(taken.ID, StatusInProgress)
				return taken, true
			}
			continue // lost a race to another getter, rescan
		}

		if !wait {
			return nil, false
		}

		time.Sleep(getPollInterval)
	}
}

// MarkDone transitions id to Done without touching any queue — used when a
// client's new successful get implicitly completes the job it was
// previously holding (spec.md §4.4's client lifecycle rule).
func (b *Broker) MarkDone(id int64) {
	b.setStatus(id, StatusDone)
}

// Abort re-enqueues held at its original priority and queue, provided id
// matches the job the caller currently holds and it is not already Done.
// Only the holder may abort — spec.md §4.4.
func (b *Broker) Abort(id int64, held *Job) bool {
	if held == nil || held.ID != id || b.getStatus(id) == StatusDone {
		return false
	}
	b.queueFor(held.Queue).enqueue(held)
	b.setStatus(id, StatusQueued)
	return true
}

// ImplicitAbort re-enqueues held on client disconnect, per spec.md §4.4 and
// §8's "Client disconnect with a held job J causes J to become Gettable
// again at its original priority."
func (b *Broker) ImplicitAbort(held *Job) {
	if held == nil {
		return
	}
	if b.getStatus(held.ID) == StatusDone {
		return
	}
	b.queueFor(held.Queue).enqueue(held)
	b.setStatus(held.ID, StatusQueued)
}

// Delete marks id Done and removes it from its queue if still Queued.
// selfHeldID is the id of the job the calling connection currently holds,
// if any: deleting a self-held InProgress job needs no queue scan. It
// returns ok=false ("no-job") unless id was Queued or InProgress.
func (b *Broker) Delete(id int64, selfHeldID int64) (ok bool, wasSelfHeld bool) {
	st := b.getStatus(id)
	if st != StatusQueued && st != StatusInProgress {
		return false, false
	}
	b.setStatus(id, StatusDone)
	if selfHeldID == id {
		return true, true
	}
	b.removeFromAnyQueue(id)
	return true, false
}

// removeFromAnyQueue scans every queue for id — ported from the source's
// linear scan of the queues map under queues_lock; spec.md §9 preserves
// this rather than tracking a job's current queue separately.
func (b *Broker) removeFromAnyQueue(id int64) {
	b.queuesMu.Lock()
	queues := make([]*Queue, 0, len(b.queues))
	for _, q := range b.queues {
		queues = append(queues, q)
	}
	b.queuesMu.Unlock()

	for _, q := range queues {
		if q.removeByID(id) {
			return
		}
	}
}
