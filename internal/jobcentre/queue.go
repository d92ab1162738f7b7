package jobcentre

import (
	"sort"
	"sync"

	"github.com/halvarsen/protoharbor/internal/dynarr"
)

// Queue is one named priority queue. Jobs are kept sorted ascending by
// priority so the highest-priority job sits at the tail — ported from
// enqueue_job's qsort-then-arrlast discipline in the original source.
// Each queue owns its own mutex, per spec.md §7.
type Queue struct {
	mu   sync.Mutex
	jobs dynarr.Vector[*Job]
}

func newQueue() *Queue { return &Queue{} }

func (q *Queue) enqueue(j *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs.Append(j)
	items := q.jobs.Items()
	sort.SliceStable(items, func(i, k int) bool { return items[i].Priority < items[k].Priority })
}

// peek returns the highest-priority job without removing it.
func (q *Queue) peek() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobs.Len() == 0 {
		return nil, false
	}
	return q.jobs.Last(), true
}

// take removes and returns the tail job if it still matches expectedID and
// expectedPriority — the original's optimistic compare-and-pop, needed
// because dequeue_job peeks across queues without holding every queue's
// lock for the whole scan.
func (q *Queue) take(expectedID, expectedPriority int64) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobs.Len() == 0 {
		return nil, false
	}
	last := q.jobs.Last()
	if last.ID != expectedID || last.Priority != expectedPriority {
		return nil, false
	}
	return q.jobs.Pop(), true
}

// removeByID deletes the job with id, if present, preserving priority
// order — used by delete on a still-Queued job.
func (q *Queue) removeByID(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 0; i < q.jobs.Len(); i++ {
		if q.jobs.At(i).ID == id {
			q.jobs.RemoveOrdered(i)
			return true
		}
	}
	return false
}
