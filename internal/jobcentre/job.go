// Package jobcentre implements the Job Centre priority work broker, ported
// from _examples/original_source/9_job_centre.c: named priority queues,
// monotonic job ids, blocking multi-queue get, and abort/delete with
// implicit-abort-on-disconnect semantics.
package jobcentre

// Status is a job's lifecycle state — job_status in the original source.
type Status int

const (
	StatusUnknown Status = iota
	StatusQueued
	StatusInProgress
	StatusDone
)

// Job is one unit of work: an opaque JSON payload tagged with a priority
// and the queue it was submitted to.
type Job struct {
	ID       int64
	Priority int64
	Queue    string
	Payload  []byte // raw JSON, echoed back verbatim on get
}
