package jobcentre

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPutThenGetReturnsHighestPriority is the concrete scenario from
// spec.md §8.1.
func TestPutThenGetReturnsHighestPriority(t *testing.T) {
	b := NewBroker()
	j1 := b.Put("a", 10, []byte(`{"x":1}`))
	j2 := b.Put("a", 20, []byte(`{"x":2}`))

	assert.EqualValues(t, 1, j1.ID)
	assert.EqualValues(t, 2, j2.ID)

	got, ok := b.Get([]string{"a"}, false)
	require.True(t, ok)
	assert.Equal(t, j2.ID, got.ID)
}

func TestGetNonIncreasingPriorityOrder(t *testing.T) {
	b := NewBroker()
	b.Put("q", 5, []byte("1"))
	b.Put("q", 1, []byte("2"))
	b.Put("q", 9, []byte("3"))
	b.Put("q", 3, []byte("4"))

	var priorities []int64
	for i := 0; i < 4; i++ {
		j, ok := b.Get([]string{"q"}, false)
		require.True(t, ok)
		priorities = append(priorities, j.Priority)
	}
	assert.True(t, sort.IsSorted(sort.Reverse(int64Slice(priorities))))
}

func TestGetTiesBrokenByFirstQueueInList(t *testing.T) {
	b := NewBroker()
	jb := b.Put("b", 10, []byte("x"))
	b.Put("a", 10, []byte("y"))

	got, ok := b.Get([]string{"b", "a"}, false)
	require.True(t, ok)
	assert.Equal(t, jb.ID, got.ID, "equal priority across queues: first queue in the request list wins")
}

func TestGetEmptyQueueNoWaitReturnsNoJob(t *testing.T) {
	b := NewBroker()
	_, ok := b.Get([]string{"empty"}, false)
	assert.False(t, ok)
}

// TestGetWaitUnblocksOnConcurrentPut is spec.md §8.3: a blocking get on an
// empty queue unblocks when a matching put arrives.
func TestGetWaitUnblocksOnConcurrentPut(t *testing.T) {
	b := NewBroker()
	var got *Job
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		j, ok := b.Get([]string{"a"}, true)
		if ok {
			got = j
		}
	}()

	time.Sleep(20 * time.Millisecond) // let the getter block
	b.Put("a", 1, []byte("0"))

	wg.Wait()
	require.NotNil(t, got)
	assert.EqualValues(t, 1, got.Priority)
}

func TestImplicitAbortReenqueuesAtOriginalPriority(t *testing.T) {
	b := NewBroker()
	b.Put("a", 10, []byte(`{"x":1}`))
	job, ok := b.Get([]string{"a"}, false)
	require.True(t, ok)

	b.ImplicitAbort(job)

	again, ok := b.Get([]string{"a"}, false)
	require.True(t, ok)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, job.Priority, again.Priority)
}

func TestAbortOnlyHolderMayAbort(t *testing.T) {
	b := NewBroker()
	b.Put("a", 10, []byte("x"))
	job, _ := b.Get([]string{"a"}, false)

	assert.False(t, b.Abort(job.ID, nil), "no held job: cannot abort")
	assert.True(t, b.Abort(job.ID, job))

	_, ok := b.Get([]string{"a"}, false)
	assert.True(t, ok, "aborted job must be gettable again")
}

func TestDeleteDoneIDReturnsNoJob(t *testing.T) {
	b := NewBroker()
	j := b.Put("a", 1, []byte("x"))
	b.Get([]string{"a"}, false)
	ok, _ := b.Delete(j.ID, j.ID) // self-held delete marks Done
	require.True(t, ok)

	ok, _ = b.Delete(j.ID, -1)
	assert.False(t, ok, "deleting an already-Done id returns no-job")
}

func TestDeleteQueuedJobRemovesFromQueue(t *testing.T) {
	b := NewBroker()
	j := b.Put("a", 1, []byte("x"))

	ok, wasSelf := b.Delete(j.ID, -1)
	require.True(t, ok)
	assert.False(t, wasSelf)

	_, got := b.Get([]string{"a"}, false)
	assert.False(t, got, "deleted job must not be returned by a later get")
}

// int64Slice / sort glue kept local to this test file to avoid pulling in
// an extra sort helper dependency for one assertion.
type int64Slice []int64

func (s int64Slice) Len() int           { return len(s) }
func (s int64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s int64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
