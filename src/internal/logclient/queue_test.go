// FILE: src/internal/logclient/queue_test.go
package logclient

import (
	"fmt"
	"testing"

	"github.com/timcash/code-cad/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(msg string) core.LogRecord {
	return core.LogRecord{Level: core.LevelInfo, Message: msg}
}

func drain(q *recordQueue) []string {
	var out []string
	for {
		r, ok := q.PopFront()
		if !ok {
			return out
		}
		out = append(out, r.Message)
	}
}

func TestRecordQueue_FIFO(t *testing.T) {
	q := newRecordQueue(4)
	assert.False(t, q.PushBack(rec("a")))
	assert.False(t, q.PushBack(rec("b")))
	assert.False(t, q.PushBack(rec("c")))
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"a", "b", "c"}, drain(q))
	assert.Equal(t, 0, q.Len())
}

func TestRecordQueue_PushBackEvictsOldest(t *testing.T) {
	q := newRecordQueue(3)
	for i := 0; i < 3; i++ {
		assert.False(t, q.PushBack(rec(fmt.Sprintf("m%d", i))))
	}
	// Queue full; the next two admissions must evict m0 then m1.
	assert.True(t, q.PushBack(rec("m3")))
	assert.True(t, q.PushBack(rec("m4")))

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"m2", "m3", "m4"}, drain(q))
}

func TestRecordQueue_PushFrontPreservesRetryOrder(t *testing.T) {
	q := newRecordQueue(4)
	q.PushBack(rec("b"))
	q.PushBack(rec("c"))

	// A failed send puts the in-flight record back at the head.
	assert.False(t, q.PushFront(rec("a")))
	assert.Equal(t, []string{"a", "b", "c"}, drain(q))
}

func TestRecordQueue_PushFrontFullEvictsNewest(t *testing.T) {
	q := newRecordQueue(3)
	q.PushBack(rec("b"))
	q.PushBack(rec("c"))
	q.PushBack(rec("d"))

	// Reinserting at the head of a full queue sacrifices the newest tail
	// record, never the retried one.
	assert.True(t, q.PushFront(rec("a")))
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"a", "b", "c"}, drain(q))
}

func TestRecordQueue_WrapAround(t *testing.T) {
	q := newRecordQueue(3)
	q.PushBack(rec("a"))
	q.PushBack(rec("b"))

	r, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, "a", r.Message)

	q.PushBack(rec("c"))
	q.PushBack(rec("d"))
	assert.Equal(t, []string{"b", "c", "d"}, drain(q))
}

func TestRecordQueue_Clear(t *testing.T) {
	q := newRecordQueue(2)
	q.PushBack(rec("a"))
	q.PushBack(rec("b"))
	q.Clear()

	assert.Equal(t, 0, q.Len())
	_, ok := q.PopFront()
	assert.False(t, ok)

	assert.False(t, q.PushBack(rec("c")))
	assert.Equal(t, []string{"c"}, drain(q))
}

func TestRecordQueue_MinimumCapacity(t *testing.T) {
	q := newRecordQueue(0)
	assert.False(t, q.PushBack(rec("a")))
	assert.True(t, q.PushBack(rec("b")))
	assert.Equal(t, []string{"b"}, drain(q))
}
