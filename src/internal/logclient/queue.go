// FILE: src/internal/logclient/queue.go
package logclient

import "github.com/timcash/code-cad/src/internal/core"

// recordQueue is a fixed-capacity FIFO ring of pending records.
// Overflow policy is drop-oldest: admitting a record to a full queue
// evicts the least-recent one, never the newest.
type recordQueue struct {
	buf  []core.LogRecord
	head int
	size int
}

func newRecordQueue(capacity int) *recordQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &recordQueue{buf: make([]core.LogRecord, capacity)}
}

func (q *recordQueue) Len() int {
	return q.size
}

// PushBack appends a record, evicting the oldest when full.
// Returns true when an eviction occurred.
func (q *recordQueue) PushBack(r core.LogRecord) bool {
	if q.size == len(q.buf) {
		q.buf[q.head] = r
		q.head = (q.head + 1) % len(q.buf)
		return true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = r
	q.size++
	return false
}

// PushFront reinserts a record at the head after a failed send. When the
// queue is full the tail (newest) record is evicted instead of the oldest,
// so retry order is preserved. Returns true when an eviction occurred.
func (q *recordQueue) PushFront(r core.LogRecord) bool {
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = r
	if q.size == len(q.buf) {
		return true
	}
	q.size++
	return false
}

// PopFront removes and returns the oldest record.
func (q *recordQueue) PopFront() (core.LogRecord, bool) {
	if q.size == 0 {
		return core.LogRecord{}, false
	}
	r := q.buf[q.head]
	q.buf[q.head] = core.LogRecord{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return r, true
}

func (q *recordQueue) Clear() {
	for i := range q.buf {
		q.buf[i] = core.LogRecord{}
	}
	q.head = 0
	q.size = 0
}
