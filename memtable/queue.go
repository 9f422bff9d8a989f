package memtable

import (
	"github.com/Priyanshu23/flashkv/record"
)

// Queue holds frozen memtables in arrival order: pushed at the young
// end, consumed at the old end. Search scans youngest-first and
// returns on the first hit — which may be a tombstone; callers must
// distinguish present-with-tombstone from absent.
type Queue struct {
	maxCount int
	tables   []*Memtable // index 0 is youngest
}

// NewQueue builds an empty queue bounded to maxCount frozen tables.
func NewQueue(maxCount int) *Queue {
	return &Queue{maxCount: maxCount}
}

// Full reports whether the queue has reached its configured capacity.
// The queue itself does not block or reject writers; Push accepts a
// table even when the queue is full.
func (q *Queue) Full() bool { return len(q.tables) >= q.maxCount }

// Len returns the number of frozen memtables currently queued.
func (q *Queue) Len() int { return len(q.tables) }

// Push adds a newly-frozen memtable at the young end.
func (q *Queue) Push(m *Memtable) {
	q.tables = append([]*Memtable{m}, q.tables...)
}

// Oldest returns the oldest frozen memtable without removing it, or
// nil if the queue is empty.
func (q *Queue) Oldest() *Memtable {
	if len(q.tables) == 0 {
		return nil
	}
	return q.tables[len(q.tables)-1]
}

// Consume removes and returns the oldest frozen memtable.
func (q *Queue) Consume() *Memtable {
	if len(q.tables) == 0 {
		return nil
	}
	m := q.tables[len(q.tables)-1]
	q.tables = q.tables[:len(q.tables)-1]
	return m
}

// Get scans youngest-first, returning on the first hit.
func (q *Queue) Get(key []byte) (record.Record, bool) {
	for _, m := range q.tables {
		if rec, ok := m.Get(key); ok {
			return rec, true
		}
	}
	return record.Record{}, false
}
