// Package memtable provides the write-accepting in-memory table: a
// skip list with a memory-charge counter, and a queue of frozen
// (immutable) memtables awaiting flush.
package memtable

import (
	"iter"

	"github.com/Priyanshu23/flashkv/record"
)

type ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64 |
		~string
}

// Record is the generic skip-list payload; keys are compared with the
// ordered constraint's native operators, which for string matches
// lexicographic byte ordering exactly.
type Record[K ordered, V any] struct {
	Key   K
	Value V
}

// Memtable wraps a skip list keyed by string (the byte-string form of
// a key) with an approximate memory-charge counter used to decide
// fullness, per the charge rule: a replace adjusts by the value-size
// delta, a new key charges key+value.
type Memtable struct {
	maxSize int
	charge  int
	data    *SkipList[string, record.Record]
}

// New creates an empty memtable that reports Full once its charge
// reaches maxSize bytes.
func New(maxSize int) *Memtable {
	return &Memtable{
		maxSize: maxSize,
		data:    NewSkipList[string, record.Record](),
	}
}

// Put inserts or replaces key's record, charging the memtable
// accordingly, and returns the previous record if one existed.
func (m *Memtable) Put(key []byte, rec record.Record) (record.Record, bool) {
	old, existed := m.data.Put(string(key), rec)
	if existed {
		m.charge += rec.Size() - old.Size()
	} else {
		m.charge += rec.Size()
	}
	return old, existed
}

// Get returns the record bound to key, if any. The record may be a
// tombstone; callers distinguish present-with-tombstone from absent
// via Record.Deleted.
func (m *Memtable) Get(key []byte) (record.Record, bool) {
	return m.data.Get(string(key))
}

// Delete inserts a tombstone for key (the memtable never removes
// entries outright; that is the compactor's job once the tombstone
// reaches the deepest level).
func (m *Memtable) Delete(key []byte) (record.Record, bool) {
	return m.Put(key, record.Record{Key: append([]byte(nil), key...), Deleted: true})
}

// Full reports whether the memtable's charge has reached maxSize.
func (m *Memtable) Full() bool { return m.charge >= m.maxSize }

// Charge returns the current memory-charge estimate in bytes.
func (m *Memtable) Charge() int { return m.charge }

// Len returns the number of distinct keys held.
func (m *Memtable) Len() int { return m.data.Len() }

// Clear resets both the charge and the underlying map.
func (m *Memtable) Clear() {
	m.data.Clear()
	m.charge = 0
}

// Clone returns an independent, logically equal memtable sharing no
// mutable state with the original — used when freezing the active
// table into the queue.
func (m *Memtable) Clone() *Memtable {
	return &Memtable{
		maxSize: m.maxSize,
		charge:  m.charge,
		data:    m.data.Clone(),
	}
}

// Iterator yields records in ascending key order.
func (m *Memtable) Iterator() iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for rec := range m.data.Iterator() {
			if !yield(rec.Value) {
				return
			}
		}
	}
}
