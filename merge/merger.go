// Package merge implements the multi-way merging iterator used by
// compaction: given a set of SST iterators, it produces a single
// sorted stream, preferring the first-listed iterator on a key tie so
// that callers can encode "newer shadows older" by iterator order.
package merge

import "bytes"

// Iter is the minimal iterator shape a Merger needs; sst.Iterator
// satisfies it.
type Iter interface {
	Valid() bool
	Advance() bool
	CurrentKey() []byte
	CurrentValue() []byte
}

// Merger performs a k-way merge over iters, each positioned before its
// first entry (New advances every iterator once). Iterators earlier in the slice
// win ties — for L0→L1 compaction callers list SSTs youngest-first so
// newer records shadow older; for Lₙ→Lₙ₊₁ ties only occur between a
// single Lₙ and Lₙ₊₁ file, so Lₙ should be listed first (it is newer).
type Merger struct {
	iters []Iter
	ready []bool
}

// New primes every iterator to its first entry and builds a Merger
// over them.
func New(iters []Iter) *Merger {
	m := &Merger{iters: iters, ready: make([]bool, len(iters))}
	for i, it := range iters {
		m.ready[i] = it.Advance()
	}
	return m
}

// Next returns the smallest current key across all iterators (ties
// broken by iterator order) and its value. Every iterator positioned
// on that same key is advanced past it — not just the winner — so a
// key duplicated across SSTs (an overlapping L0 range, or a key
// shadowed by a newer level) is emitted exactly once per call.
func (m *Merger) Next() (key, value []byte, ok bool) {
	winner := -1
	for i, ready := range m.ready {
		if !ready {
			continue
		}
		if winner == -1 || bytes.Compare(m.iters[i].CurrentKey(), m.iters[winner].CurrentKey()) < 0 {
			winner = i
		}
	}
	if winner == -1 {
		return nil, nil, false
	}

	key = append([]byte(nil), m.iters[winner].CurrentKey()...)
	value = append([]byte(nil), m.iters[winner].CurrentValue()...)

	for i, ready := range m.ready {
		if ready && bytes.Equal(m.iters[i].CurrentKey(), key) {
			m.ready[i] = m.iters[i].Advance()
		}
	}
	return key, value, true
}
