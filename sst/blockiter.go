package sst

import (
	"bytes"
	"encoding/binary"
)

// BlockIter walks a block's entries forward, backward, or via seek.
// It supports Advance, Prev, Seek, SeekToLast, Reset, and
// CurrentKey/CurrentValue.
type BlockIter struct {
	raw            []byte
	restartsOffset int

	key           []byte
	currentOffset int
	nextOffset    int
	valOffset     int
	curRestartIdx int
}

func newBlockIter(raw []byte, restartsOffset int) *BlockIter {
	return &BlockIter{raw: raw, restartsOffset: restartsOffset}
}

func (it *BlockIter) restartCount() int {
	if it.restartsOffset < 0 {
		return 0
	}
	return (len(it.raw) - 4 - it.restartsOffset) / 4
}

func (it *BlockIter) restartPointOffset(idx int) int {
	off := it.restartsOffset + 4*idx
	return int(le32(it.raw[off : off+4]))
}

// parseEntryAt decodes the entry at it.nextOffset and advances
// nextOffset/valOffset past it; returns shared, non-shared lengths and
// the size of the varint header.
func (it *BlockIter) parseEntryAt() (shared, nonShared, headLen int) {
	p := it.raw[it.nextOffset:]
	s, n1 := binary.Uvarint(p)
	ns, n2 := binary.Uvarint(p[n1:])
	vl, n3 := binary.Uvarint(p[n1+n2:])
	headLen = n1 + n2 + n3
	shared, nonShared = int(s), int(ns)

	it.valOffset = it.nextOffset + headLen + nonShared
	it.nextOffset = it.valOffset + int(vl)
	return shared, nonShared, headLen
}

func (it *BlockIter) assembleKey(offset, shared, nonShared int) {
	it.key = append(it.key[:shared], it.raw[offset:offset+nonShared]...)
}

func (it *BlockIter) Valid() bool {
	return it.valOffset > 0 && it.valOffset <= it.restartsOffset
}

func (it *BlockIter) Advance() bool {
	if it.nextOffset >= it.restartsOffset {
		it.key = it.key[:0]
		return false
	}
	it.currentOffset = it.nextOffset

	shared, nonShared, headLen := it.parseEntryAt()
	it.assembleKey(it.currentOffset+headLen, shared, nonShared)

	rc := it.restartCount()
	for it.curRestartIdx+1 < rc && it.restartPointOffset(it.curRestartIdx+1) < it.currentOffset {
		it.curRestartIdx++
	}
	return true
}

func (it *BlockIter) Prev() bool {
	orig := it.currentOffset
	if orig == 0 {
		it.Reset()
		return false
	}

	for it.restartPointOffset(it.curRestartIdx) >= orig {
		it.curRestartIdx--
	}
	it.nextOffset = it.restartPointOffset(it.curRestartIdx)

	var r bool
	for {
		r = it.Advance()
		if it.nextOffset >= orig {
			break
		}
	}
	return r
}

func (it *BlockIter) CurrentKey() []byte {
	if !it.Valid() {
		return nil
	}
	return it.key
}

func (it *BlockIter) CurrentValue() []byte {
	if !it.Valid() {
		return nil
	}
	return it.raw[it.valOffset:it.nextOffset]
}

func (it *BlockIter) Reset() {
	it.key = it.key[:0]
	it.nextOffset = 0
	it.valOffset = 0
	it.curRestartIdx = 0
}

func (it *BlockIter) seekToRestartPoint(idx int) {
	off := it.restartPointOffset(idx)
	it.nextOffset = off
	it.currentOffset = off
	it.curRestartIdx = idx

	shared, nonShared, headLen := it.parseEntryAt()
	it.assembleKey(off+headLen, shared, nonShared)
}

// Seek performs binary search over restart points, then scans forward
// to the smallest key >= to.
func (it *BlockIter) Seek(to []byte) {
	it.Reset()

	rc := it.restartCount()
	left, right := 0, 0
	if rc > 0 {
		right = rc - 1
	}

	for left < right {
		mid := (left + right + 1) / 2
		it.seekToRestartPoint(mid)
		if bytes.Compare(it.key, to) < 0 {
			left = mid
		} else {
			right = mid - 1
		}
	}

	it.curRestartIdx = left
	it.nextOffset = it.restartPointOffset(left)

	for it.Advance() {
		if bytes.Compare(it.key, to) >= 0 {
			break
		}
	}
}

// SeekToLast binary-searches to the last restart and scans forward to
// the final entry.
func (it *BlockIter) SeekToLast() {
	rc := it.restartCount()
	if rc > 0 {
		it.seekToRestartPoint(rc - 1)
	} else {
		it.Reset()
		return
	}
	for it.nextOffset < it.restartsOffset {
		it.Advance()
	}
}
