package sst

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Priyanshu23/flashkv/errs"
)

// Reader opens an SST file and answers point lookups and iteration.
// It caches nothing itself beyond the index and meta blocks read at
// open time; data blocks are fetched through the shared block cache.
type Reader struct {
	f       *os.File
	opt     Options
	cacheID uint64

	footer Footer
	index  Block
	minKey []byte
	maxKey []byte
	filter *bloom.BloomFilter

	size     int64
	fileName string

	seekMissCount atomic.Uint64
}

// Open reads the footer, meta block, and index block of the SST file
// at path.
func Open(path string, opt Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.IO, "sst.Open", err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, errs.New(errs.IO, "sst.Open", err)
	}
	if info.Size() <= footerLen {
		return nil, errs.New(errs.InvalidData, "sst.Open", fmt.Errorf("file too small to be an SST: %s", path))
	}

	footerBuf := make([]byte, footerLen)
	if _, err := f.ReadAt(footerBuf, info.Size()-footerLen); err != nil {
		return nil, errs.New(errs.IO, "sst.Open", err)
	}
	footer, err := decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	metaBlock, err := readBlock(f, footer.Meta)
	if err != nil {
		return nil, err
	}
	minKey, maxKey, filter, err := parseMetaBlock(metaBlock.raw)
	if err != nil {
		return nil, err
	}

	indexBlock, err := readBlock(f, footer.Index)
	if err != nil {
		return nil, err
	}

	return &Reader{
		f:        f,
		opt:      opt,
		cacheID:  NewCacheID(),
		footer:   footer,
		index:    indexBlock,
		minKey:   minKey,
		maxKey:   maxKey,
		filter:   filter,
		size:     info.Size(),
		fileName: filepath.Base(path),
	}, nil
}

func (r *Reader) MinKey() []byte     { return r.minKey }
func (r *Reader) MaxKey() []byte     { return r.maxKey }
func (r *Reader) Size() int64        { return r.size }
func (r *Reader) FileName() string   { return r.fileName }
func (r *Reader) SeekMissCount() int { return int(r.seekMissCount.Load()) }

func (r *Reader) readDataBlock(bh BlockHandle) (Block, error) {
	if r.opt.Cache != nil {
		if b, ok := r.opt.Cache.get(r.cacheID, bh.Offset); ok {
			return b, nil
		}
	}
	b, err := readBlock(r.f, bh)
	if err != nil {
		return Block{}, err
	}
	if r.opt.Cache != nil {
		r.opt.Cache.insert(r.cacheID, bh.Offset, b)
	}
	return b, nil
}

// Get performs a point lookup: bounds-check against min/max, consult
// the filter, then seek the index and verify the data block's key.
func (r *Reader) Get(key []byte) (value []byte, deleted bool, found bool, err error) {
	if !keyInRange(key, r.minKey, r.maxKey) {
		return nil, false, false, nil
	}
	if !r.filter.Test(key) {
		r.seekMissCount.Add(1)
		return nil, false, false, nil
	}

	it := r.Iterator()
	it.Seek(key)
	k := it.CurrentKey()
	if k == nil || !bytes.Equal(k, key) {
		r.seekMissCount.Add(1)
		return nil, false, false, nil
	}
	val, del := DecodeEntryValue(it.CurrentValue())
	return val, del, true, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.f.Close() }

// Iterator returns a two-level iterator over the SST's records.
func (r *Reader) Iterator() *Iterator {
	return &Iterator{table: r, indexIter: r.index.Iter()}
}

// Iterator is a two-level (index + data) iterator over an SST's
// records, coordinating an index-block iterator with the data block
// it currently points into.
type Iterator struct {
	table     *Reader
	indexIter *BlockIter
	dataIter  *BlockIter
}

func (it *Iterator) loadDataBlock(indexValue []byte) error {
	bh, _ := DecodeBlockHandle(indexValue)
	b, err := it.table.readDataBlock(bh)
	if err != nil {
		return err
	}
	it.dataIter = b.Iter()
	return nil
}

func (it *Iterator) Valid() bool {
	return it.dataIter != nil && it.dataIter.Valid()
}

func (it *Iterator) Advance() bool {
	if it.dataIter != nil && it.dataIter.Advance() {
		return true
	}
	if !it.indexIter.Advance() {
		return false
	}
	if err := it.loadDataBlock(it.indexIter.CurrentValue()); err != nil {
		return false
	}
	return it.Advance()
}

func (it *Iterator) Prev() bool {
	if it.dataIter != nil && it.dataIter.Prev() {
		return true
	}
	if !it.indexIter.Prev() {
		return false
	}
	if err := it.loadDataBlock(it.indexIter.CurrentValue()); err != nil {
		return false
	}
	it.dataIter.SeekToLast()
	return it.dataIter.Valid()
}

func (it *Iterator) Seek(key []byte) {
	it.indexIter.Reset()
	it.indexIter.Seek(key)
	v := it.indexIter.CurrentValue()
	if v == nil {
		it.dataIter = nil
		return
	}
	if err := it.loadDataBlock(v); err != nil {
		it.dataIter = nil
		return
	}
	it.dataIter.Seek(key)
}

func (it *Iterator) SeekToLast() {
	it.indexIter.Reset()
	it.indexIter.SeekToLast()
	v := it.indexIter.CurrentValue()
	if v == nil {
		it.dataIter = nil
		return
	}
	if err := it.loadDataBlock(v); err != nil {
		it.dataIter = nil
		return
	}
	it.dataIter.SeekToLast()
}

func (it *Iterator) CurrentKey() []byte {
	if !it.Valid() {
		return nil
	}
	return it.dataIter.CurrentKey()
}

func (it *Iterator) CurrentValue() []byte {
	if !it.Valid() {
		return nil
	}
	return it.dataIter.CurrentValue()
}
