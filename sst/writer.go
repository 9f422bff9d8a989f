// Package sst implements the sorted-string table format: a sequence
// of prefix-compressed, restart-pointed data blocks, a meta block
// (min key, max key, approximate-membership filter), an index block
// mapping separator keys to block handles, and a fixed 48-byte footer
// ending in a magic constant.
package sst

import (
	"os"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Priyanshu23/flashkv/errs"
)

// Options configures block size, restart interval, and compression for
// both the writer and the reader.
type Options struct {
	BlockSize      int
	RestartIntvl   int // informational; restartInterval is the build-time constant actually used
	Compress       bool
	FilterEstimate uint
	FilterFP       float64
	Cache          *BlockCache
}

func DefaultOptions() Options {
	return Options{
		BlockSize:      4 * 1024,
		Compress:       true,
		FilterEstimate: 100000,
		FilterFP:       0.01,
	}
}

const opPut = byte(0)
const opDelete = byte(1)

// Writer builds an SST file by feeding strictly-increasing keys.
type Writer struct {
	f      *os.File
	opt    Options
	offset uint64

	data  *BlockBuilder
	index *BlockBuilder

	minKey, maxKey []byte
	filter         *bloom.BloomFilter

	totalSizeEstimate int
}

// Create opens path for writing and begins a new SST.
func Create(path string, opt Options) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.New(errs.IO, "sst.Create", err)
	}
	return &Writer{
		f:      f,
		opt:    opt,
		data:   NewBlockBuilder(),
		index:  NewBlockBuilder(),
		filter: bloom.NewWithEstimates(opt.FilterEstimate, opt.FilterFP),
	}, nil
}

// TotalSizeEstimate approximates the bytes written plus pending,
// used by the compactor to decide when to roll over to a new file.
func (w *Writer) TotalSizeEstimate() int { return w.totalSizeEstimate }

// Add appends one (key, value) entry. deleted marks a tombstone; value
// is ignored when deleted is true.
func (w *Writer) Add(key, value []byte, deleted bool) error {
	w.totalSizeEstimate += len(key) + len(value)

	if w.data.SizeEstimate() > w.opt.BlockSize {
		if err := w.closeDataBlock(key); err != nil {
			return err
		}
	}

	encoded := EncodeEntryValue(value, deleted)
	w.data.Add(key, encoded)

	if w.minKey == nil {
		w.minKey = append([]byte(nil), key...)
	}
	w.maxKey = append([]byte(nil), key...)
	w.filter.Add(key)

	return nil
}

func EncodeEntryValue(value []byte, deleted bool) []byte {
	op := opPut
	if deleted {
		op = opDelete
		value = nil
	}
	out := make([]byte, 1+len(value))
	out[0] = op
	copy(out[1:], value)
	return out
}

func DecodeEntryValue(raw []byte) (value []byte, deleted bool) {
	if len(raw) == 0 {
		return nil, false
	}
	if raw[0] == opDelete {
		return nil, true
	}
	return raw[1:], false
}

// closeDataBlock finalises the current data block, using the shortest
// separator between its last key and nextKey as the index entry's key.
func (w *Writer) closeDataBlock(nextKey []byte) error {
	sep := shortestSeparator(w.data.LastKey(), nextKey)

	bh, err := writeBlock(w.f, w.data.Finish(), w.offset, w.opt.Compress)
	if err != nil {
		return err
	}
	w.offset = bh.Offset + bh.Size

	var bhBuf [32]byte
	n := bh.Encode(bhBuf[:])
	w.index.Add(sep, bhBuf[:n])

	w.data.Reset()
	return nil
}

// Flush finalises any pending data block (using the shortest successor
// of its last key as separator), then writes the meta block, the
// index block, and the footer.
func (w *Writer) Flush() error {
	if !w.data.Empty() {
		if err := w.closeDataBlock(shortestSuccessor(w.data.LastKey())); err != nil {
			return err
		}
	}

	metaRaw, err := buildMetaBlock(w.minKey, w.maxKey, w.filter)
	if err != nil {
		return err
	}
	metaBH, err := writeBlock(w.f, metaRaw, w.offset, w.opt.Compress)
	if err != nil {
		return err
	}
	w.offset = metaBH.Offset + metaBH.Size

	indexBH, err := writeBlock(w.f, w.index.Finish(), w.offset, w.opt.Compress)
	if err != nil {
		return err
	}
	w.offset = indexBH.Offset + indexBH.Size

	footer := Footer{Meta: metaBH, Index: indexBH}
	if _, err := w.f.Write(footer.Encode()); err != nil {
		return errs.New(errs.IO, "sst.Flush", err)
	}

	if err := w.f.Sync(); err != nil {
		return errs.New(errs.IO, "sst.Flush", err)
	}
	return w.f.Close()
}

// MinKey and MaxKey report the range seen so far (valid after at
// least one Add).
func (w *Writer) MinKey() []byte { return w.minKey }
func (w *Writer) MaxKey() []byte { return w.maxKey }
