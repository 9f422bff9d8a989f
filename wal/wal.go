// Package wal implements the write-ahead log: an ordered sequence of
// segment files, one per on-disk file, named by a monotonic number so
// directory-listing plus sort yields insertion order. Each record is
// length-prefixed, Snappy-compressed, and padded to an 8-byte
// boundary; replay memory-maps a segment and walks it by length
// prefix.
package wal

import (
	"os"
	"sync"

	"github.com/Priyanshu23/flashkv/errs"
	"github.com/Priyanshu23/flashkv/record"
)

type segmentHandle struct {
	num  uint64
	path string
	f    *os.File
	size int64
}

// NextFileNumber is supplied by the engine (backed by the manifest's
// monotonic counter, shared with SST file numbers) so that WAL
// segments and SSTs draw from a single numbering space.
type NextFileNumber func() uint64

// WAL is the ordered sequence of segments backing the active and
// frozen memtables.
type WAL struct {
	mu       sync.RWMutex
	dir      string
	segments []*segmentHandle // oldest..youngest; last is active
	nextNum  NextFileNumber
}

// Open enumerates existing segments in dir and adopts them, deleting
// any that are empty. If no segments exist, one is created via
// nextNum.
func Open(dir string, nextNum NextFileNumber) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New(errs.IO, "wal.Open", err)
	}

	w := &WAL{dir: dir, nextNum: nextNum}

	nums, err := listSegments(dir)
	if err != nil {
		return nil, err
	}

	for _, n := range nums {
		path := segmentPath(dir, n)
		info, err := os.Stat(path)
		if err != nil {
			return nil, errs.New(errs.IO, "wal.Open", err)
		}
		if info.Size() == 0 {
			_ = os.Remove(path)
			continue
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errs.New(errs.IO, "wal.Open", err)
		}
		w.segments = append(w.segments, &segmentHandle{num: n, path: path, f: f, size: info.Size()})
	}

	if len(w.segments) == 0 {
		if err := w.newSegLocked(); err != nil {
			return nil, err
		}
	}

	return w, nil
}

func (w *WAL) newSegLocked() error {
	num := w.nextNum()
	path := segmentPath(w.dir, num)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errs.New(errs.IO, "wal.newSeg", err)
	}
	w.segments = append(w.segments, &segmentHandle{num: num, path: path, f: f})
	return nil
}

// NewSeg starts a fresh segment; called when the active memtable is
// frozen.
func (w *WAL) NewSeg() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.newSegLocked()
}

// SegCount reports the number of live segments.
func (w *WAL) SegCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.segments)
}

// CurrentSegSize reports the active (youngest) segment's byte count.
func (w *WAL) CurrentSegSize() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.segments) == 0 {
		return 0
	}
	return w.segments[len(w.segments)-1].size
}

// Append encodes rec and writes it to the active segment, flushing to
// the OS buffer and syncing before returning. A successful return
// means the record has left user-space. WAL append errors abort the
// write; the caller must not mutate the memtable on error.
func (w *WAL) Append(rec record.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.segments) == 0 {
		if err := w.newSegLocked(); err != nil {
			return err
		}
	}

	seg := w.segments[len(w.segments)-1]
	buf := encodeRecord(rec)

	n, err := seg.f.Write(buf)
	if err != nil {
		return errs.New(errs.WAL, "wal.Append", err)
	}
	if err := seg.f.Sync(); err != nil {
		return errs.New(errs.WAL, "wal.Append", err)
	}
	seg.size += int64(n)
	return nil
}

// ConsumeSeg deletes the oldest segment file — called only after an
// SST containing its records is durably recorded in the manifest.
func (w *WAL) ConsumeSeg() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.segments) == 0 {
		return nil
	}
	seg := w.segments[0]
	if err := seg.f.Close(); err != nil {
		return errs.New(errs.IO, "wal.ConsumeSeg", err)
	}
	if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) {
		return errs.New(errs.IO, "wal.ConsumeSeg", err)
	}
	w.segments = w.segments[1:]
	return nil
}

// OldestSegmentPath returns the file path of the oldest live segment,
// the one the next ConsumeSeg deletes.
func (w *WAL) OldestSegmentPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.segments) == 0 {
		return ""
	}
	return w.segments[0].path
}

// Close closes all open segment file handles.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for _, seg := range w.segments {
		if err := seg.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Segments returns the live segment paths oldest-first, used by the
// engine to drive replay.
func (w *WAL) Segments() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, len(w.segments))
	for i, s := range w.segments {
		paths[i] = s.path
	}
	return paths
}
