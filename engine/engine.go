// Package engine ties together the memtable, WAL, manifest, catalog,
// and compaction packages behind a single key-value façade: Insert,
// Get, Remove, Info, and an on-demand MajorCompaction trigger. It owns
// the two background loops that drive minor and major compaction.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Priyanshu23/flashkv/compaction"
	"github.com/Priyanshu23/flashkv/config"
	"github.com/Priyanshu23/flashkv/errs"
	"github.com/Priyanshu23/flashkv/manifest"
	"github.com/Priyanshu23/flashkv/memtable"
	"github.com/Priyanshu23/flashkv/record"
	"github.com/Priyanshu23/flashkv/sst"
	"github.com/Priyanshu23/flashkv/wal"
)

const blockCacheCapacity = 4096

// Engine is the storage engine façade. Writes go to the WAL then the
// active memtable; reads check the active memtable, the frozen-table
// queue, then each level of the catalog, youngest data first.
type Engine struct {
	cfg config.Config
	log *zap.SugaredLogger
	dir string

	mu     sync.Mutex // guards active and queue together
	active *memtable.Memtable
	queue  *memtable.Queue

	wal       *wal.WAL
	manifest  *manifest.Manifest
	catalog   *manifest.Catalog
	compactor *compaction.Compactor
	sstOpt    sst.Options

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Open recovers or initialises an engine rooted at cfg.WorkDir.
func Open(cfg config.Config, log *zap.SugaredLogger) (*Engine, error) {
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, errs.New(errs.IO, "engine.Open", err)
	}

	m, err := manifest.Open(cfg.WorkDir, cfg.MaxLevel)
	if err != nil {
		return nil, err
	}

	sstOpt := sst.DefaultOptions()
	sstOpt.BlockSize = cfg.BlockSize
	sstOpt.RestartIntvl = cfg.BlockRestartIntvl
	sstOpt.Cache = sst.NewBlockCache(blockCacheCapacity)

	catalog, err := manifest.NewCatalog(m, cfg.WorkDir, sstOpt, cfg.L0CompactionTrigger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		dir:      cfg.WorkDir,
		queue:    memtable.NewQueue(cfg.ImmMemTableMaxCount),
		manifest: m,
		catalog:  catalog,
		sstOpt:   sstOpt,
		closeCh:  make(chan struct{}),
	}
	e.compactor = compaction.New(cfg.WorkDir, catalog, m, sstOpt, cfg.SSTMaxSize, log)

	walDir := filepath.Join(cfg.WorkDir, "wal")
	w, err := wal.Open(walDir, func() uint64 {
		n, err := m.NextFileNumber()
		if err != nil {
			log.Fatalw("failed to allocate file number for WAL segment", "error", err)
		}
		return n
	})
	if err != nil {
		return nil, err
	}
	e.wal = w

	if err := e.recover(); err != nil {
		return nil, err
	}

	e.wg.Add(2)
	go e.minorLoop()
	go e.majorLoop()

	return e, nil
}

// recover replays every live WAL segment, one memtable per segment:
// all but the youngest become frozen (queued) tables, the youngest
// becomes the active table future writes continue into.
func (e *Engine) recover() error {
	paths := e.wal.Segments()
	if len(paths) == 0 {
		e.active = memtable.New(int(e.cfg.MemTableMaxSize))
		return nil
	}

	tables := make([]*memtable.Memtable, len(paths))
	for i, path := range paths {
		mt := memtable.New(int(e.cfg.MemTableMaxSize))
		for rec, err := range wal.ReplaySegment(path) {
			if err != nil {
				return err
			}
			if rec.Deleted {
				mt.Delete(rec.Key)
			} else {
				mt.Put(rec.Key, rec)
			}
		}
		tables[i] = mt
	}

	for i := 0; i < len(tables)-1; i++ {
		e.queue.Push(tables[i])
	}
	e.active = tables[len(tables)-1]

	e.log.Infow("recovered from WAL", "segments", len(paths), "queued", len(tables)-1)
	return nil
}

// Insert durably appends key=value then applies it to the active
// memtable, freezing the table if it is now full.
func (e *Engine) Insert(key, value []byte) error {
	rec := record.Record{Key: key, Value: value}
	if err := e.wal.Append(rec); err != nil {
		return err
	}

	e.mu.Lock()
	e.active.Put(key, rec)
	full := e.active.Full()
	e.mu.Unlock()

	if full {
		return e.freeze()
	}
	return nil
}

// Remove durably appends a tombstone for key then applies it to the
// active memtable.
func (e *Engine) Remove(key []byte) error {
	rec := record.Record{Key: append([]byte(nil), key...), Deleted: true}
	if err := e.wal.Append(rec); err != nil {
		return err
	}

	e.mu.Lock()
	e.active.Delete(key)
	full := e.active.Full()
	e.mu.Unlock()

	if full {
		return e.freeze()
	}
	return nil
}

// freeze moves the active memtable into the frozen queue and starts a
// fresh WAL segment for the new active table. If the queue is full,
// nothing is frozen: the active memtable keeps accepting writes past
// its size limit, and the writer is neither blocked nor given an error.
func (e *Engine) freeze() error {
	e.mu.Lock()
	if e.queue.Full() {
		e.mu.Unlock()
		e.log.Warnw("frozen memtable queue full, skipping freeze", "queueLen", e.queue.Len())
		return nil
	}
	frozen := e.active.Clone()
	e.queue.Push(frozen)
	e.active = memtable.New(int(e.cfg.MemTableMaxSize))
	e.mu.Unlock()

	return e.wal.NewSeg()
}

// Get looks up key across the active memtable, the frozen queue, and
// every catalog level from L0 downward, returning errs.ErrNotFound if
// key is absent or shadowed by a tombstone.
func (e *Engine) Get(key []byte) ([]byte, error) {
	e.mu.Lock()
	if rec, ok := e.active.Get(key); ok {
		e.mu.Unlock()
		return valueOrNotFound(rec)
	}
	if rec, ok := e.queue.Get(key); ok {
		e.mu.Unlock()
		return valueOrNotFound(rec)
	}
	e.mu.Unlock()

	for lvl := 0; lvl < e.catalog.NumLevels(); lvl++ {
		for _, r := range e.catalog.SearchReaders(lvl, key) {
			val, deleted, found, err := r.Get(key)
			if err != nil {
				return nil, err
			}
			if found {
				if deleted {
					return nil, errs.ErrNotFound
				}
				return val, nil
			}
		}
	}
	return nil, errs.ErrNotFound
}

func valueOrNotFound(rec record.Record) ([]byte, error) {
	if rec.Deleted {
		return nil, errs.ErrNotFound
	}
	return rec.Value, nil
}

// LevelInfo reports one catalog level's file count and total size.
type LevelInfo struct {
	Level int
	Files int
	Bytes int64
}

// Info reports the engine's current shape: frozen-queue depth and
// per-level file counts, used by the store's info command.
type Info struct {
	QueueLen int
	Levels   []LevelInfo
}

func (e *Engine) Info() Info {
	e.mu.Lock()
	queueLen := e.queue.Len()
	e.mu.Unlock()

	info := Info{QueueLen: queueLen}
	for lvl := 0; lvl < e.catalog.NumLevels(); lvl++ {
		readers := e.catalog.GetReaders(lvl)
		var total int64
		for _, r := range readers {
			total += r.Size()
		}
		info.Levels = append(info.Levels, LevelInfo{Level: lvl, Files: len(readers), Bytes: total})
	}
	return info
}

// MajorCompaction triggers one round of major compaction immediately,
// outside the background loop's cadence.
func (e *Engine) MajorCompaction() (bool, error) {
	return e.compactor.RunOnce()
}

func (e *Engine) minorLoop() {
	defer e.wg.Done()
	t := time.NewTicker(time.Duration(e.cfg.ThreadSleepMS) * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-e.closeCh:
			return
		case <-t.C:
			for {
				did, err := e.minorCompactOnce()
				if err != nil {
					e.log.Errorw("minor compaction failed", "error", err)
					break
				}
				if !did {
					break
				}
			}
		}
	}
}

func (e *Engine) majorLoop() {
	defer e.wg.Done()
	t := time.NewTicker(time.Duration(e.cfg.ThreadSleepMS) * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-e.closeCh:
			return
		case <-t.C:
			for {
				did, err := e.compactor.RunOnce()
				if err != nil {
					e.log.Errorw("major compaction failed", "error", err)
					break
				}
				if !did {
					break
				}
			}
		}
	}
}

// minorCompactOnce flushes the oldest frozen memtable, if any, to a
// new L0 SST, then consumes the WAL segment that backed it.
func (e *Engine) minorCompactOnce() (bool, error) {
	e.mu.Lock()
	mt := e.queue.Oldest()
	e.mu.Unlock()
	if mt == nil {
		return false, nil
	}

	num, err := e.manifest.NextFileNumber()
	if err != nil {
		return false, err
	}
	path := filepath.Join(e.dir, fmt.Sprintf("%08d.sst", num))

	w, err := sst.Create(path, e.sstOpt)
	if err != nil {
		return false, err
	}
	for rec := range mt.Iterator() {
		if err := w.Add(rec.Key, rec.Value, rec.Deleted); err != nil {
			return false, err
		}
	}
	if err := w.Flush(); err != nil {
		return false, err
	}

	r, err := sst.Open(path, e.sstOpt)
	if err != nil {
		return false, errs.New(errs.IO, "engine.minorCompact", err)
	}
	if err := e.catalog.Add(0, r); err != nil {
		return false, err
	}

	e.mu.Lock()
	e.queue.Consume()
	e.mu.Unlock()

	if err := e.wal.ConsumeSeg(); err != nil {
		return false, err
	}

	e.log.Infow("minor compaction flushed memtable", "file", path, "records", mt.Len())
	return true, nil
}

// Close stops the background loops and closes the WAL.
func (e *Engine) Close() error {
	close(e.closeCh)
	e.wg.Wait()
	return e.wal.Close()
}
