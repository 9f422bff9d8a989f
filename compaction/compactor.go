// Package compaction implements major (level-to-level) compaction: it
// operates purely on a manifest.Catalog, sst readers/writers, and the
// merge package, with no knowledge of the memtable or WAL so it can run
// independently of minor compaction.
package compaction

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Priyanshu23/flashkv/errs"
	"github.com/Priyanshu23/flashkv/manifest"
	"github.com/Priyanshu23/flashkv/merge"
	"github.com/Priyanshu23/flashkv/sst"
)

// FileNumberer allocates the next globally-unique file number, shared
// with the WAL's segment numbering.
type FileNumberer interface {
	NextFileNumber() (uint64, error)
}

// Compactor runs one round of major compaction at a time against dir,
// picking the highest-scoring eligible level per catalog.ComputeCompactionLevels.
type Compactor struct {
	dir      string
	catalog  *manifest.Catalog
	numberer FileNumberer
	opt      sst.Options
	sstMax   int64
	log      *zap.SugaredLogger
}

// New builds a Compactor writing new SSTs under dir.
func New(dir string, catalog *manifest.Catalog, numberer FileNumberer, opt sst.Options, sstMax int64, log *zap.SugaredLogger) *Compactor {
	return &Compactor{dir: dir, catalog: catalog, numberer: numberer, opt: opt, sstMax: sstMax, log: log}
}

// RunOnce performs at most one level's worth of compaction, chosen by
// score. It reports whether any work was done.
func (c *Compactor) RunOnce() (bool, error) {
	levels := c.catalog.ComputeCompactionLevels()
	if len(levels) == 0 {
		return false, nil
	}
	target := levels[0].Level

	inputs, fromAll := c.pickInputs(target)
	if len(inputs) == 0 {
		return false, nil
	}

	minKey, maxKey := rangeOf(inputs)
	overlaps := c.catalog.OverlappingReaders(target+1, minKey, maxKey)

	c.log.Infow("major compaction starting",
		"level", target, "inputs", len(inputs), "overlaps", len(overlaps),
		"minKey", string(minKey), "maxKey", string(maxKey))

	// Lₙ inputs are listed before Lₙ₊₁ overlaps so tie-breaking in the
	// merger prefers the newer (lower) level on an exact key collision.
	iters := make([]merge.Iter, 0, len(inputs)+len(overlaps))
	for _, r := range inputs {
		iters = append(iters, r.Iterator())
	}
	for _, r := range overlaps {
		iters = append(iters, r.Iterator())
	}

	dropTombstones := target+1 == c.catalog.NumLevels()-1
	newReaders, err := c.writeMerged(iters, dropTombstones)
	if err != nil {
		return false, err
	}

	oldNames := make([]string, len(inputs))
	for i, r := range inputs {
		oldNames[i] = r.FileName()
	}
	overlapNames := make([]string, len(overlaps))
	for i, r := range overlaps {
		overlapNames[i] = r.FileName()
	}

	if err := c.catalog.AddMany(target+1, newReaders); err != nil {
		return false, err
	}
	if err := c.catalog.RemoveByFileNames(target, oldNames); err != nil {
		return false, err
	}
	if len(overlapNames) > 0 {
		if err := c.catalog.RemoveByFileNames(target+1, overlapNames); err != nil {
			return false, err
		}
	}

	for _, name := range oldNames {
		_ = os.Remove(filepath.Join(c.dir, name))
	}
	for _, name := range overlapNames {
		_ = os.Remove(filepath.Join(c.dir, name))
	}

	if !fromAll {
		c.catalog.SetLastCompactKey(target, maxKey)
	} else {
		c.catalog.SetLastCompactKey(target, nil)
	}

	c.log.Infow("major compaction finished", "level", target, "newFiles", len(newReaders))
	return true, nil
}

// pickInputs selects the input readers for level. L0 is fully
// overlapping so every reader is taken, youngest-first (fromAll=true,
// no round-robin pointer to advance). L1+ is disjoint: one file is
// picked past the round-robin pointer, wrapping to the first file if
// the pointer is past every key.
func (c *Compactor) pickInputs(level int) (readers []*sst.Reader, fromAll bool) {
	all := c.catalog.GetReaders(level)
	if len(all) == 0 {
		return nil, false
	}
	if level == 0 {
		out := make([]*sst.Reader, len(all))
		for i, r := range all {
			out[len(all)-1-i] = r
		}
		return out, true
	}

	last := c.catalog.LastCompactKey(level)
	for _, r := range all {
		if last == nil || bytes.Compare(r.MaxKey(), last) > 0 {
			return []*sst.Reader{r}, false
		}
	}
	return []*sst.Reader{all[0]}, false
}

func rangeOf(readers []*sst.Reader) (min, max []byte) {
	for _, r := range readers {
		if min == nil || bytes.Compare(r.MinKey(), min) < 0 {
			min = r.MinKey()
		}
		if max == nil || bytes.Compare(r.MaxKey(), max) > 0 {
			max = r.MaxKey()
		}
	}
	return min, max
}

// writeMerged drains the merged stream of iters into one or more new
// SST files, rolling over to a fresh file whenever the current one's
// size estimate reaches sstMax. When dropTombstones is set (the output
// is the deepest level), tombstones are not written.
func (c *Compactor) writeMerged(iters []merge.Iter, dropTombstones bool) ([]*sst.Reader, error) {
	var out []*sst.Reader

	w, path, err := c.newWriter()
	if err != nil {
		return nil, err
	}

	m := merge.New(iters)
	wrote := false
	for {
		key, value, ok := m.Next()
		if !ok {
			break
		}
		val, deleted := sst.DecodeEntryValue(value)
		if deleted && dropTombstones {
			continue
		}
		if err := w.Add(key, val, deleted); err != nil {
			return nil, err
		}
		wrote = true

		if int64(w.TotalSizeEstimate()) >= c.sstMax {
			r, err := c.finish(w, path)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
			wrote = false

			w, path, err = c.newWriter()
			if err != nil {
				return nil, err
			}
		}
	}

	if wrote {
		r, err := c.finish(w, path)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, nil
}

func (c *Compactor) newWriter() (*sst.Writer, string, error) {
	num, err := c.numberer.NextFileNumber()
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(c.dir, fmt.Sprintf("%08d.sst", num))
	w, err := sst.Create(path, c.opt)
	if err != nil {
		return nil, "", err
	}
	return w, path, nil
}

func (c *Compactor) finish(w *sst.Writer, path string) (*sst.Reader, error) {
	if err := w.Flush(); err != nil {
		return nil, err
	}
	r, err := sst.Open(path, c.opt)
	if err != nil {
		return nil, errs.New(errs.IO, "compaction.finish", err)
	}
	return r, nil
}
