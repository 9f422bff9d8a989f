package manifest

import (
	"bytes"
	"sort"
	"sync"

	"github.com/Priyanshu23/flashkv/sst"
)

const compactionBaseBytes = 10 * 1024 * 1024 // 10 MiB

// Catalog mirrors the manifest in memory as per-level ordered lists of
// open SST readers. L0 is kept in insertion order (youngest last);
// L1+ is kept sorted by min-key.
type Catalog struct {
	mu             sync.RWMutex
	manifest       *Manifest
	levels         [][]*sst.Reader
	l0Trigger      int
	lastCompactKey [][]byte // per level, the round-robin pointer used by major compaction
}

// NewCatalog builds a catalog from the manifest's persisted state,
// opening every listed SST with opt.
func NewCatalog(m *Manifest, dir string, opt sst.Options, l0Trigger int) (*Catalog, error) {
	c := &Catalog{manifest: m, l0Trigger: l0Trigger}

	names := m.Levels()
	c.levels = make([][]*sst.Reader, len(names))
	c.lastCompactKey = make([][]byte, len(names))

	for lvl, files := range names {
		for _, name := range files {
			r, err := sst.Open(joinPath(dir, name), opt)
			if err != nil {
				return nil, err
			}
			c.levels[lvl] = append(c.levels[lvl], r)
		}
		if lvl >= 1 {
			sortByMinKey(c.levels[lvl])
		}
	}

	return c, nil
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func sortByMinKey(readers []*sst.Reader) {
	sort.Slice(readers, func(i, j int) bool {
		return bytes.Compare(readers[i].MinKey(), readers[j].MinKey()) < 0
	})
}

// NumLevels returns the number of levels the catalog tracks.
func (c *Catalog) NumLevels() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.levels)
}

// Add registers a new reader under level, appends its file name to the
// manifest, and flushes. L0 appends at the young end; L1+ keeps the
// sorted-by-min-key invariant.
func (c *Catalog) Add(level int, r *sst.Reader) error {
	return c.AddMany(level, []*sst.Reader{r})
}

// AddMany registers several readers under one level in a single
// manifest flush.
func (c *Catalog) AddMany(level int, readers []*sst.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(readers))
	for i, r := range readers {
		names[i] = r.FileName()
	}

	c.levels[level] = append(c.levels[level], readers...)
	if level >= 1 {
		sortByMinKey(c.levels[level])
	}

	return c.manifest.Apply(level, names, nil)
}

// RemoveByFileNames drops the named readers from level, closes their
// file handles, and flushes the manifest.
func (c *Catalog) RemoveByFileNames(level int, names []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[n] = true
	}

	kept := c.levels[level][:0]
	for _, r := range c.levels[level] {
		if nameSet[r.FileName()] {
			_ = r.Close()
			continue
		}
		kept = append(kept, r)
	}
	c.levels[level] = kept

	return c.manifest.Apply(level, nil, names)
}

// GetReaders returns a snapshot of level's reader list.
func (c *Catalog) GetReaders(level int) []*sst.Reader {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*sst.Reader(nil), c.levels[level]...)
}

// SearchReaders returns the subset of level's readers whose range
// covers key: for L0, all candidates in reverse (youngest first); for
// L1+, the single reader (if any) via sorted-order binary search.
func (c *Catalog) SearchReaders(level int, key []byte) []*sst.Reader {
	c.mu.RLock()
	defer c.mu.RUnlock()

	readers := c.levels[level]
	if level == 0 {
		var out []*sst.Reader
		for i := len(readers) - 1; i >= 0; i-- {
			r := readers[i]
			if bytes.Compare(key, r.MinKey()) >= 0 && bytes.Compare(key, r.MaxKey()) <= 0 {
				out = append(out, r)
			}
		}
		return out
	}

	i := sort.Search(len(readers), func(i int) bool {
		return bytes.Compare(readers[i].MinKey(), key) > 0
	})
	if i > 0 {
		r := readers[i-1]
		if bytes.Compare(key, r.MinKey()) >= 0 && bytes.Compare(key, r.MaxKey()) <= 0 {
			return []*sst.Reader{r}
		}
	}
	return nil
}

// OverlappingReaders returns level's readers whose key range intersects
// [min, max], in min-key order. Used by major compaction to find the
// Lₙ₊₁ files a chosen Lₙ input set must be merged against.
func (c *Catalog) OverlappingReaders(level int, min, max []byte) []*sst.Reader {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*sst.Reader
	for _, r := range c.levels[level] {
		if bytes.Compare(r.MinKey(), max) <= 0 && bytes.Compare(r.MaxKey(), min) >= 0 {
			out = append(out, r)
		}
	}
	return out
}

// score returns a level's compaction score: for L0, file-count over
// the trigger; for Lₙ, total bytes over base*10^(n-1).
func (c *Catalog) score(level int) float64 {
	readers := c.levels[level]
	if level == 0 {
		return float64(len(readers)) / float64(c.l0Trigger)
	}
	var total int64
	for _, r := range readers {
		total += r.Size()
	}
	denom := float64(compactionBaseBytes)
	for i := 0; i < level-1; i++ {
		denom *= 10
	}
	return float64(total) / denom
}

// CompactionLevel is a level eligible for compaction, with its score.
type CompactionLevel struct {
	Level int
	Score float64
}

// ComputeCompactionLevels returns levels whose score is at least 1.0,
// excluding the deepest level, ordered by descending score.
func (c *Catalog) ComputeCompactionLevels() []CompactionLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []CompactionLevel
	for lvl := range c.levels {
		if lvl == len(c.levels)-1 {
			continue
		}
		s := c.score(lvl)
		if s >= 1.0 {
			out = append(out, CompactionLevel{Level: lvl, Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// LastCompactKey returns level's round-robin pointer.
func (c *Catalog) LastCompactKey(level int) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCompactKey[level]
}

// SetLastCompactKey updates level's round-robin pointer.
func (c *Catalog) SetLastCompactKey(level int, key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCompactKey[level] = append([]byte(nil), key...)
}
