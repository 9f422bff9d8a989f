// Package manifest holds the durable level→file-name mapping (the
// commit point of every on-disk change) and the in-memory SST catalog
// that mirrors it with open readers.
package manifest

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/Priyanshu23/flashkv/errs"
)

const manifestFileName = "MANIFEST"

// levelFiles is the durable, per-level list of live file names.
type levelFiles struct {
	Files []string
}

// persisted is the on-disk shape of the manifest: ordered list of
// levels, each holding a list of file-names, plus the next file
// number.
type persisted struct {
	Levels         []levelFiles
	NextFileNumber uint64
}

// Manifest is the single source of truth for which SST files are
// live. Any SST on disk not listed here is garbage; any file-name
// listed here must exist on disk.
type Manifest struct {
	mu       sync.Mutex
	dir      string
	maxLevel int
	state    persisted
}

// Open loads dir's MANIFEST file, or initialises an empty one (with
// maxLevel empty levels and file-number 1) if none exists.
func Open(dir string, maxLevel int) (*Manifest, error) {
	m := &Manifest{dir: dir, maxLevel: maxLevel}

	path := filepath.Join(dir, manifestFileName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		m.state = persisted{Levels: make([]levelFiles, maxLevel), NextFileNumber: 1}
		if err := m.flushLocked(); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err != nil {
		return nil, errs.New(errs.IO, "manifest.Open", err)
	}
	defer f.Close()

	var st persisted
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return nil, errs.New(errs.Serialisation, "manifest.Open", err)
	}
	for len(st.Levels) < maxLevel {
		st.Levels = append(st.Levels, levelFiles{})
	}
	m.state = st
	return m, nil
}

// NextFileNumber returns the next file number and persists the
// incremented counter.
func (m *Manifest) NextFileNumber() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.state.NextFileNumber
	m.state.NextFileNumber++
	if err := m.flushLocked(); err != nil {
		m.state.NextFileNumber = n
		return 0, err
	}
	return n, nil
}

// PeekNextFileNumber returns the next number without allocating it.
func (m *Manifest) PeekNextFileNumber() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.NextFileNumber
}

// Apply mutates one level's file-name list in a single durable step:
// removed files are deleted from the list and added files are appended
// (the manifest only stores names; keeping L1+ readers sorted is the
// catalog's job). The manifest is flushed atomically before returning.
func (m *Manifest) Apply(level int, add, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lvl := &m.state.Levels[level]
	if len(remove) > 0 {
		removeSet := make(map[string]bool, len(remove))
		for _, r := range remove {
			removeSet[r] = true
		}
		kept := lvl.Files[:0]
		for _, f := range lvl.Files {
			if !removeSet[f] {
				kept = append(kept, f)
			}
		}
		lvl.Files = kept
	}
	lvl.Files = append(lvl.Files, add...)

	return m.flushLocked()
}

// Levels returns a snapshot of each level's file names.
func (m *Manifest) Levels() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.state.Levels))
	for i, l := range m.state.Levels {
		out[i] = append([]string(nil), l.Files...)
	}
	return out
}

// flushLocked writes the manifest atomically: write to a temp file,
// fsync, then rename over MANIFEST. Callers hold m.mu.
func (m *Manifest) flushLocked() error {
	path := filepath.Join(m.dir, manifestFileName)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return errs.New(errs.IO, "manifest.flush", err)
	}
	if err := gob.NewEncoder(f).Encode(m.state); err != nil {
		f.Close()
		return errs.New(errs.Serialisation, "manifest.flush", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.New(errs.IO, "manifest.flush", err)
	}
	if err := f.Close(); err != nil {
		return errs.New(errs.IO, "manifest.flush", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.New(errs.IO, "manifest.flush", err)
	}
	return nil
}
