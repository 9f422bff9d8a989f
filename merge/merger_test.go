package merge

import (
	"reflect"
	"testing"
)

// fakeIter walks a fixed, pre-sorted slice of (key, value) pairs.
type fakeIter struct {
	keys, vals [][]byte
	pos        int
}

func newFakeIter(pairs ...[2]string) *fakeIter {
	fi := &fakeIter{pos: -1}
	for _, p := range pairs {
		fi.keys = append(fi.keys, []byte(p[0]))
		fi.vals = append(fi.vals, []byte(p[1]))
	}
	return fi
}

func (f *fakeIter) Valid() bool { return f.pos >= 0 && f.pos < len(f.keys) }
func (f *fakeIter) Advance() bool {
	f.pos++
	return f.pos < len(f.keys)
}
func (f *fakeIter) CurrentKey() []byte   { return f.keys[f.pos] }
func (f *fakeIter) CurrentValue() []byte { return f.vals[f.pos] }

func drain(m *Merger) [][2]string {
	var out [][2]string
	for {
		k, v, ok := m.Next()
		if !ok {
			break
		}
		out = append(out, [2]string{string(k), string(v)})
	}
	return out
}

func TestMergerSingleIter(t *testing.T) {
	it := newFakeIter([2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})
	m := New([]Iter{it})

	got := drain(m)
	want := [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergerInterleaved(t *testing.T) {
	a := newFakeIter([2]string{"a", "1"}, [2]string{"c", "3"}, [2]string{"e", "5"})
	b := newFakeIter([2]string{"b", "2"}, [2]string{"d", "4"})
	m := New([]Iter{a, b})

	got := drain(m)
	want := [][2]string{
		{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergerFirstListedWinsOnTie(t *testing.T) {
	newer := newFakeIter([2]string{"a", "new-a"}, [2]string{"b", "new-b"})
	older := newFakeIter([2]string{"a", "old-a"}, [2]string{"b", "old-b"}, [2]string{"c", "old-c"})

	m := New([]Iter{newer, older})
	got := drain(m)
	want := [][2]string{
		{"a", "new-a"}, {"b", "new-b"}, {"c", "old-c"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMergerDuplicateKeyAcrossThreeIters(t *testing.T) {
	i1 := newFakeIter([2]string{"k", "from-1"})
	i2 := newFakeIter([2]string{"k", "from-2"})
	i3 := newFakeIter([2]string{"k", "from-3"})

	m := New([]Iter{i1, i2, i3})
	got := drain(m)
	if len(got) != 1 {
		t.Fatalf("expected key 'k' emitted exactly once across 3 iterators, got %d entries: %v", len(got), got)
	}
	if got[0][1] != "from-1" {
		t.Fatalf("expected first-listed iterator's value to win, got %q", got[0][1])
	}
}

func TestMergerEmpty(t *testing.T) {
	m := New(nil)
	if _, _, ok := m.Next(); ok {
		t.Fatalf("expected no entries from an empty merger")
	}
}
