package wal

import (
	"os"
	"testing"

	"github.com/Priyanshu23/flashkv/record"
)

func counterFrom(n uint64) NextFileNumber {
	return func() uint64 {
		n++
		return n
	}
}

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, counterFrom(0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := []record.Record{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Deleted: true},
	}
	for _, rec := range want {
		if err := w.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	segs := w.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}

	var got []record.Record
	for rec, err := range ReplaySegment(segs[0]) {
		if err != nil {
			t.Fatalf("ReplaySegment: %v", err)
		}
		got = append(got, rec)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if string(got[i].Key) != string(want[i].Key) || got[i].Deleted != want[i].Deleted {
			t.Fatalf("record %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
		if !got[i].Deleted && string(got[i].Value) != string(want[i].Value) {
			t.Fatalf("record %d value mismatch: got %q want %q", i, got[i].Value, want[i].Value)
		}
	}
}

func TestNewSegAndConsumeSeg(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, counterFrom(0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := w.Append(record.Record{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.NewSeg(); err != nil {
		t.Fatalf("NewSeg: %v", err)
	}
	if w.SegCount() != 2 {
		t.Fatalf("expected 2 segments, got %d", w.SegCount())
	}

	oldest := w.OldestSegmentPath()
	if err := w.ConsumeSeg(); err != nil {
		t.Fatalf("ConsumeSeg: %v", err)
	}
	if w.SegCount() != 1 {
		t.Fatalf("expected 1 segment after consume, got %d", w.SegCount())
	}
	if w.OldestSegmentPath() == oldest {
		t.Fatalf("expected the oldest segment to change after consume")
	}
}

func TestOpenAdoptsExistingSegmentsAndDropsEmpty(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, counterFrom(0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Append(record.Record{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.NewSeg(); err != nil {
		t.Fatalf("NewSeg: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w2, err := Open(dir, counterFrom(100))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w2.Close()

	// the empty trailing segment created by NewSeg should have been
	// dropped on reopen, leaving just the one with data.
	if w2.SegCount() != 1 {
		t.Fatalf("expected 1 segment after reopen, got %d", w2.SegCount())
	}
}

func TestReplayAbsorbsTornTail(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, counterFrom(0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Append(record.Record{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	path := w.Segments()[0]
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	appendGarbage(t, path, []byte{0x09, 0x00, 0x00, 0x00, 0xff, 0xff})

	var got []record.Record
	for rec, err := range ReplaySegment(path) {
		if err != nil {
			t.Fatalf("ReplaySegment should absorb a torn tail silently, got: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 valid record before the torn tail, got %d", len(got))
	}
}

func appendGarbage(t *testing.T, path string, b []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
}
