package wal

import (
	"encoding/binary"
	"iter"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/Priyanshu23/flashkv/errs"
	"github.com/Priyanshu23/flashkv/record"
)

// ReplaySegment memory-maps the segment file at path and walks its
// records by length prefix. A decompression or bounds error on the
// segment's trailing record is treated as a torn write and iteration
// stops there silently; the same failure on a non-trailing record is
// reported. Replay is idempotent: rerunning it over the same segment
// yields the same sequence.
func ReplaySegment(path string) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(record.Record{}, errs.New(errs.IO, "wal.ReplaySegment", err))
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			yield(record.Record{}, errs.New(errs.IO, "wal.ReplaySegment", err))
			return
		}
		if info.Size() == 0 {
			return
		}

		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			yield(record.Record{}, errs.New(errs.IO, "wal.ReplaySegment", err))
			return
		}
		defer m.Unmap()

		buf := []byte(m)
		off := 0
		for off < len(buf) {
			rec, consumed, ok, err := decodeRecord(buf[off:])
			if err != nil {
				// A record that fails to decode and reaches the end of
				// the file (including one truncated past it) is a torn
				// final write and is absorbed silently; any other
				// failure is middle corruption and is reported.
				payloadLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
				if off+4+payloadLen+padding(4+payloadLen) >= len(buf) {
					return
				}
				yield(record.Record{}, err)
				return
			}
			if !ok {
				// Zero length prefix (including a fully zero-padded
				// tail): end of written data.
				return
			}
			if !yield(rec, nil) {
				return
			}
			off += consumed
		}
	}
}
