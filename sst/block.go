package sst

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"

	"github.com/Priyanshu23/flashkv/errs"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Block wraps a decoded (decompressed) block's raw content: the
// sequence of prefix-compressed entries followed by the restart-point
// offset array and restart count. It is what blockIter walks.
type Block struct {
	raw []byte
}

func (b Block) restartCount() int {
	if len(b.raw) < 4 {
		return 0
	}
	return int(le32(b.raw[len(b.raw)-4:]))
}

func (b Block) restartsOffset() int {
	return len(b.raw) - 4 - 4*b.restartCount()
}

// Iter returns a fresh iterator over the block, positioned before the
// first entry.
func (b Block) Iter() *BlockIter {
	return newBlockIter(b.raw, b.restartsOffset())
}

// writeBlock compresses raw (the entries+restarts+count content),
// writes it to w along with a trailing compression-type byte and a
// masked CRC32C over (compressed bytes + type byte), and returns the
// handle describing the written region.
func writeBlock(w io.Writer, raw []byte, offset uint64, compress bool) (BlockHandle, error) {
	var payload []byte
	ctype := CompressionNone
	if compress {
		payload = snappy.Encode(nil, raw)
		ctype = CompressionSnappy
	} else {
		payload = raw
	}

	crc := crc32.New(castagnoli)
	_, _ = crc.Write(payload)
	_, _ = crc.Write([]byte{byte(ctype)})
	masked := maskCRC(crc.Sum32())

	trailer := make([]byte, 5)
	trailer[0] = byte(ctype)
	putLE32(trailer[1:], masked)

	if _, err := w.Write(payload); err != nil {
		return BlockHandle{}, errs.New(errs.IO, "writeBlock", err)
	}
	if _, err := w.Write(trailer); err != nil {
		return BlockHandle{}, errs.New(errs.IO, "writeBlock", err)
	}

	size := uint64(len(payload) + len(trailer))
	return BlockHandle{Offset: offset, Size: size}, nil
}

// readBlock reads and verifies the framed block described by h from
// r, returning its decompressed content.
func readBlock(r io.ReaderAt, h BlockHandle) (Block, error) {
	buf := make([]byte, h.Size)
	if _, err := r.ReadAt(buf, int64(h.Offset)); err != nil {
		return Block{}, errs.New(errs.IO, "readBlock", err)
	}
	if len(buf) < 5 {
		return Block{}, errs.New(errs.InvalidData, "readBlock", fmt.Errorf("block too short"))
	}

	payload := buf[:len(buf)-5]
	ctype := CompressionType(buf[len(buf)-5])
	storedCRC := le32(buf[len(buf)-4:])

	crc := crc32.New(castagnoli)
	_, _ = crc.Write(payload)
	_, _ = crc.Write([]byte{byte(ctype)})
	if maskCRC(crc.Sum32()) != storedCRC {
		return Block{}, errs.New(errs.Checksum, "readBlock", fmt.Errorf("block checksum mismatch"))
	}

	var raw []byte
	switch ctype {
	case CompressionNone:
		raw = payload
	case CompressionSnappy:
		dec, err := snappy.Decode(nil, payload)
		if err != nil {
			return Block{}, errs.New(errs.Compression, "readBlock", err)
		}
		raw = dec
	default:
		return Block{}, errs.New(errs.InvalidData, "readBlock", fmt.Errorf("unknown compression type %d", ctype))
	}

	return Block{raw: raw}, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
