package sst

import (
	"encoding/binary"

	"github.com/Priyanshu23/flashkv/errs"
)

// footerLen is the fixed 48-byte trailer: meta handle (up to 20 bytes
// varint-encoded, padded) + index handle (same) + zero padding to 40
// bytes + the 8-byte magic.
const footerLen = 48
const magicLen = 8

// magic is the fixed trailer constant identifying a valid SST file.
var magic = [magicLen]byte{0x57, 0xfb, 0x80, 0x8b, 0x24, 0x75, 0x47, 0xdb}

// CompressionType tags how a block's bytes are stored on disk.
type CompressionType byte

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
)

// BlockHandle locates a block within the file: its offset and
// on-disk (framed) size.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// Encode writes the handle as two varints, returning the bytes used.
func (h BlockHandle) Encode(buf []byte) int {
	n := binary.PutUvarint(buf, h.Offset)
	n += binary.PutUvarint(buf[n:], h.Size)
	return n
}

// DecodeBlockHandle reads a handle written by Encode.
func DecodeBlockHandle(buf []byte) (BlockHandle, int) {
	off, n1 := binary.Uvarint(buf)
	sz, n2 := binary.Uvarint(buf[n1:])
	return BlockHandle{Offset: off, Size: sz}, n1 + n2
}

// Footer is the fixed 48-byte trailer: meta-block handle, index-block
// handle, zero padding to 40 bytes, then the magic constant.
type Footer struct {
	Meta  BlockHandle
	Index BlockHandle
}

func (f Footer) Encode() []byte {
	buf := make([]byte, footerLen)
	n := f.Meta.Encode(buf)
	n += f.Index.Encode(buf[n:])
	_ = n
	copy(buf[footerLen-magicLen:], magic[:])
	return buf
}

func decodeFooter(buf []byte) (Footer, error) {
	if len(buf) != footerLen {
		return Footer{}, errs.New(errs.InvalidData, "decodeFooter", nil)
	}
	for i := 0; i < magicLen; i++ {
		if buf[footerLen-magicLen+i] != magic[i] {
			return Footer{}, errs.New(errs.InvalidData, "decodeFooter", nil)
		}
	}
	meta, n := DecodeBlockHandle(buf)
	index, _ := DecodeBlockHandle(buf[n:])
	return Footer{Meta: meta, Index: index}, nil
}
