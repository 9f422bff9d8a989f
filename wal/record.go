package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/Priyanshu23/flashkv/errs"
	"github.com/Priyanshu23/flashkv/record"
)

// Each record is: a 4-byte little-endian length prefix (of everything
// that follows except the padding), a 4-byte key-compressed-length
// prefix, the Snappy-compressed key, the Snappy-compressed value, then
// zero-padding so the whole record (including the leading length
// prefix) lands on an 8-byte boundary. A record whose value compresses
// to zero bytes is a tombstone — Snappy never emits an empty block for
// a real (even empty) value, so this is an unambiguous sentinel.
const recordHeaderLen = 4 + 4

func encodeRecord(rec record.Record) []byte {
	keyComp := snappy.Encode(nil, rec.Key)
	var valComp []byte
	if !rec.Deleted {
		valComp = snappy.Encode(nil, rec.Value)
	}

	payloadLen := 4 + len(keyComp) + len(valComp)
	pad := padding(4 + payloadLen)

	buf := make([]byte, 4+payloadLen+pad)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(payloadLen))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(keyComp)))
	copy(buf[8:8+len(keyComp)], keyComp)
	copy(buf[8+len(keyComp):8+len(keyComp)+len(valComp)], valComp)
	return buf
}

// padding returns the zero-byte count needed to align n to an 8-byte
// boundary.
func padding(n int) int {
	return (8 - (n % 8)) % 8
}

// decodeRecord reads one record starting at buf[0]. It returns the
// record, the number of bytes consumed (header + payload + padding),
// and ok=false when buf begins with a zero length prefix (end of
// written data within the segment's mapped region).
func decodeRecord(buf []byte) (rec record.Record, consumed int, ok bool, err error) {
	if len(buf) < 4 {
		return record.Record{}, 0, false, nil
	}
	payloadLen := binary.LittleEndian.Uint32(buf[0:4])
	if payloadLen == 0 {
		return record.Record{}, 0, false, nil
	}
	if len(buf) < 4+int(payloadLen) {
		return record.Record{}, 0, false, errs.New(errs.WAL, "decodeRecord", fmt.Errorf("truncated record: want %d have %d", payloadLen, len(buf)-4))
	}
	if payloadLen < 4 {
		return record.Record{}, 0, false, errs.New(errs.InvalidData, "decodeRecord", fmt.Errorf("payload too short: %d", payloadLen))
	}
	keyCompLen := binary.LittleEndian.Uint32(buf[4:8])
	body := buf[8 : 4+payloadLen]
	if int(keyCompLen) > len(body) {
		return record.Record{}, 0, false, errs.New(errs.InvalidData, "decodeRecord", fmt.Errorf("key length out of range"))
	}
	keyComp := body[:keyCompLen]
	valComp := body[keyCompLen:]

	key, err := snappy.Decode(nil, keyComp)
	if err != nil {
		return record.Record{}, 0, false, errs.New(errs.Compression, "decodeRecord", err)
	}

	rec = record.Record{Key: key}
	if len(valComp) == 0 {
		rec.Deleted = true
	} else {
		val, err := snappy.Decode(nil, valComp)
		if err != nil {
			return record.Record{}, 0, false, errs.New(errs.Compression, "decodeRecord", err)
		}
		rec.Value = val
	}

	pad := padding(4 + int(payloadLen))
	consumed = 4 + int(payloadLen) + pad
	return rec, consumed, true, nil
}
