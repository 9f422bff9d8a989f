package sst

import (
	"bytes"
	"encoding/binary"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Priyanshu23/flashkv/errs"
)

// buildMetaBlock serialises the file's min key, max key, and
// approximate-membership filter.
func buildMetaBlock(minKey, maxKey []byte, filter *bloom.BloomFilter) ([]byte, error) {
	var buf bytes.Buffer

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(minKey)))
	buf.Write(lenBuf[:n])
	buf.Write(minKey)

	n = binary.PutUvarint(lenBuf[:], uint64(len(maxKey)))
	buf.Write(lenBuf[:n])
	buf.Write(maxKey)

	if _, err := filter.WriteTo(&buf); err != nil {
		return nil, errs.New(errs.Serialisation, "buildMetaBlock", err)
	}
	return buf.Bytes(), nil
}

func parseMetaBlock(raw []byte) (minKey, maxKey []byte, filter *bloom.BloomFilter, err error) {
	r := bytes.NewReader(raw)

	minLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, nil, nil, errs.New(errs.InvalidData, "parseMetaBlock", err)
	}
	minKey = make([]byte, minLen)
	if _, err := r.Read(minKey); err != nil && minLen > 0 {
		return nil, nil, nil, errs.New(errs.InvalidData, "parseMetaBlock", err)
	}

	maxLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, nil, nil, errs.New(errs.InvalidData, "parseMetaBlock", err)
	}
	maxKey = make([]byte, maxLen)
	if _, err := r.Read(maxKey); err != nil && maxLen > 0 {
		return nil, nil, nil, errs.New(errs.InvalidData, "parseMetaBlock", err)
	}

	filter = &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(r); err != nil {
		return nil, nil, nil, errs.New(errs.Serialisation, "parseMetaBlock", err)
	}

	return minKey, maxKey, filter, nil
}
