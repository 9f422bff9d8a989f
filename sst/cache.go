package sst

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheKey is the 16-byte (cache-id, block-offset) fingerprint used
// to key the process-wide block cache.
type CacheKey [16]byte

var nextCacheID uint64

// NewCacheID draws a cache-id from a monotonic counter, so re-opened
// readers do not collide with prior generations.
func NewCacheID() uint64 {
	return atomic.AddUint64(&nextCacheID, 1)
}

func cacheKey(cacheID uint64, offset uint64) CacheKey {
	var raw [16]byte
	binary.LittleEndian.PutUint64(raw[0:8], cacheID)
	binary.LittleEndian.PutUint64(raw[8:16], offset)
	// Fold through xxhash so the key has uniform bit distribution for
	// the LRU's internal bucketing, rather than relying on the
	// monotonic counters' low bits directly.
	h := xxhash.Sum64(raw[:])
	var key CacheKey
	copy(key[:8], raw[:8])
	binary.LittleEndian.PutUint64(key[8:], h)
	return key
}

// BlockCache is a process-wide LRU of decoded data blocks, keyed by
// (cache-id, block-offset). Capacity is in entries.
type BlockCache struct {
	inner *lru.Cache[CacheKey, Block]
}

// NewBlockCache builds a cache holding at most capacity decoded
// blocks.
func NewBlockCache(capacity int) *BlockCache {
	c, _ := lru.New[CacheKey, Block](capacity)
	return &BlockCache{inner: c}
}

func (c *BlockCache) get(cacheID, offset uint64) (Block, bool) {
	return c.inner.Get(cacheKey(cacheID, offset))
}

func (c *BlockCache) insert(cacheID, offset uint64, b Block) {
	c.inner.Add(cacheKey(cacheID, offset), b)
}
