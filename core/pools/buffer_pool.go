// Package pools provides the engine's object pools: tiered byte buffers and
// the fd-keyed worker pool.
package pools

import "sync"

// BytePool is a multi-tiered byte slice pool. Buffers come back at full
// capacity; callers track their own fill level.
type BytePool struct {
	pools []*sync.Pool
	sizes []int
}

// Size tiers cut for HTTP workloads: header blocks, small bodies, response
// buffers, large bodies.
var defaultSizes = []int{512, 4096, 16384, 65536}

// NewBytePool creates a byte pool with the standard tiers.
func NewBytePool() *BytePool {
	return NewBytePoolWithSizes(defaultSizes)
}

// NewBytePoolWithSizes creates a byte pool with custom tiers, which must be
// ascending.
func NewBytePoolWithSizes(sizes []int) *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}
	for i, size := range sizes {
		sz := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, sz)
				return &buf
			},
		}
	}
	return bp
}

// Get returns a buffer with capacity of at least size.
func (bp *BytePool) Get(size int) []byte {
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			bufPtr := bp.pools[i].Get().(*[]byte)
			return (*bufPtr)[:poolSize]
		}
	}
	return make([]byte, size)
}

// Put returns a buffer to its tier. Buffers with foreign capacities are
// dropped for the GC.
func (bp *BytePool) Put(buf []byte) {
	capacity := cap(buf)
	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			buf = buf[:capacity]
			bp.pools[i].Put(&buf)
			return
		}
	}
}
