package serial

import (
	"sync"
	"sync/atomic"
)

// BufferPool manages reusable fixed-size read buffers shared by all
// session read sub-tasks.
type BufferPool struct {
	pool sync.Pool
	size int

	gets    atomic.Int64
	puts    atomic.Int64
	creates atomic.Int64
}

// NewBufferPool creates a buffer pool with fixed-size buffers.
func NewBufferPool(bufferSize int) *BufferPool {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	bp := &BufferPool{size: bufferSize}
	bp.pool = sync.Pool{
		New: func() interface{} {
			bp.creates.Add(1)
			return make([]byte, bufferSize)
		},
	}
	return bp
}

// Get retrieves a buffer from the pool.
func (bp *BufferPool) Get() []byte {
	bp.gets.Add(1)
	return bp.pool.Get().([]byte)
}

// Put returns a buffer to the pool. Buffers of the wrong size are not
// pooled.
func (bp *BufferPool) Put(buf []byte) {
	if len(buf) != bp.size {
		return
	}
	bp.puts.Add(1)
	clear(buf)
	bp.pool.Put(buf)
}

// PoolStats contains buffer pool usage statistics.
type PoolStats struct {
	Size    int
	Gets    int64
	Puts    int64
	Creates int64
}

// HitRatio returns the cache hit ratio (0.0 to 1.0).
func (ps PoolStats) HitRatio() float64 {
	if ps.Gets == 0 {
		return 0.0
	}
	return 1.0 - (float64(ps.Creates) / float64(ps.Gets))
}

// Stats returns pool usage statistics.
func (bp *BufferPool) Stats() PoolStats {
	return PoolStats{
		Size:    bp.size,
		Gets:    bp.gets.Load(),
		Puts:    bp.puts.Load(),
		Creates: bp.creates.Load(),
	}
}
