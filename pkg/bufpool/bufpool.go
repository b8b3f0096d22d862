// Package bufpool provides the byte buffers used on the relay's I/O path.
//
// Two shapes are provided:
//   - Pool: a sync.Pool of fixed-size scratch buffers handed to workers for
//     a single drain loop and returned afterwards.
//   - Queue: a growable byte queue with amortized O(1) consumption from the
//     front, used for per-connection inbound and outbound buffers.
//
// # Usage
//
//	buf := pool.Get()
//	defer pool.Put(buf)
//	n, err := handle.Read(buf)
package bufpool

import (
	"sync"
)

// DefaultScratchSize is the read chunk size used when none is configured.
const DefaultScratchSize = 1 << 10

// Pool hands out scratch buffers of one fixed size.
//
// All operations are safe for concurrent use by multiple workers.
type Pool struct {
	pool sync.Pool
	size int
}

// NewPool creates a pool of buffers of exactly size bytes.
// A non-positive size falls back to DefaultScratchSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultScratchSize
	}

	p := &Pool{size: size}
	p.pool = sync.Pool{
		New: func() any {
			buf := make([]byte, p.size)
			return &buf
		},
	}
	return p
}

// Size returns the length of the buffers handed out by the pool.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a buffer of length Size(). The caller must return it with Put.
func (p *Pool) Get() []byte {
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:p.size]
}

// Put returns a buffer obtained from Get. Buffers of a foreign capacity are
// dropped so the pool never hands out a short slice.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
