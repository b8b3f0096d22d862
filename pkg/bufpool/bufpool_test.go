package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGetPut(t *testing.T) {
	p := NewPool(1024)

	buf := p.Get()
	require.Len(t, buf, 1024)
	assert.Equal(t, 1024, p.Size())

	buf[0] = 0xAB
	p.Put(buf)

	again := p.Get()
	assert.Len(t, again, 1024)
}

func TestPoolDefaultSize(t *testing.T) {
	p := NewPool(0)
	assert.Equal(t, DefaultScratchSize, p.Size())
	assert.Len(t, p.Get(), DefaultScratchSize)
}

func TestPoolPutForeignBuffer(t *testing.T) {
	p := NewPool(64)

	p.Put(make([]byte, 16))
	p.Put(nil)

	for i := 0; i < 8; i++ {
		assert.Len(t, p.Get(), 64)
	}
}

func TestPoolConcurrency(t *testing.T) {
	p := NewPool(512)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf := p.Get()
				buf[0] = byte(id)
				buf[len(buf)-1] = byte(j)
				p.Put(buf)
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkPoolGetPut(b *testing.B) {
	p := NewPool(DefaultScratchSize)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p.Put(p.Get())
	}
}
