package decoder

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferPushDrain(t *testing.T) {
	r := NewRingBuffer(4)
	r.Push([]float32{1, 2, 3})
	assert.Equal(t, 3, r.Len())

	dst := make([]float32, 2)
	n := r.Drain(dst)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{1, 2}, dst)
	assert.Equal(t, 1, r.Len())
}

func TestRingBufferDrainMoreThanAvailable(t *testing.T) {
	r := NewRingBuffer(4)
	r.Push([]float32{1, 2})

	dst := make([]float32, 5)
	n := r.Drain(dst)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{1, 2, 0, 0, 0}, dst)
	assert.Equal(t, 0, r.Len())
}

func TestRingBufferClear(t *testing.T) {
	r := NewRingBuffer(4)
	r.Push([]float32{1, 2, 3})
	r.Clear()
	assert.Equal(t, 0, r.Len())
}

func TestRingBufferConcurrentAccess(t *testing.T) {
	r := NewRingBuffer(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Push([]float32{1, 2, 3, 4, 5})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
