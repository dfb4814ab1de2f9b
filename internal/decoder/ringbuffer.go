package decoder

import "sync"

// RingBuffer is a mutex-protected queue of interleaved PCM samples sitting
// between the decode goroutine (producer) and the audio output callback
// (consumer). Push does not enforce a limit; Decoder.ReadStream keeps the
// length at or under the decoder's capacity. Grounded on the Arc<Mutex<VecDeque<f32>>>
// buffer in original_source/src/decoder.rs.
type RingBuffer struct {
	mu  sync.Mutex
	buf []float32
}

func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]float32, 0, capacity)}
}

// Push appends samples to the back of the buffer.
func (r *RingBuffer) Push(samples []float32) {
	r.mu.Lock()
	r.buf = append(r.buf, samples...)
	r.mu.Unlock()
}

// Len returns the number of buffered samples.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Drain copies up to len(dst) samples from the front of the buffer into
// dst, removing them, and returns how many were copied.
func (r *RingBuffer) Drain(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := copy(dst, r.buf)
	r.buf = r.buf[n:]
	return n
}

// Clear discards all buffered samples.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	r.buf = r.buf[:0]
	r.mu.Unlock()
}
