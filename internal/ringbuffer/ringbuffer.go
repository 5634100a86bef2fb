// Package ringbuffer provides fixed-capacity circular buffers of 16-bit
// PCM samples. Writes never block: when the buffer is full the oldest
// samples are overwritten.
//
// Jitter is the per-speaker playback buffer. It withholds samples until a
// threshold has accumulated, which absorbs network timing variance at the
// cost of a fixed latency. Raw has no gate.
package ringbuffer

import "sync"

// ring is the unsynchronized core shared by Raw and Jitter.
type ring struct {
	data  []int16
	start int
	size  int
}

func newRing(capacity int) ring {
	if capacity < 1 {
		capacity = 1
	}
	return ring{data: make([]int16, capacity)}
}

func (r *ring) write(samples []int16) {
	capacity := len(r.data)
	if len(samples) >= capacity {
		copy(r.data, samples[len(samples)-capacity:])
		r.start = 0
		r.size = capacity
		return
	}

	if overflow := r.size + len(samples) - capacity; overflow > 0 {
		r.start = (r.start + overflow) % capacity
		r.size -= overflow
	}

	end := (r.start + r.size) % capacity
	n := copy(r.data[end:], samples)
	copy(r.data, samples[n:])
	r.size += len(samples)
}

func (r *ring) read(dst []int16) int {
	n := min(len(dst), r.size)
	first := copy(dst[:n], r.data[r.start:])
	copy(dst[first:n], r.data)
	r.start = (r.start + n) % len(r.data)
	r.size -= n
	return n
}

func (r *ring) reset() {
	r.start = 0
	r.size = 0
}

// Raw is a mutex protected ring buffer without a fill gate.
type Raw struct {
	mu sync.Mutex
	r  ring
}

func NewRaw(capacity int) *Raw {
	return &Raw{r: newRing(capacity)}
}

func (b *Raw) Write(samples []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.r.write(samples)
}

// Read copies up to len(dst) samples into dst and returns how many were
// copied.
func (b *Raw) Read(dst []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.r.read(dst)
}

func (b *Raw) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.r.size
}

func (b *Raw) Cap() int {
	return len(b.r.data)
}

func (b *Raw) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.r.reset()
}

// Jitter gates reads until threshold samples have been written. Once the
// gate opens it stays open until Reset.
type Jitter struct {
	mu        sync.Mutex
	r         ring
	threshold int
	satisfied bool
}

func NewJitter(capacity, threshold int) *Jitter {
	r := newRing(capacity)
	if threshold > len(r.data) {
		threshold = len(r.data)
	}
	return &Jitter{r: r, threshold: threshold, satisfied: threshold <= 0}
}

func (b *Jitter) Write(samples []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.r.write(samples)
	if !b.satisfied && b.r.size >= b.threshold {
		b.satisfied = true
	}
}

// Read fills dst with up to len(dst) buffered samples. Until the jitter
// threshold is met it writes silence and returns 0.
func (b *Jitter) Read(dst []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.satisfied {
		clear(dst)
		return 0
	}
	n := b.r.read(dst)
	clear(dst[n:])
	return n
}

// ReadFrame consumes exactly len(dst) samples or nothing. When fewer are
// buffered, or the gate is closed, dst is silenced and false is returned.
func (b *Jitter) ReadFrame(dst []int16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.satisfied || b.r.size < len(dst) {
		clear(dst)
		return false
	}
	b.r.read(dst)
	return true
}

func (b *Jitter) Satisfied() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.satisfied
}

func (b *Jitter) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.r.size
}

func (b *Jitter) Cap() int {
	return len(b.r.data)
}

// Reset drops buffered samples and closes the gate again.
func (b *Jitter) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.r.reset()
	b.satisfied = b.threshold <= 0
}
