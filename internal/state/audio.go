package state

import (
	"slices"
	"sync"

	"github.com/glizzus/murmur/internal/ringbuffer"
)

const (
	// DefaultBufferCapacity holds one second of 48 kHz mono audio.
	DefaultBufferCapacity = 48000
	// DefaultJitterThreshold is three 20 ms frames.
	DefaultJitterThreshold = 3 * 960
)

// AudioBuffers holds one jitter buffer per user. Unlike Session it is safe
// for concurrent use: the voice receive path writes decoded audio while
// the render loop drains it.
type AudioBuffers struct {
	mu        sync.RWMutex
	capacity  int
	threshold int
	bufs      map[uint32]*ringbuffer.Jitter
}

func NewAudioBuffers(capacity, threshold int) *AudioBuffers {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	if threshold < 0 {
		threshold = DefaultJitterThreshold
	}
	return &AudioBuffers{
		capacity:  capacity,
		threshold: threshold,
		bufs:      make(map[uint32]*ringbuffer.Jitter),
	}
}

// Add returns the buffer for session, creating it if needed.
func (a *AudioBuffers) Add(session uint32) *ringbuffer.Jitter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.bufs[session]; ok {
		return b
	}
	b := ringbuffer.NewJitter(a.capacity, a.threshold)
	a.bufs[session] = b
	return b
}

func (a *AudioBuffers) Get(session uint32) (*ringbuffer.Jitter, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.bufs[session]
	return b, ok
}

func (a *AudioBuffers) Remove(session uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.bufs, session)
}

// Buffers returns the current buffers in session order.
func (a *AudioBuffers) Buffers() []*ringbuffer.Jitter {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sessions := make([]uint32, 0, len(a.bufs))
	for s := range a.bufs {
		sessions = append(sessions, s)
	}
	slices.Sort(sessions)

	out := make([]*ringbuffer.Jitter, len(sessions))
	for i, s := range sessions {
		out[i] = a.bufs[s]
	}
	return out
}

func (a *AudioBuffers) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.bufs)
}
