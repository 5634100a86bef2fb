package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrSuperseded is returned to a swap request replaced by a newer one
	// before the loop committed it.
	ErrSuperseded = errors.New("device swap superseded")
	// ErrStopped is returned to a swap request pending when the loop exits.
	ErrStopped = errors.New("audio loop stopped")
)

// Device is the lifecycle shared by inputs and outputs. Volume is 0..1.
type Device interface {
	Start() error
	Stop() error
	SetVolume(v float64)
	Volume() float64
	Close() error
}

// Output plays little endian PCM.
type Output interface {
	Device
	Write(pcm []byte) error
}

// Input records little endian PCM. Read blocks for roughly d and returns
// the audio captured over that span.
type Input interface {
	Device
	Read(d time.Duration) ([]byte, error)
}

type swapRequest[T Device] struct {
	device T
	done   chan error
}

// slot holds the active device and at most one pending replacement.
type slot[T Device] struct {
	mu      sync.Mutex
	current T
	active  bool
	pending *swapRequest[T]
	running bool
	volume  float64
	logger  *slog.Logger
}

func newSlot[T Device](logger *slog.Logger) *slot[T] {
	return &slot[T]{volume: 1, logger: logger}
}

// request installs dev. While a loop is running the swap happens at the
// next tick boundary and request waits for it; otherwise it happens
// immediately. Either way the result of starting dev is returned.
func (s *slot[T]) request(ctx context.Context, dev T) error {
	req := &swapRequest[T]{device: dev, done: make(chan error, 1)}

	s.mu.Lock()
	if !s.running {
		err := s.commitLocked(req)
		s.mu.Unlock()
		return err
	}
	if s.pending != nil {
		s.pending.done <- ErrSuperseded
	}
	s.pending = req
	s.mu.Unlock()

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commit applies a pending swap, if any, and returns the device to use
// for this tick.
func (s *slot[T]) commit() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		req := s.pending
		s.pending = nil
		req.done <- s.commitLocked(req)
	}
	return s.current, s.active
}

// commitLocked starts the new device before releasing the old one, so a
// device that fails to start leaves the previous one playing.
func (s *slot[T]) commitLocked(req *swapRequest[T]) error {
	if err := req.device.Start(); err != nil {
		return err
	}
	req.device.SetVolume(s.volume)

	if s.active {
		s.release(s.current)
	}
	s.current = req.device
	s.active = true
	return nil
}

func (s *slot[T]) release(dev T) {
	if err := dev.Stop(); err != nil {
		s.logger.Warn("Failed to stop audio device", slog.Any("error", err))
	}
	if err := dev.Close(); err != nil {
		s.logger.Warn("Failed to close audio device", slog.Any("error", err))
	}
}

func (s *slot[T]) setVolume(v float64) {
	v = max(0, min(1, v))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if s.active {
		s.current.SetVolume(v)
	}
}

func (s *slot[T]) getVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *slot[T]) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
	if !running && s.pending != nil {
		s.pending.done <- ErrStopped
		s.pending = nil
	}
}

// close releases the active device.
func (s *slot[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.release(s.current)
		var zero T
		s.current = zero
		s.active = false
	}
}
