package client

import (
	"fmt"
	"sync"

	"github.com/glizzus/murmur/internal/opus"
)

const (
	// DefaultGateThreshold is the peak amplitude a frame needs to count
	// as speech.
	DefaultGateThreshold = 500
	// DefaultGateHangover is how many quiet frames are still sent after
	// speech before the burst is ended.
	DefaultGateHangover = 10
)

// AudioSender is satisfied by Client.
type AudioSender interface {
	SendAudio(frame []byte, terminator bool) error
}

// Transmitter encodes captured frames and sends them while the gate is
// open. Its Consume method is an audio.Consumer.
type Transmitter struct {
	sender    AudioSender
	encoder   opus.Encoder
	threshold int16
	hangover  int

	mu      sync.Mutex
	buf     []byte
	open    bool
	quiet   int
	pending []byte
}

type TransmitterOption func(*Transmitter)

// WithGate sets the peak threshold and hangover. A zero threshold sends
// every frame.
func WithGate(threshold int16, hangover int) TransmitterOption {
	return func(t *Transmitter) {
		t.threshold = threshold
		t.hangover = hangover
	}
}

func NewTransmitter(sender AudioSender, encoder opus.Encoder, opts ...TransmitterOption) *Transmitter {
	t := &Transmitter{
		sender:    sender,
		encoder:   encoder,
		threshold: DefaultGateThreshold,
		hangover:  DefaultGateHangover,
		buf:       make([]byte, opus.MaxPacketSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func peak(pcm []int16) int16 {
	var p int16
	for _, s := range pcm {
		if s < 0 {
			if s == -32768 {
				return 32767
			}
			s = -s
		}
		if s > p {
			p = s
		}
	}
	return p
}

// Consume encodes and sends one frame. Frames are held back by one so the
// last frame of a burst can carry the terminator flag.
func (t *Transmitter) Consume(pcm []int16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	loud := peak(pcm) >= t.threshold
	switch {
	case loud:
		t.open = true
		t.quiet = 0
	case t.open:
		t.quiet++
		if t.quiet > t.hangover {
			return t.endBurstLocked()
		}
	default:
		return nil
	}

	n, err := t.encoder.Encode(pcm, t.buf)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	frame := append([]byte(nil), t.buf[:n]...)

	prev := t.pending
	t.pending = frame
	if prev != nil {
		return t.sender.SendAudio(prev, false)
	}
	return nil
}

// Flush ends the current burst, if any.
func (t *Transmitter) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil
	}
	return t.endBurstLocked()
}

// Talking reports whether the gate is open.
func (t *Transmitter) Talking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *Transmitter) endBurstLocked() error {
	t.open = false
	t.quiet = 0
	last := t.pending
	t.pending = nil
	if last == nil {
		last = []byte{}
	}
	return t.sender.SendAudio(last, true)
}
