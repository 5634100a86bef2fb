// Package device adapts system audio hardware to the audio package's
// Input and Output interfaces.
package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/glizzus/murmur/internal/audio"
)

var ErrClosed = errors.New("device closed")

// Microphone captures 48 kHz mono audio through miniaudio.
type Microphone struct {
	mu      sync.Mutex
	notify  chan struct{}
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	buf     []byte
	volume  float64
	running bool
	closed  bool
}

var _ audio.Input = (*Microphone)(nil)

func NewMicrophone() *Microphone {
	return &Microphone{
		notify: make(chan struct{}, 1),
		volume: 1,
	}
}

// maxBuffered caps unread audio at one second.
const maxBuffered = audio.SampleRate * 2

func (m *Microphone) onData(_, input []byte, _ uint32) {
	m.mu.Lock()
	m.buf = append(m.buf, input...)
	if over := len(m.buf) - maxBuffered; over > 0 {
		m.buf = m.buf[over:]
	}
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if m.ctx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("init audio context: %w", err)
		}
		m.ctx = ctx
	}

	if m.device == nil {
		cfg := malgo.DefaultDeviceConfig(malgo.Capture)
		cfg.Capture.Format = malgo.FormatS16
		cfg.Capture.Channels = audio.Channels
		cfg.SampleRate = audio.SampleRate
		cfg.PeriodSizeInMilliseconds = uint32(audio.FrameDuration / time.Millisecond)

		device, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{Data: m.onData})
		if err != nil {
			return fmt.Errorf("init capture device: %w", err)
		}
		m.device = device
	}

	if err := m.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	m.running = true
	return nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil || !m.running {
		return nil
	}
	m.running = false
	m.buf = m.buf[:0]
	return m.device.Stop()
}

// Read waits up to twice d for d worth of audio. When the device cannot
// keep up it returns whatever was captured, which may be nothing.
func (m *Microphone) Read(d time.Duration) ([]byte, error) {
	want := audio.SamplesFor(d) * 2
	deadline := time.NewTimer(2 * d)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if len(m.buf) >= want {
			out := m.take(want)
			m.mu.Unlock()
			return out, nil
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-deadline.C:
			m.mu.Lock()
			out := m.take(len(m.buf))
			m.mu.Unlock()
			return out, nil
		}
	}
}

// take removes n bytes from the buffer and applies the volume. m.mu must
// be held.
func (m *Microphone) take(n int) []byte {
	n -= n % 2
	out := make([]byte, n)
	copy(out, m.buf)
	m.buf = m.buf[:copy(m.buf, m.buf[n:])]

	if m.volume != 1 {
		pcm := audio.BytesToPCM(out)
		audio.ApplyVolume(pcm, m.volume)
		out = audio.PCMToBytes(out[:0], pcm)
	}
	return out
}

func (m *Microphone) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

func (m *Microphone) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.device != nil {
		if m.running {
			err = m.device.Stop()
		}
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		err = errors.Join(err, m.ctx.Uninit())
		m.ctx.Free()
		m.ctx = nil
	}
	return err
}
