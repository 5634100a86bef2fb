package device

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/glizzus/murmur/internal/audio"
)

// lifecycle is the Start/Stop/Volume bookkeeping shared by the software
// devices.
type lifecycle struct {
	mu      sync.Mutex
	running bool
	closed  bool
	volume  float64
}

func (l *lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.running = true
	return nil
}

func (l *lifecycle) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	return nil
}

func (l *lifecycle) SetVolume(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.volume = v
}

func (l *lifecycle) Volume() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.volume
}

func (l *lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	l.closed = true
	return nil
}

// Silence is an input that records nothing.
type Silence struct {
	lifecycle
}

var _ audio.Input = (*Silence)(nil)

func NewSilence() *Silence {
	return &Silence{lifecycle{volume: 1}}
}

func (s *Silence) Read(d time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return make([]byte, 2*audio.SamplesFor(d)), nil
}

// Recorder is an output that writes raw PCM to w, scaled by its volume.
// A nil writer discards everything.
type Recorder struct {
	lifecycle
	w      io.Writer
	closer io.Closer
	frames int
}

var _ audio.Output = (*Recorder)(nil)

func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{lifecycle: lifecycle{volume: 1}, w: w}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// NewDiscard returns an output that drops all audio.
func NewDiscard() *Recorder {
	return NewRecorder(nil)
}

func (r *Recorder) Write(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if !r.running {
		return nil
	}
	r.frames++
	if r.w == nil {
		return nil
	}
	if r.volume != 1 {
		samples := audio.BytesToPCM(pcm)
		audio.ApplyVolume(samples, r.volume)
		pcm = audio.PCMToBytes(nil, samples)
	}
	_, err := r.w.Write(pcm)
	return err
}

// Frames returns how many frames were written while running.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Recorder) Close() error {
	r.lifecycle.Close()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// OpenOutput resolves a playback setting: "default" for the system
// speaker, "none" to discard, or "file:<path>" to record raw PCM.
func OpenOutput(spec string) (audio.Output, error) {
	switch {
	case spec == "" || spec == "none":
		return NewDiscard(), nil
	case spec == "default":
		return NewSpeaker(), nil
	case strings.HasPrefix(spec, "file:"):
		f, err := os.Create(strings.TrimPrefix(spec, "file:"))
		if err != nil {
			return nil, fmt.Errorf("open playback file: %w", err)
		}
		return NewRecorder(f), nil
	}
	return nil, fmt.Errorf("unknown playback device %q", spec)
}

// OpenInput resolves a capture setting: "default" for the system
// microphone or "none" for silence.
func OpenInput(spec string) (audio.Input, error) {
	switch spec {
	case "", "none":
		return NewSilence(), nil
	case "default":
		return NewMicrophone(), nil
	}
	return nil, fmt.Errorf("unknown capture device %q", spec)
}
