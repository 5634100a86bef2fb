package device

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/glizzus/murmur/internal/audio"
)

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   audio.SampleRate,
			ChannelCount: audio.Channels,
			Format:       oto.FormatSignedInt16LE,
			// Two frames of headroom.
			BufferSize: 2 * audio.FrameDuration,
		})
		if err != nil {
			otoErr = fmt.Errorf("init playback context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// Speaker plays audio through the system output. oto pulls from it as an
// io.Reader; underruns are filled with silence.
type Speaker struct {
	mu     sync.Mutex
	player *oto.Player
	buf    []byte
	volume float64
	closed bool
}

var _ audio.Output = (*Speaker)(nil)

func NewSpeaker() *Speaker {
	return &Speaker{volume: 1}
}

func (s *Speaker) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	player := s.player
	s.mu.Unlock()

	if player == nil {
		ctx, err := sharedContext()
		if err != nil {
			return err
		}
		player = ctx.NewPlayer(s)

		s.mu.Lock()
		s.player = player
		player.SetVolume(s.volume)
		s.mu.Unlock()
	}
	player.Play()
	return nil
}

func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Pause()
	}
	s.buf = s.buf[:0]
	return nil
}

func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.buf = append(s.buf, pcm...)
	if over := len(s.buf) - maxBuffered; over > 0 {
		s.buf = s.buf[over:]
	}
	return nil
}

// Read implements io.Reader for oto.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.buf)
	s.buf = s.buf[:copy(s.buf, s.buf[n:])]
	clear(p[n:])
	return len(p), nil
}

func (s *Speaker) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if s.player != nil {
		s.player.SetVolume(v)
	}
}

func (s *Speaker) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	player := s.player
	s.player = nil
	s.mu.Unlock()

	// oto may be inside Read; closing under the lock would deadlock.
	if player == nil {
		return nil
	}
	return player.Close()
}
