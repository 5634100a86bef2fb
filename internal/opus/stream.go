package opus

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/glizzus/murmur/internal/audio"
)

// SendFunc transmits one frame. last is set on the final frame of a stream
// so the receiver can mark the end of the utterance.
type SendFunc func(frame []byte, last bool) error

type streamOptions struct {
	loop audio.Loop
}

type StreamOption func(*streamOptions)

// WithStreamLoop replaces the real-time pacing loop.
func WithStreamLoop(l audio.Loop) StreamOption {
	return func(o *streamOptions) {
		o.loop = l
	}
}

// Stream sends frames from src at one frame per 20 ms until src is exhausted,
// send fails, or ctx is done. Running out of frames is not an error.
func Stream(ctx context.Context, src FrameSource, send SendFunc, opts ...StreamOption) error {
	o := streamOptions{loop: audio.Loop{Interval: audio.FrameDuration}}
	for _, opt := range opts {
		opt(&o)
	}

	next, err := src.ReadFrame()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read first frame: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		streamErr error
		finished  bool
	)
	_ = o.loop.Run(loopCtx, func(context.Context) {
		frame := next
		var readErr error
		next, readErr = src.ReadFrame()
		last := errors.Is(readErr, io.EOF)
		if readErr != nil && !last {
			streamErr = fmt.Errorf("read frame: %w", readErr)
			cancel()
			return
		}
		if err := send(frame, last); err != nil {
			streamErr = fmt.Errorf("send frame: %w", err)
			cancel()
			return
		}
		if last {
			finished = true
			cancel()
		}
	})

	switch {
	case streamErr != nil:
		return streamErr
	case finished:
		return nil
	}
	return ctx.Err()
}
