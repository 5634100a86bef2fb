package audio

import (
	"context"
	"fmt"
	"log/slog"
)

// Consumer receives one captured frame per tick.
type Consumer func(pcm []int16) error

type Capturer struct {
	consumer Consumer
	loop     Loop
	slot     *slot[Input]
	logger   *slog.Logger
}

type CapturerOption func(*Capturer)

func WithCaptureLoop(l Loop) CapturerOption {
	return func(c *Capturer) {
		c.loop = l
	}
}

func WithCaptureLogger(logger *slog.Logger) CapturerOption {
	return func(c *Capturer) {
		c.logger = logger
	}
}

func NewCapturer(consumer Consumer, opts ...CapturerOption) *Capturer {
	c := &Capturer{
		consumer: consumer,
		loop:     Loop{Interval: FrameDuration},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.slot = newSlot[Input](c.logger)
	return c
}

// SetInput swaps the input device at the next tick boundary and returns
// the error from starting it.
func (c *Capturer) SetInput(ctx context.Context, in Input) error {
	return c.slot.request(ctx, in)
}

func (c *Capturer) SetVolume(v float64) {
	c.slot.setVolume(v)
}

func (c *Capturer) Volume() float64 {
	return c.slot.getVolume()
}

// Run captures until ctx is done, then releases the input device.
func (c *Capturer) Run(ctx context.Context) error {
	c.slot.setRunning(true)
	defer c.slot.close()
	defer c.slot.setRunning(false)
	return c.loop.Run(ctx, func(context.Context) { c.Tick() })
}

// Tick reads one frame and hands it to the consumer. Device and consumer
// failures are logged; the loop keeps going.
func (c *Capturer) Tick() {
	in, ok := c.slot.commit()
	if !ok {
		return
	}

	interval := c.loop.Interval
	if interval <= 0 {
		interval = FrameDuration
	}
	data, err := in.Read(interval)
	if err != nil {
		c.logger.Warn("Failed to read audio frame", slog.Any("error", err))
		return
	}
	if len(data) == 0 {
		return
	}

	if err := c.consume(BytesToPCM(data)); err != nil {
		c.logger.Error("Audio consumer failed", slog.Any("error", err))
	}
}

func (c *Capturer) consume(pcm []int16) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer panicked: %v", r)
		}
	}()
	return c.consumer(pcm)
}
