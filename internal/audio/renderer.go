package audio

import (
	"context"
	"log/slog"

	"github.com/glizzus/murmur/internal/ringbuffer"
)

// Sources lists the per-speaker buffers to mix on each tick.
type Sources interface {
	Buffers() []*ringbuffer.Jitter
}

type Renderer struct {
	sources Sources
	loop    Loop
	slot    *slot[Output]
	logger  *slog.Logger

	mix   []int16
	frame []int16
	out   []byte
}

type RendererOption func(*Renderer)

func WithRenderLoop(l Loop) RendererOption {
	return func(r *Renderer) {
		r.loop = l
	}
}

func WithRenderLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

func NewRenderer(sources Sources, opts ...RendererOption) *Renderer {
	r := &Renderer{
		sources: sources,
		loop:    Loop{Interval: FrameDuration},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.slot = newSlot[Output](r.logger)
	n := r.frameSamples()
	r.mix = make([]int16, n)
	r.frame = make([]int16, n)
	r.out = make([]byte, 0, 2*n)
	return r
}

func (r *Renderer) frameSamples() int {
	interval := r.loop.Interval
	if interval <= 0 {
		interval = FrameDuration
	}
	return SamplesFor(interval)
}

// SetOutput swaps the output device at the next tick boundary and returns
// the error from starting it.
func (r *Renderer) SetOutput(ctx context.Context, out Output) error {
	return r.slot.request(ctx, out)
}

func (r *Renderer) SetVolume(v float64) {
	r.slot.setVolume(v)
}

func (r *Renderer) Volume() float64 {
	return r.slot.getVolume()
}

// Run renders until ctx is done, then releases the output device.
func (r *Renderer) Run(ctx context.Context) error {
	r.slot.setRunning(true)
	defer r.slot.close()
	defer r.slot.setRunning(false)
	return r.loop.Run(ctx, func(context.Context) { r.Tick() })
}

// Tick mixes one frame from every source and writes it. A source holding
// less than a full frame contributes silence.
func (r *Renderer) Tick() {
	out, ok := r.slot.commit()

	clear(r.mix)
	for _, b := range r.sources.Buffers() {
		if b.ReadFrame(r.frame) {
			Mix(r.mix, r.frame)
		}
	}

	if !ok {
		return
	}
	r.out = PCMToBytes(r.out[:0], r.mix)
	if err := out.Write(r.out); err != nil {
		r.logger.Warn("Failed to write audio frame", slog.Any("error", err))
	}
}
