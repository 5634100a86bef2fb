package audio

import (
	"context"
	"time"
)

// Loop calls a tick function at a fixed rate. Each wake time is computed
// from the previous target rather than from when the tick finished, so
// scheduling error does not accumulate. When the loop falls more than one
// interval behind it gives up on catching up and restarts the schedule
// from now.
type Loop struct {
	Interval time.Duration
	// Now and Sleep default to the real clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks until ctx is done and returns ctx.Err().
func (l Loop) Run(ctx context.Context, tick func(ctx context.Context)) error {
	interval := l.Interval
	if interval <= 0 {
		interval = FrameDuration
	}
	now := l.Now
	if now == nil {
		now = time.Now
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	next := now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick(ctx)

		next = next.Add(interval)
		current := now()
		if current.Sub(next) > interval {
			next = current
		}
		if err := sleep(ctx, next.Sub(current)); err != nil {
			return err
		}
	}
}
