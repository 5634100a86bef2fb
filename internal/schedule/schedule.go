package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Clock is the time source a Scheduler waits on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RunAt waits until runAt and then calls execute, unless ctx ends first.
// It reports whether execute ran.
func RunAt(ctx context.Context, runAt time.Time, execute func(ctx context.Context)) bool {
	return waitAndRun(ctx, realClock{}, runAt, execute)
}

func waitAndRun(ctx context.Context, clock Clock, runAt time.Time, execute func(ctx context.Context)) bool {
	if delay := runAt.Sub(clock.Now()); delay > 0 {
		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			return false
		}
	}
	if ctx.Err() != nil {
		return false
	}
	execute(ctx)
	return true
}

type Job func(ctx context.Context, at time.Time) error

// Scheduler runs a job at every time a cron expression fires.
type Scheduler struct {
	cron   *Cron
	clock  Clock
	logger *slog.Logger
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func NewScheduler(cron *Cron, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:   cron,
		clock:  realClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run calls job at each run time until ctx ends or the expression has no
// further run times. Runs never overlap; a run time that passes while a
// job is still going is skipped. A failing job is logged and does not stop
// the schedule.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	for {
		next := s.cron.Next(s.clock.Now())
		if next.IsZero() {
			s.logger.Info("Schedule has no further run times", "cron", s.cron.String())
			return nil
		}
		s.logger.Debug("Waiting for next run", "cron", s.cron.String(), "runAt", next.Format(time.RFC3339))

		var err error
		ran := waitAndRun(ctx, s.clock, next, func(ctx context.Context) {
			err = job(ctx, next)
		})
		if !ran {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Error("Scheduled job failed", "runAt", next.Format(time.RFC3339), slog.Any("error", err))
		}
	}
}
