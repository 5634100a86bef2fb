package schedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/glizzus/murmur/internal/schedule"
)

// fakeClock jumps forward instead of sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func TestRunAt(t *testing.T) {
	ran := schedule.RunAt(t.Context(), time.Now().Add(-time.Second), func(context.Context) {})
	require.True(t, ran, "a past time runs immediately")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	ran = schedule.RunAt(ctx, time.Now().Add(time.Hour), func(context.Context) {
		t.Error("ran after cancel")
	})
	require.False(t, ran)
}

func TestSchedulerRun(t *testing.T) {
	cron, err := schedule.ParseCron("*/5 * * * *")
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(1981, 8, 29, 12, 1, 0, 0, time.UTC)}
	s := schedule.NewScheduler(cron, schedule.WithClock(clock))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var got []time.Time
	err = s.Run(ctx, func(_ context.Context, at time.Time) error {
		got = append(got, at)
		if len(got) == 2 {
			return errors.New("failures are logged, not fatal")
		}
		if len(got) == 3 {
			cancel()
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	want := []time.Time{
		time.Date(1981, 8, 29, 12, 5, 0, 0, time.UTC),
		time.Date(1981, 8, 29, 12, 10, 0, 0, time.UTC),
		time.Date(1981, 8, 29, 12, 15, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("run times mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerStopsWhenExhausted(t *testing.T) {
	cron, err := schedule.ParseCron("0 0 1 1 * 1981")
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(1981, 6, 1, 0, 0, 0, 0, time.UTC)}

	calls := 0
	err = schedule.NewScheduler(cron, schedule.WithClock(clock)).Run(t.Context(), func(context.Context, time.Time) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, calls)
}

func TestParseCron(t *testing.T) {
	c, err := schedule.ParseCron("@hourly")
	require.NoError(t, err)
	require.Equal(t, "@hourly", c.String())
	require.Equal(t,
		time.Date(2023, 10, 1, 13, 0, 0, 0, time.UTC),
		c.Next(time.Date(2023, 10, 1, 12, 30, 0, 0, time.UTC)),
	)

	require.Error(t, schedule.ValidateCron("not a cron"))
	require.NoError(t, schedule.ValidateCron("0 9 * * 1"))
}
