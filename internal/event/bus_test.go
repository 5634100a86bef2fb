package event_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/glizzus/murmur/internal/event"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := event.NewBus(nil)

	var first, second []event.Event
	bus.Subscribe(func(e event.Event) { first = append(first, e) })
	bus.Subscribe(func(e event.Event) { second = append(second, e) })

	published := []event.Event{
		event.Connected{},
		event.UserJoined{Session: 3},
		event.UserTalking{Session: 3, Talking: true},
	}
	for _, e := range published {
		bus.Publish(e)
	}

	if diff := cmp.Diff(published, first); diff != "" {
		t.Errorf("first subscriber mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(published, second); diff != "" {
		t.Errorf("second subscriber mismatch (-want +got):\n%s", diff)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := event.NewBus(nil)

	count := 0
	unsubscribe := bus.Subscribe(func(event.Event) { count++ })
	bus.Publish(event.Connected{})
	unsubscribe()
	unsubscribe()
	bus.Publish(event.Connected{})

	require.Equal(t, 1, count)
}

// Unsubscribing from inside a handler must not deadlock or skip the
// remaining subscribers for the event in flight.
func TestBusUnsubscribeDuringDelivery(t *testing.T) {
	bus := event.NewBus(nil)

	var unsubscribe func()
	selfCalls, otherCalls := 0, 0
	unsubscribe = bus.Subscribe(func(event.Event) {
		selfCalls++
		unsubscribe()
	})
	bus.Subscribe(func(event.Event) { otherCalls++ })

	bus.Publish(event.Connected{})
	bus.Publish(event.Connected{})

	require.Equal(t, 1, selfCalls)
	require.Equal(t, 2, otherCalls)
}

func TestBusRecoversPanics(t *testing.T) {
	var logs bytes.Buffer
	bus := event.NewBus(slog.New(slog.NewTextHandler(&logs, nil)))

	bus.Subscribe(func(event.Event) { panic("bad handler") })
	delivered := false
	bus.Subscribe(func(event.Event) { delivered = true })

	require.NotPanics(t, func() { bus.Publish(event.Connected{}) })
	require.True(t, delivered)
	require.True(t, strings.Contains(logs.String(), "bad handler"), logs.String())
}

func TestSubscribeFunc(t *testing.T) {
	bus := event.NewBus(nil)

	var left []uint32
	event.SubscribeFunc(bus, func(e event.UserLeft) { left = append(left, e.Session) })

	bus.Publish(event.UserJoined{Session: 1})
	bus.Publish(event.UserLeft{Session: 1})
	bus.Publish(event.UserLeft{Session: 2, Ban: true})

	require.Equal(t, []uint32{1, 2}, left)
}

func TestFilter(t *testing.T) {
	bus := event.NewBus(nil)

	var talking []event.Event
	bus.Subscribe(event.Filter(func(e event.Event) bool {
		ut, ok := e.(event.UserTalking)
		return ok && ut.Talking
	}, func(e event.Event) { talking = append(talking, e) }))

	bus.Publish(event.UserTalking{Session: 1, Talking: true})
	bus.Publish(event.UserTalking{Session: 1, Talking: false})

	require.Len(t, talking, 1)
}

func TestChanDropsWhenFull(t *testing.T) {
	bus := event.NewBus(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	ch, unsubscribe := bus.Chan(1)
	defer unsubscribe()

	bus.Publish(event.UserJoined{Session: 1})
	bus.Publish(event.UserJoined{Session: 2})

	require.Equal(t, event.UserJoined{Session: 1}, <-ch)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}
