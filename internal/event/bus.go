package event

import (
	"log/slog"
	"sync"
)

type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously, in publish order, to every
// subscriber. A panicking handler is logged and does not affect the others.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s.handler, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked", "event", e, "panic", r)
		}
	}()
	h(e)
}

// Filter wraps h so it only sees events matching pred.
func Filter(pred func(Event) bool, h Handler) Handler {
	return func(e Event) {
		if pred(e) {
			h(e)
		}
	}
}

// SubscribeFunc subscribes fn to events of type T only.
func SubscribeFunc[T Event](b *Bus, fn func(T)) (unsubscribe func()) {
	return b.Subscribe(func(e Event) {
		if t, ok := e.(T); ok {
			fn(t)
		}
	})
}

// Chan forwards events into a buffered channel. Events published while the
// channel is full are dropped and logged, so a slow reader never stalls the
// publisher.
func (b *Bus) Chan(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)
	unsubscribe := b.Subscribe(func(e Event) {
		select {
		case ch <- e:
		default:
			b.logger.Warn("Dropping event for slow subscriber", "event", e)
		}
	})
	return ch, unsubscribe
}
