// Package handler routes control messages to the code that applies them.
package handler

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/glizzus/murmur/internal/mumbleproto"
)

// Func handles the raw payload of one control message.
type Func func(payload []byte) error

// Router maps message types to handlers. Messages nobody handles, and
// messages whose handler fails, are logged and skipped; none of them end
// the connection.
type Router struct {
	mu       sync.RWMutex
	handlers map[mumbleproto.MessageType]Func
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[mumbleproto.MessageType]Func),
		logger:   logger,
	}
}

// Handle registers fn for t, replacing any earlier handler.
func (r *Router) Handle(t mumbleproto.MessageType, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = fn
}

// On registers fn for messages of type t, decoded into T.
func On[T mumbleproto.Message](r *Router, t mumbleproto.MessageType, fn func(T) error) {
	r.Handle(t, func(payload []byte) error {
		m, err := mumbleproto.Decode(t, payload)
		if err != nil {
			return err
		}
		typed, ok := m.(T)
		if !ok {
			return &UnexpectedMessageError{Want: t, Got: m}
		}
		return fn(typed)
	})
}

// Dispatch runs the handler for f.
func (r *Router) Dispatch(f mumbleproto.Frame) {
	if err := r.dispatch(f); err != nil {
		var unknown *mumbleproto.UnknownTypeError
		if errors.As(err, &unknown) {
			r.logger.Debug("Skipping unhandled message", "type", f.Type.String(), "size", len(f.Payload))
			return
		}
		r.logger.Warn("Failed to handle message", "type", f.Type.String(), slog.Any("error", err))
	}
}

func (r *Router) dispatch(f mumbleproto.Frame) error {
	r.mu.RLock()
	fn, ok := r.handlers[f.Type]
	r.mu.RUnlock()
	if !ok {
		return &mumbleproto.UnknownTypeError{Type: f.Type}
	}
	if err := fn(f.Payload); err != nil {
		return &HandlerError{Type: f.Type, Err: err}
	}
	return nil
}
