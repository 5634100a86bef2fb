package handler

import (
	"fmt"

	"github.com/glizzus/murmur/internal/mumbleproto"
)

// HandlerError reports a control message that was decoded but could not be
// applied.
type HandlerError struct {
	Type mumbleproto.MessageType
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handle %s: %v", e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

var _ error = (*HandlerError)(nil)

// UnexpectedMessageError is returned when a handler registered for one
// message type is handed another.
type UnexpectedMessageError struct {
	Want mumbleproto.MessageType
	Got  mumbleproto.Message
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("expected %s, got %T", e.Want, e.Got)
}

var _ error = (*UnexpectedMessageError)(nil)
