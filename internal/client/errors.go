package client

import (
	"fmt"

	"github.com/glizzus/murmur/internal/mumbleproto"
)

// RejectError is the disconnect error when the server refuses the
// connection.
type RejectError struct {
	Type   mumbleproto.RejectType
	Reason string
}

func (e *RejectError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("server rejected connection: %s", e.Type)
	}
	return fmt.Sprintf("server rejected connection: %s: %s", e.Type, e.Reason)
}

var _ error = (*RejectError)(nil)
