package generator

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator is an interface that defines a method to generate a new value of type T.
// This can be used to generate unique identifiers, lazily iterate, etc.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces UUIDv4 strings. Connection ids in log records
// come from here.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// Counter yields 0, 1, 2, ... and is safe for concurrent use. Voice frame
// sequence numbers are drawn from it.
type Counter struct {
	n atomic.Uint64
}

func (c *Counter) Next() (uint64, error) {
	return c.n.Add(1) - 1, nil
}

// Skip advances the counter by n without returning the values.
func (c *Counter) Skip(n uint64) {
	c.n.Add(n)
}

// Reset starts the sequence over.
func (c *Counter) Reset() {
	c.n.Store(0)
}

var _ Generator[uint64] = &Counter{}

// Static always returns the same value.
type Static[T any] struct {
	Value T
}

func (s Static[T]) Next() (T, error) {
	return s.Value, nil
}
