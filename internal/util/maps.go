package util

import (
	"cmp"
	"errors"
	"slices"
)

var (
	ErrNoElement        = errors.New("no element found")
	ErrMultipleElements = errors.New("multiple elements found")
)

// GetOne returns the single element from a map. An empty map returns
// ErrNoElement and a map with more than one entry ErrMultipleElements.
func GetOne[K comparable, T any](m map[K]T) (T, error) {
	var zero T
	switch len(m) {
	case 0:
		return zero, ErrNoElement
	case 1:
		for _, v := range m {
			return v, nil
		}
	}
	return zero, ErrMultipleElements
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Set is a set of comparable values.
type Set[K comparable] map[K]struct{}

func (s Set[K]) Add(vs ...K) {
	for _, v := range vs {
		s[v] = struct{}{}
	}
}

func (s Set[K]) Remove(vs ...K) {
	for _, v := range vs {
		delete(s, v)
	}
}

func (s Set[K]) Has(v K) bool {
	_, ok := s[v]
	return ok
}

// Clone returns an independent copy. Cloning a nil set yields an empty one.
func (s Set[K]) Clone() Set[K] {
	out := make(Set[K], len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// SetOf builds a set from vs.
func SetOf[K comparable](vs ...K) Set[K] {
	s := make(Set[K], len(vs))
	s.Add(vs...)
	return s
}
