package util_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/murmur/internal/util"
)

func TestGetOne(t *testing.T) {
	tc := []struct {
		name     string
		input    map[uint32]string
		expected string
		err      error
	}{
		{
			name:     "single element",
			input:    map[uint32]string{4: "Lobby"},
			expected: "Lobby",
		},
		{
			name:  "multiple elements",
			input: map[uint32]string{4: "Lobby", 9: "Lobby"},
			err:   util.ErrMultipleElements,
		},
		{
			name:  "no elements",
			input: map[uint32]string{},
			err:   util.ErrNoElement,
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			result, err := util.GetOne(test.input)
			if !errors.Is(err, test.err) {
				t.Fatalf("expected error %v, got %v", test.err, err)
			}
			if result != test.expected {
				t.Errorf("expected %v, got %v", test.expected, result)
			}
		})
	}
}

func TestSortedKeys(t *testing.T) {
	got := util.SortedKeys(map[uint32]bool{30: true, 1: false, 7: true})
	if diff := cmp.Diff([]uint32{1, 7, 30}, got); diff != "" {
		t.Errorf("SortedKeys mismatch (-want +got):\n%s", diff)
	}
}

func TestSet(t *testing.T) {
	s := util.SetOf[uint32](1, 2, 3)
	s.Remove(2)
	s.Add(5)

	if !s.Has(1) || s.Has(2) || !s.Has(5) {
		t.Fatalf("unexpected contents %v", s)
	}

	clone := s.Clone()
	clone.Add(99)
	if s.Has(99) {
		t.Error("Clone shares storage with the original")
	}

	var nilSet util.Set[uint32]
	if got := nilSet.Clone(); got == nil || len(got) != 0 {
		t.Errorf("Clone of nil set = %v, want empty set", got)
	}
}
