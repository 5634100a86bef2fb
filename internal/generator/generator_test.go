package generator_test

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glizzus/murmur/internal/generator"
)

var uuidV4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// collect runs next from several goroutines and fails on any repeat.
func collect[T comparable](t *testing.T, gen generator.Generator[T], workers, each int) map[T]struct{} {
	t.Helper()

	var mu sync.Mutex
	seen := make(map[T]struct{}, workers*each)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				v, err := gen.Next()
				if err != nil {
					t.Error("expected no error, got:", err)
					return
				}
				mu.Lock()
				_, dup := seen[v]
				seen[v] = struct{}{}
				mu.Unlock()
				if dup {
					t.Errorf("duplicate value %v", v)
					return
				}
			}
		}()
	}
	wg.Wait()
	return seen
}

func TestUUIDV4GeneratorConcurrent(t *testing.T) {
	seen := collect[string](t, &generator.UUIDV4Generator{}, 8, 2000)
	require.Len(t, seen, 16000)
	for id := range seen {
		if !uuidV4.MatchString(id) {
			t.Fatalf("expected valid UUID format, got %s", id)
		}
	}
}

func TestCounter(t *testing.T) {
	var c generator.Counter
	seen := collect[uint64](t, &c, 8, 500)
	require.Len(t, seen, 4000)
	for i := range uint64(4000) {
		require.Contains(t, seen, i)
	}

	c.Reset()
	c.Skip(5)
	next, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(5), next)
}

func TestStatic(t *testing.T) {
	gen := generator.Static[string]{Value: "conn-1"}
	for range 3 {
		v, err := gen.Next()
		require.NoError(t, err)
		require.Equal(t, "conn-1", v)
	}
}
