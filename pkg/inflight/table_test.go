package inflight

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	tb := New()
	tb.Start("s1", []float64{0, 0})
	assert.True(t, tb.Append("s1", []float64{1, 1, 2, 2}))
	assert.True(t, tb.Append("s1", []float64{3, 3}))
	assert.Equal(t, 1, tb.Len())

	assert.Equal(t, []float64{0, 0, 1, 1, 2, 2, 3, 3}, tb.Finalize("s1"))
	assert.Equal(t, 0, tb.Len())
	assert.Equal(t, []float64{}, tb.Finalize("s1"))
}

func TestStartOverwrites(t *testing.T) {
	tb := New()
	tb.Start("s1", []float64{0, 0})
	tb.Append("s1", []float64{1, 1})
	tb.Start("s1", []float64{9, 9})
	assert.Equal(t, []float64{9, 9}, tb.Finalize("s1"))
}

func TestAppendUnknownIsNoop(t *testing.T) {
	tb := New()
	assert.False(t, tb.Append("ghost", []float64{1, 1}))
	assert.Equal(t, 0, tb.Len())
}

func TestDiscard(t *testing.T) {
	tb := New()
	tb.Start("s2", []float64{0, 0})
	assert.True(t, tb.Discard("s2"))
	assert.False(t, tb.Discard("s2"))
	assert.False(t, tb.Discard("never-existed"))
	assert.Equal(t, 0, tb.Len())
	assert.False(t, tb.Append("s2", []float64{1, 1}))
}

func TestStartCopiesInput(t *testing.T) {
	tb := New()
	first := []float64{1, 2}
	tb.Start("s", first)
	first[0] = 100
	assert.Equal(t, []float64{1, 2}, tb.Finalize("s"))
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	tb := New()
	tb.Start("a", []float64{0, 0})
	tb.Start("b", []float64{5, 5})

	snap := tb.Snapshot()
	require.Len(t, snap, 2)
	for _, e := range snap {
		e.Points[0] = -1
	}
	tb.Append("a", []float64{1, 1})

	assert.Equal(t, []float64{0, 0, 1, 1}, tb.Finalize("a"))
	assert.Equal(t, []float64{5, 5}, tb.Finalize("b"))
}

func TestConcurrentAppendsToDistinctIDs(t *testing.T) {
	tb := New()
	const writers = 8
	const batches = 200

	for w := 0; w < writers; w++ {
		tb.Start(fmt.Sprintf("s%d", w), []float64{float64(w), 0})
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", w)
			for i := 1; i <= batches; i++ {
				tb.Append(id, []float64{float64(w), float64(i)})
			}
		}(w)
	}
	// readers racing the writers must only ever see whole pairs
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			for _, e := range tb.Snapshot() {
				assert.Zero(t, len(e.Points)%2)
			}
		}
	}()
	wg.Wait()

	for w := 0; w < writers; w++ {
		pts := tb.Finalize(fmt.Sprintf("s%d", w))
		require.Len(t, pts, 2*(batches+1))
		for i := 0; i <= batches; i++ {
			assert.Equal(t, float64(w), pts[2*i])
			assert.Equal(t, float64(i), pts[2*i+1])
		}
	}
}

func TestConcurrentFinalizeHappensOnce(t *testing.T) {
	tb := New()
	tb.Start("s", []float64{1, 1})

	var wg sync.WaitGroup
	results := make(chan []float64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- tb.Finalize("s")
		}()
	}
	wg.Wait()
	close(results)

	nonEmpty := 0
	for r := range results {
		if len(r) > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, 1, nonEmpty)
}
