package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(i int, ok bool) Sample {
	return Sample{
		Timestamp: time.Unix(int64(1700000000+i), 0),
		LatencyMS: float64(i),
		Succeeded: ok,
	}
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	w := NewWindows(5)

	for i := 0; i < 100; i++ {
		w.Record("a", sampleAt(i, true))
		window := w.Window("a")
		assert.LessOrEqual(t, len(window), 5)
	}
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	w := NewWindows(3)

	for i := 0; i < 5; i++ {
		w.Record("a", sampleAt(i, true))
	}

	window := w.Window("a")
	require.Len(t, window, 3)
	// Strict FIFO: samples 0 and 1 were dropped, order is oldest first.
	assert.Equal(t, 2.0, window[0].LatencyMS)
	assert.Equal(t, 3.0, window[1].LatencyMS)
	assert.Equal(t, 4.0, window[2].LatencyMS)
}

func TestWindowUnknownEndpointIsEmpty(t *testing.T) {
	w := NewWindows(10)

	window := w.Window("never-probed")
	assert.NotNil(t, window)
	assert.Empty(t, window)
	assert.Zero(t, w.FailureRatio("never-probed"))
}

func TestWindowReturnsStableCopy(t *testing.T) {
	w := NewWindows(10)
	w.Record("a", sampleAt(1, true))

	window := w.Window("a")
	window[0].LatencyMS = 999

	fresh := w.Window("a")
	assert.Equal(t, 1.0, fresh[0].LatencyMS)
}

func TestFailureRatio(t *testing.T) {
	w := NewWindows(10)
	w.Record("a", sampleAt(0, true))
	w.Record("a", sampleAt(1, false))
	w.Record("a", sampleAt(2, false))
	w.Record("a", sampleAt(3, true))

	assert.InDelta(t, 0.5, w.FailureRatio("a"), 1e-9)
}

func TestWindowConcurrentAppends(t *testing.T) {
	w := NewWindows(32)
	done := make(chan struct{})

	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			id := fmt.Sprintf("ep-%d", g)
			for i := 0; i < 500; i++ {
				w.Record(id, sampleAt(i, true))
				_ = w.Window(id)
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}

	for g := 0; g < 4; g++ {
		window := w.Window(fmt.Sprintf("ep-%d", g))
		assert.Len(t, window, 32)
		// Order within one endpoint is preserved.
		assert.Equal(t, 499.0, window[len(window)-1].LatencyMS)
	}
}
