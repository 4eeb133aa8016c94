package monitor

import (
	"sync"
	"time"
)

// Sample is one probe result as kept in memory. Failed samples carry no
// usable latency.
type Sample struct {
	Timestamp time.Time
	LatencyMS float64
	Succeeded bool
}

// DefaultWindowSize matches the dashboard's 60-measurement history.
const DefaultWindowSize = 60

// Windows is the sample store: one bounded window of recent samples per
// endpoint, created lazily on first probe. Appends and reads may run
// concurrently; reads always get a stable copy.
type Windows struct {
	mu       sync.RWMutex
	capacity int
	windows  map[string][]Sample
}

// NewWindows creates a sample store holding up to capacity samples per
// endpoint.
func NewWindows(capacity int) *Windows {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Windows{
		capacity: capacity,
		windows:  make(map[string][]Sample),
	}
}

// Record appends a sample to the endpoint's window, evicting the oldest
// sample first when the window is at capacity.
func (w *Windows) Record(endpointID string, sample Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	window := w.windows[endpointID]
	if len(window) >= w.capacity {
		window = window[1:]
	}
	w.windows[endpointID] = append(window, sample)
}

// Window returns a copy of the endpoint's samples, oldest first. An unknown
// endpoint has an empty window, not a missing one.
func (w *Windows) Window(endpointID string) []Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()

	window := w.windows[endpointID]
	out := make([]Sample, len(window))
	copy(out, window)
	return out
}

// FailureRatio returns the fraction of failed samples in the endpoint's
// current window, 0 for an empty window.
func (w *Windows) FailureRatio(endpointID string) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	window := w.windows[endpointID]
	if len(window) == 0 {
		return 0
	}
	failed := 0
	for _, s := range window {
		if !s.Succeeded {
			failed++
		}
	}
	return float64(failed) / float64(len(window))
}

// Capacity returns the configured per-endpoint capacity.
func (w *Windows) Capacity() int { return w.capacity }
