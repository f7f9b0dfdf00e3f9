// Package metrics provides latency tracking with percentile calculations.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker tracks operation latencies over a sliding window and
// reports percentiles. Used by the health endpoint to expose per-handler
// pipeline timing.
type LatencyTracker struct {
	mu         sync.RWMutex
	samples    []int64 // microseconds
	maxSamples int
}

// NewLatencyTracker creates a tracker keeping the last windowSize samples.
func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{
		samples:    make([]int64, 0, windowSize),
		maxSamples: windowSize,
	}
}

// Record adds a latency sample.
func (t *LatencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) >= t.maxSamples {
		// Drop oldest half to amortize copies
		half := t.maxSamples / 2
		copy(t.samples, t.samples[half:])
		t.samples = t.samples[:len(t.samples)-half]
	}
	t.samples = append(t.samples, d.Microseconds())
}

// Stats holds percentile statistics in milliseconds.
type Stats struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

// Snapshot returns current percentile statistics.
func (t *LatencyTracker) Snapshot() Stats {
	t.mu.RLock()
	sorted := make([]int64, len(t.samples))
	copy(sorted, t.samples)
	t.mu.RUnlock()

	if len(sorted) == 0 {
		return Stats{}
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	toMS := func(us int64) float64 { return float64(us) / 1000.0 }
	pct := func(p float64) float64 {
		idx := int(p * float64(len(sorted)-1))
		return toMS(sorted[idx])
	}

	return Stats{
		Count: len(sorted),
		P50:   pct(0.50),
		P95:   pct(0.95),
		P99:   pct(0.99),
		Max:   toMS(sorted[len(sorted)-1]),
	}
}

// =============================================================================
// Registry
// =============================================================================

// Registry holds named latency trackers.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*LatencyTracker)}
}

// Tracker returns the tracker registered under name, creating it on demand.
func (r *Registry) Tracker(name string) *LatencyTracker {
	r.mu.RLock()
	t, ok := r.trackers[name]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.trackers[name]; ok {
		return t
	}
	t = NewLatencyTracker(1000)
	r.trackers[name] = t
	return t
}

// SnapshotAll returns statistics for every registered tracker.
func (r *Registry) SnapshotAll() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.trackers))
	for name, t := range r.trackers {
		out[name] = t.Snapshot()
	}
	return out
}
