package metrics

import (
	"sync"
	"time"
)

// Buffer is an append-only sample buffer owned by a single virtual user.
//
// The owner appends; the engine's collector periodically swaps the pending
// samples out and merges them into the aggregates. The only contention is
// between one writer and the collector, never between virtual users.
type Buffer struct {
	mu      sync.Mutex
	pending []Sample
	closed  bool
}

// Add appends a sample, stamping it with the current time when unset.
func (b *Buffer) Add(s Sample) {
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	b.mu.Lock()
	b.pending = append(b.pending, s)
	b.mu.Unlock()
}

// AddValue appends a sample for metric with the given tags.
func (b *Buffer) AddValue(metric string, value float64, tags map[string]string) {
	b.Add(Sample{Metric: metric, Value: value, Tags: tags})
}

// Close marks the buffer as finished. Pending samples are still drained.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Len returns the number of samples waiting to be collected.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// swap hands the pending samples to the collector and gives the writer spare.
func (b *Buffer) swap(spare []Sample) (samples []Sample, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	samples = b.pending
	b.pending = spare[:0]
	return samples, b.closed
}
