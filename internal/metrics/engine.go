package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives every collected sample and every emitted time bucket.
// Observers are called from the collector goroutine only.
type Observer interface {
	ObserveSample(s Sample)
	ObserveBucket(b *TimeBucket)
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// FlushInterval is how often buffers are drained and a time bucket is emitted (default: 1s)
	FlushInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FlushInterval: time.Second,
		MaxBuckets:    3600,
	}
}

// Engine merges per-VU sample buffers into named metric aggregates.
//
// Aggregates are only written by the collector (the background loop started
// by Start, or an explicit Collect), so writers never share histogram state.
//
// # Thread Safety
//
// Engine is safe for concurrent use.
type Engine struct {
	config EngineConfig
	defs   map[string]Definition

	mu         sync.Mutex
	aggregates map[string]aggregate
	checks     map[string]*CheckSummary
	buffers    []*Buffer
	spare      []Sample
	observers  []Observer

	// interval accounting for time buckets
	lastBucketTime     time.Time
	lastBucketRequests int64
	lastBucketFailures int64
	bucketStore        *TimeBucketStore

	dropped   atomic.Int64
	activeVUs atomic.Int32

	phaseMu      sync.RWMutex
	phase        Phase
	phaseHistory []PhaseChange

	startTime time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a metrics engine that accepts samples for defs.
// Unknown metric names are counted as dropped.
func NewEngine(config EngineConfig, defs ...Definition) *Engine {
	def := DefaultEngineConfig()
	if config.FlushInterval <= 0 {
		config.FlushInterval = def.FlushInterval
	}
	if config.MaxBuckets <= 0 {
		config.MaxBuckets = def.MaxBuckets
	}

	e := &Engine{
		config:      config,
		defs:        make(map[string]Definition, len(defs)),
		aggregates:  make(map[string]aggregate, len(defs)),
		checks:      make(map[string]*CheckSummary),
		bucketStore: NewTimeBucketStore(config.MaxBuckets),
		phase:       PhaseInit,
		startTime:   time.Now(),
	}
	e.lastBucketTime = e.startTime

	for _, d := range defs {
		e.defs[d.Name] = d
		e.aggregates[d.Name] = newAggregate(d.Type)
	}

	return e
}

// AddObserver registers an observer. Call before Start.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Definitions returns the metric definitions sorted by name.
func (e *Engine) Definitions() []Definition {
	defs := make([]Definition, 0, len(e.defs))
	for _, d := range e.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// NewBuffer registers and returns a fresh per-VU buffer.
func (e *Engine) NewBuffer() *Buffer {
	b := &Buffer{}
	e.mu.Lock()
	e.buffers = append(e.buffers, b)
	e.mu.Unlock()
	return b
}

// Start launches the background collector.
func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.cancel = cancel
	e.startTime = time.Now()
	e.lastBucketTime = e.startTime
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Collect()
			e.emitBucket()
		}
	}
}

// Stop stops the collector, drains every buffer and emits a final bucket.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		e.wg.Wait()
	}
	e.Collect()
	e.emitBucket()
}

// Collect drains all buffers into the aggregates. Closed buffers are
// forgotten once drained.
func (e *Engine) Collect() {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.buffers[:0]
	for _, b := range e.buffers {
		samples, closed := b.swap(e.spare)
		for _, s := range samples {
			e.ingest(s)
		}
		e.spare = samples
		if !closed || b.Len() > 0 {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(e.buffers); i++ {
		e.buffers[i] = nil
	}
	e.buffers = kept
}

// ingest must be called with e.mu held.
func (e *Engine) ingest(s Sample) {
	agg, ok := e.aggregates[s.Metric]
	if !ok {
		e.dropped.Add(1)
		return
	}
	agg.add(s.Value)

	if s.Metric == Checks {
		if name := s.Tags[TagCheck]; name != "" {
			cs, ok := e.checks[name]
			if !ok {
				cs = &CheckSummary{Name: name}
				e.checks[name] = cs
			}
			if s.Value != 0 {
				cs.Passes++
			} else {
				cs.Fails++
			}
		}
	}

	for _, o := range e.observers {
		o.ObserveSample(s)
	}
}

// emitBucket records the state at the end of the current interval.
func (e *Engine) emitBucket() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	totalRequests := e.counterCount(HTTPReqs)
	totalFailures := e.rateFails(HTTPReqFailed)

	intervalRequests := totalRequests - e.lastBucketRequests
	intervalFailures := totalFailures - e.lastBucketFailures

	seconds := now.Sub(e.lastBucketTime).Seconds()
	if seconds <= 0 {
		seconds = e.config.FlushInterval.Seconds()
	}

	bucket := &TimeBucket{
		Timestamp:        now,
		TotalRequests:    totalRequests,
		TotalFailures:    totalFailures,
		IntervalRequests: intervalRequests,
		IntervalRPS:      float64(intervalRequests) / seconds,
		ActiveVUs:        e.GetActiveVUs(),
		Phase:            e.GetPhase(),
	}
	if intervalRequests > 0 {
		bucket.IntervalErrorRate = float64(intervalFailures) / float64(intervalRequests)
	}
	if t, ok := e.aggregates[HTTPReqDuration].(*trendAggregate); ok && t.count > 0 {
		bucket.DurationP95 = fromMicros(t.hist.ValueAtQuantile(95))
	}

	e.bucketStore.Add(bucket)
	e.lastBucketTime = now
	e.lastBucketRequests = totalRequests
	e.lastBucketFailures = totalFailures

	for _, o := range e.observers {
		o.ObserveBucket(bucket)
	}
}

func (e *Engine) counterCount(name string) int64 {
	if c, ok := e.aggregates[name].(*counterAggregate); ok {
		return int64(c.sum)
	}
	return 0
}

func (e *Engine) rateFails(name string) int64 {
	if r, ok := e.aggregates[name].(*rateAggregate); ok {
		return r.passes
	}
	return 0
}

// SetPhase updates the current run phase.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.phase == phase {
		return
	}
	e.phase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{Phase: phase, Timestamp: time.Now()})
}

// GetPhase returns the current run phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.phase
}

// GetPhaseHistory returns the history of phase changes.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

// SetActiveVUs updates the active VU count.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
}

// GetActiveVUs returns the current active VU count.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// Snapshot returns the aggregated view of every defined metric. Samples still
// sitting in buffers are not included until the next Collect.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(e.startTime)

	snap := &Snapshot{
		Timestamp: now,
		Elapsed:   elapsed,
		ActiveVUs: e.GetActiveVUs(),
		Phase:     e.GetPhase(),
		Metrics:   make(map[string]*Summary, len(e.aggregates)),
		Dropped:   e.dropped.Load(),
	}
	for name, agg := range e.aggregates {
		snap.Metrics[name] = agg.summary(name, elapsed)
	}

	for _, cs := range e.checks {
		snap.Checks = append(snap.Checks, *cs)
	}
	sort.Slice(snap.Checks, func(i, j int) bool { return snap.Checks[i].Name < snap.Checks[j].Name })

	return snap
}

// GetTimeSeries returns all time-series buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}
