// Package metrics collects and aggregates load-test samples.
package metrics

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the kind of a metric, which decides how its samples aggregate.
type Type int

const (
	// TypeCounter sums sample values.
	TypeCounter Type = iota
	// TypeRate tracks the fraction of non-zero samples.
	TypeRate
	// TypeTrend keeps a latency distribution in milliseconds.
	TypeTrend
)

func (t Type) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeRate:
		return "rate"
	case TypeTrend:
		return "trend"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the type by name.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Phase represents a phase of the load run.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseSetup    Phase = "setup"
	PhaseRampUp   Phase = "ramp-up"
	PhaseSteady   Phase = "steady"
	PhaseRampDown Phase = "ramp-down"
	PhaseTeardown Phase = "teardown"
	PhaseDone     Phase = "done"
)

// Names of the metrics every run records.
const (
	HTTPReqs          = "http_reqs"
	HTTPReqDuration   = "http_req_duration"
	HTTPReqWaiting    = "http_req_waiting"
	HTTPReqFailed     = "http_req_failed"
	Checks            = "checks"
	Iterations        = "iterations"
	IterationDuration = "iteration_duration"
)

// Common sample tag keys.
const (
	TagName   = "name"
	TagStatus = "status"
	TagCheck  = "check"
)

// Definition declares a metric before samples for it are accepted.
type Definition struct {
	Name string
	Type Type
}

// BuiltinDefinitions returns the metrics recorded for every request and iteration.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{Name: HTTPReqs, Type: TypeCounter},
		{Name: HTTPReqDuration, Type: TypeTrend},
		{Name: HTTPReqWaiting, Type: TypeTrend},
		{Name: HTTPReqFailed, Type: TypeRate},
		{Name: Checks, Type: TypeRate},
		{Name: Iterations, Type: TypeCounter},
		{Name: IterationDuration, Type: TypeTrend},
	}
}

// Sample is a single observation. Samples are never mutated after they are emitted.
type Sample struct {
	Metric string            `json:"metric"`
	Value  float64           `json:"value"`
	Time   time.Time         `json:"time"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Bool converts a boolean outcome into a rate sample value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Millis converts a duration into a trend sample value.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// CheckSummary is the pass/fail count of one named check.
type CheckSummary struct {
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Elapsed   time.Duration       `json:"elapsed"`
	ActiveVUs int                 `json:"activeVUs"`
	Phase     Phase               `json:"phase"`
	Metrics   map[string]*Summary `json:"metrics"`
	Checks    []CheckSummary      `json:"checks,omitempty"`
	Dropped   int64               `json:"dropped,omitempty"`
}

// Get returns the summary of a metric, or nil when it is not defined.
func (s *Snapshot) Get(name string) *Summary {
	if s == nil {
		return nil
	}
	return s.Metrics[name]
}

// TimeBucket captures the run state at the end of one flush interval.
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	// Cumulative totals
	TotalRequests int64 `json:"totalRequests"`
	TotalFailures int64 `json:"totalFailures"`

	// Interval metrics
	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`

	// Cumulative http_req_duration percentile at this point, in milliseconds
	DurationP95 float64 `json:"durationP95"`

	ActiveVUs int   `json:"activeVUs"`
	Phase     Phase `json:"phase"`
}

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase     Phase     `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}

func (p PhaseChange) String() string {
	return fmt.Sprintf("%s@%s", p.Phase, p.Timestamp.Format(time.RFC3339))
}
