package metrics

import (
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Trend histogram range: 1 microsecond to 1 hour, 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// Summary is the aggregated view of one metric.
//
// Counter: Count, Sum, Rate (per second).
// Rate: Count, Passes, Fails, Rate (passes/count, 0 when empty).
// Trend: Count, Min, Max, Avg, Med, P90, P95, P99 in milliseconds.
type Summary struct {
	Name   string  `json:"name"`
	Type   Type    `json:"type"`
	Count  int64   `json:"count"`
	Sum    float64 `json:"sum,omitempty"`
	Rate   float64 `json:"rate"`
	Passes int64   `json:"passes,omitempty"`
	Fails  int64   `json:"fails,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Avg    float64 `json:"avg,omitempty"`
	Med    float64 `json:"med,omitempty"`
	P90    float64 `json:"p90,omitempty"`
	P95    float64 `json:"p95,omitempty"`
	P99    float64 `json:"p99,omitempty"`

	hist *hdrhistogram.Histogram
}

// Percentile returns the trend value at percentile p (0 < p <= 100) in milliseconds.
// It returns 0 for non-trend metrics or empty trends.
func (s *Summary) Percentile(p float64) float64 {
	if s == nil || s.hist == nil || s.hist.TotalCount() == 0 {
		return 0
	}
	return fromMicros(s.hist.ValueAtQuantile(p))
}

type aggregate interface {
	add(value float64)
	summary(name string, elapsed time.Duration) *Summary
}

func newAggregate(t Type) aggregate {
	switch t {
	case TypeRate:
		return &rateAggregate{}
	case TypeTrend:
		return &trendAggregate{
			hist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
			min:  math.Inf(1),
			max:  math.Inf(-1),
		}
	default:
		return &counterAggregate{}
	}
}

type counterAggregate struct {
	count int64
	sum   float64
}

func (a *counterAggregate) add(value float64) {
	a.count++
	a.sum += value
}

func (a *counterAggregate) summary(name string, elapsed time.Duration) *Summary {
	s := &Summary{Name: name, Type: TypeCounter, Count: a.count, Sum: a.sum}
	if elapsed > 0 {
		s.Rate = a.sum / elapsed.Seconds()
	}
	return s
}

type rateAggregate struct {
	passes int64
	total  int64
}

func (a *rateAggregate) add(value float64) {
	a.total++
	if value != 0 {
		a.passes++
	}
}

func (a *rateAggregate) summary(name string, _ time.Duration) *Summary {
	s := &Summary{
		Name:   name,
		Type:   TypeRate,
		Count:  a.total,
		Passes: a.passes,
		Fails:  a.total - a.passes,
	}
	if a.total > 0 {
		s.Rate = float64(a.passes) / float64(a.total)
	}
	return s
}

type trendAggregate struct {
	hist  *hdrhistogram.Histogram
	count int64
	sum   float64
	min   float64
	max   float64
}

func (a *trendAggregate) add(value float64) {
	if value < 0 || math.IsNaN(value) {
		value = 0
	}
	_ = a.hist.RecordValue(toMicros(value))
	a.count++
	a.sum += value
	a.min = math.Min(a.min, value)
	a.max = math.Max(a.max, value)
}

func (a *trendAggregate) summary(name string, _ time.Duration) *Summary {
	s := &Summary{Name: name, Type: TypeTrend, Count: a.count}
	if a.count == 0 {
		return s
	}

	s.Min = a.min
	s.Max = a.max
	s.Avg = a.sum / float64(a.count)
	s.Med = fromMicros(a.hist.ValueAtQuantile(50))
	s.P90 = fromMicros(a.hist.ValueAtQuantile(90))
	s.P95 = fromMicros(a.hist.ValueAtQuantile(95))
	s.P99 = fromMicros(a.hist.ValueAtQuantile(99))
	s.hist = hdrhistogram.Import(a.hist.Export())
	return s
}

// toMicros converts milliseconds to the clamped histogram unit.
func toMicros(ms float64) int64 {
	us := int64(math.Round(ms * 1000))
	if us < histogramMin {
		us = histogramMin
	}
	if us > histogramMax {
		us = histogramMax
	}
	return us
}

func fromMicros(us int64) float64 {
	return float64(us) / 1000
}
