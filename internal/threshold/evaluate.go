package threshold

import (
	"fmt"

	"github.com/tripplanner/tripload/internal/metrics"
)

// Result contains the result of a threshold evaluation.
type Result struct {
	Metric     string  `json:"metric"`
	Expression string  `json:"expression"`
	Observed   float64 `json:"observed"`
	Passed     bool    `json:"passed"`
	Message    string  `json:"message,omitempty"`
}

// Evaluate checks every threshold against snapshot. A threshold on a metric
// missing from the snapshot, or using an aggregation its kind does not
// provide, fails with an explanatory message.
func Evaluate(thresholds []*Threshold, snapshot *metrics.Snapshot) []Result {
	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		results = append(results, evaluate(t, snapshot))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func evaluate(t *Threshold, snapshot *metrics.Snapshot) Result {
	result := Result{
		Metric:     t.Metric,
		Expression: t.Expression,
	}

	summary := snapshot.Get(t.Metric)
	if summary == nil {
		result.Message = fmt.Sprintf("unknown metric: %s", t.Metric)
		return result
	}

	observed, err := observe(t, summary)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	result.Observed = observed
	result.Passed = compareValues(observed, t.Operator, t.Value)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.4g, threshold: %s", t.aggregationLabel(), observed, t)
	}
	return result
}

// observe extracts the aggregation a threshold refers to.
func observe(t *Threshold, s *metrics.Summary) (float64, error) {
	switch s.Type {
	case metrics.TypeTrend:
		switch t.Aggregation {
		case "avg":
			return s.Avg, nil
		case "min":
			return s.Min, nil
		case "max":
			return s.Max, nil
		case "med":
			return s.Med, nil
		case "count":
			return float64(s.Count), nil
		case "p":
			return s.Percentile(t.Percentile), nil
		}
	case metrics.TypeRate:
		if t.Aggregation == "rate" {
			return s.Rate, nil
		}
	case metrics.TypeCounter:
		switch t.Aggregation {
		case "count":
			return s.Sum, nil
		case "rate":
			return s.Rate, nil
		}
	}
	return 0, fmt.Errorf("%s metric %s does not support %s", s.Type, s.Name, t.aggregationLabel())
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==":
		return actual == threshold
	case "!=":
		return actual != threshold
	default:
		return false
	}
}
