// Package threshold parses and evaluates pass/fail criteria on run metrics.
//
// Expressions follow the form "<aggregation> <operator> <value>", for example
// "p(95)<500", "rate==0" or "avg <= 250ms". Trend values are milliseconds; a
// Go duration is accepted and converted.
package threshold

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tripplanner/tripload/internal/metrics"
)

var expressionRe = regexp.MustCompile(`^(\w+(?:\(\s*[0-9.]+\s*\))?)\s*(<=|>=|==|!=|<|>)\s*(\S+)$`)

// p(95) as in k6, or the shorthand p95.
var percentileRe = regexp.MustCompile(`^p(?:\(([0-9.]+)\)|([0-9]+(?:\.[0-9]+)?))$`)

// Threshold is a parsed criterion on one metric.
type Threshold struct {
	Metric      string
	Expression  string
	Aggregation string  // avg, min, max, med, count, rate or p
	Percentile  float64 // set when Aggregation is "p"
	Operator    string
	Value       float64
}

// Parse parses expr as a threshold on metric.
func Parse(metric, expr string) (*Threshold, error) {
	expr = strings.TrimSpace(expr)
	matches := expressionRe.FindStringSubmatch(expr)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid threshold expression %q", expr)
	}

	t := &Threshold{
		Metric:     metric,
		Expression: expr,
		Operator:   matches[2],
	}

	agg := strings.ReplaceAll(matches[1], " ", "")
	switch agg {
	case "avg", "min", "max", "med", "count", "rate":
		t.Aggregation = agg
	default:
		pm := percentileRe.FindStringSubmatch(agg)
		if pm == nil {
			return nil, fmt.Errorf("unknown aggregation %q in %q", agg, expr)
		}
		raw := pm[1] + pm[2]
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p <= 0 || p > 100 {
			return nil, fmt.Errorf("percentile must be in (0, 100], got %q", raw)
		}
		t.Aggregation = "p"
		t.Percentile = p
	}

	value, err := parseValue(matches[3])
	if err != nil {
		return nil, fmt.Errorf("invalid threshold value in %q: %w", expr, err)
	}
	t.Value = value

	return t, nil
}

// parseValue accepts a plain number or a Go duration, returning milliseconds
// for the latter.
func parseValue(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a number nor a duration", s)
	}
	return metrics.Millis(d), nil
}

// ParseAll parses a metric-to-expressions map, sorted by metric then
// declaration order.
func ParseAll(thresholds map[string][]string) ([]*Threshold, error) {
	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	var parsed []*Threshold
	for _, name := range names {
		for _, expr := range thresholds[name] {
			t, err := Parse(name, expr)
			if err != nil {
				return nil, fmt.Errorf("threshold on %s: %w", name, err)
			}
			parsed = append(parsed, t)
		}
	}
	return parsed, nil
}

// String renders the aggregation as written in expressions, e.g. "p(95)".
func (t *Threshold) String() string {
	return fmt.Sprintf("%s %s %s", t.aggregationLabel(), t.Operator, strconv.FormatFloat(t.Value, 'f', -1, 64))
}

func (t *Threshold) aggregationLabel() string {
	if t.Aggregation == "p" {
		return fmt.Sprintf("p(%s)", strconv.FormatFloat(t.Percentile, 'f', -1, 64))
	}
	return t.Aggregation
}
