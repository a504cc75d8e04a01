package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tripplanner/tripload/internal/metrics"
	"github.com/tripplanner/tripload/internal/runner"
)

// ExportFormat represents the available summary export formats
type ExportFormat string

const (
	// FormatJSON exports the summary as JSON
	FormatJSON ExportFormat = "json"
	// FormatYAML exports the summary as YAML
	FormatYAML ExportFormat = "yaml"
	// FormatJUnit exports thresholds and checks as JUnit XML (for CI/CD integration)
	FormatJUnit ExportFormat = "junit"
)

// FormatForPath picks the export format from a file extension, defaulting to JSON.
func FormatForPath(path string) ExportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".xml":
		return FormatJUnit
	default:
		return FormatJSON
	}
}

// Summary is the machine-readable end-of-run summary.
type Summary struct {
	Name        string    `json:"name" yaml:"name"`
	RunID       string    `json:"runId" yaml:"runId"`
	BaseURL     string    `json:"baseUrl" yaml:"baseUrl"`
	StartTime   time.Time `json:"startTime" yaml:"startTime"`
	EndTime     time.Time `json:"endTime" yaml:"endTime"`
	DurationMs  int64     `json:"durationMs" yaml:"durationMs"`
	GroupID     string    `json:"groupId" yaml:"groupId"`
	Passed      bool      `json:"passed" yaml:"passed"`
	Interrupted bool      `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`

	Iterations            int64 `json:"iterations" yaml:"iterations"`
	InterruptedIterations int64 `json:"interruptedIterations" yaml:"interruptedIterations"`
	MaxVUs                int   `json:"maxVUs" yaml:"maxVUs"`

	Metrics    []MetricSummary    `json:"metrics" yaml:"metrics"`
	Checks     []CheckSummary     `json:"checks,omitempty" yaml:"checks,omitempty"`
	Thresholds []ThresholdSummary `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	TimeSeries []*metrics.TimeBucket `json:"timeSeries,omitempty" yaml:"-"`
}

// MetricSummary is the aggregate of one metric. Trend values are in milliseconds.
type MetricSummary struct {
	Name   string  `json:"name" yaml:"name"`
	Type   string  `json:"type" yaml:"type"`
	Count  int64   `json:"count" yaml:"count"`
	Sum    float64 `json:"sum,omitempty" yaml:"sum,omitempty"`
	Rate   float64 `json:"rate" yaml:"rate"`
	Passes int64   `json:"passes,omitempty" yaml:"passes,omitempty"`
	Fails  int64   `json:"fails,omitempty" yaml:"fails,omitempty"`
	Min    float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Avg    float64 `json:"avg,omitempty" yaml:"avg,omitempty"`
	Med    float64 `json:"med,omitempty" yaml:"med,omitempty"`
	P90    float64 `json:"p90,omitempty" yaml:"p90,omitempty"`
	P95    float64 `json:"p95,omitempty" yaml:"p95,omitempty"`
	P99    float64 `json:"p99,omitempty" yaml:"p99,omitempty"`
}

// CheckSummary is the outcome of one named check.
type CheckSummary struct {
	Name   string `json:"name" yaml:"name"`
	Passes int64  `json:"passes" yaml:"passes"`
	Fails  int64  `json:"fails" yaml:"fails"`
}

// ThresholdSummary is the outcome of one threshold expression.
type ThresholdSummary struct {
	Metric     string  `json:"metric" yaml:"metric"`
	Expression string  `json:"expression" yaml:"expression"`
	Observed   float64 `json:"observed" yaml:"observed"`
	Passed     bool    `json:"passed" yaml:"passed"`
	Message    string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// NewSummary flattens a run result into its exported form.
func NewSummary(result *runner.Result) *Summary {
	s := &Summary{
		Name:        result.Name,
		RunID:       result.RunID,
		BaseURL:     result.BaseURL,
		StartTime:   result.Start,
		EndTime:     result.End,
		DurationMs:  result.Duration.Milliseconds(),
		GroupID:     result.GroupID,
		Passed:      result.Passed,
		Interrupted: result.Interrupted,
		TimeSeries:  result.TimeSeries,
	}

	if result.Executor != nil {
		s.Iterations = result.Executor.Iterations
		s.InterruptedIterations = result.Executor.InterruptedIterations
		s.MaxVUs = result.Executor.MaxVUs
	}

	if result.Snapshot != nil {
		for _, m := range result.Snapshot.Metrics {
			s.Metrics = append(s.Metrics, MetricSummary{
				Name: m.Name, Type: m.Type.String(), Count: m.Count, Sum: m.Sum, Rate: m.Rate,
				Passes: m.Passes, Fails: m.Fails, Min: m.Min, Max: m.Max, Avg: m.Avg,
				Med: m.Med, P90: m.P90, P95: m.P95, P99: m.P99,
			})
		}
		sort.Slice(s.Metrics, func(i, j int) bool { return s.Metrics[i].Name < s.Metrics[j].Name })
	}

	for _, c := range result.Checks {
		s.Checks = append(s.Checks, CheckSummary{Name: c.Name, Passes: c.Passes, Fails: c.Fails})
	}
	for _, t := range result.Thresholds {
		s.Thresholds = append(s.Thresholds, ThresholdSummary{
			Metric: t.Metric, Expression: t.Expression, Observed: t.Observed, Passed: t.Passed, Message: t.Message,
		})
	}
	return s
}

// Export renders the summary of result in format.
func Export(result *runner.Result, format ExportFormat) ([]byte, error) {
	summary := NewSummary(result)

	switch format {
	case FormatJSON:
		return json.MarshalIndent(summary, "", "  ")
	case FormatYAML:
		return yaml.Marshal(summary)
	case FormatJUnit:
		out, err := xml.MarshalIndent(junitSuites(summary), "", "  ")
		if err != nil {
			return nil, err
		}
		return append([]byte(xml.Header), out...), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteSummary exports the summary of result to path, choosing the format
// from its extension.
func WriteSummary(result *runner.Result, path string) error {
	data, err := Export(result, FormatForPath(path))
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// JUnitTestSuites represents the root element containing all test suites
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a JUnit test suite
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a JUnit test case
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure represents a JUnit test failure
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// junitSuites maps thresholds and checks to two suites so CI systems can
// show which objective broke the run.
func junitSuites(s *Summary) *JUnitTestSuites {
	seconds := float64(s.DurationMs) / 1000
	timestamp := s.StartTime.Format(time.RFC3339)

	thresholds := JUnitTestSuite{
		Name:      "thresholds",
		Time:      seconds,
		Timestamp: timestamp,
		TestCases: []JUnitTestCase{},
	}
	for _, t := range s.Thresholds {
		tc := JUnitTestCase{
			Name:      t.Metric + " " + t.Expression,
			Classname: "tripload.thresholds." + t.Metric,
			Time:      seconds,
			SystemOut: fmt.Sprintf("observed: %g", t.Observed),
		}
		if !t.Passed {
			msg := t.Message
			if msg == "" {
				msg = fmt.Sprintf("%s %s not satisfied (observed %g)", t.Metric, t.Expression, t.Observed)
			}
			tc.Failure = &JUnitFailure{Message: msg, Type: "ThresholdFailed", Content: msg}
			thresholds.Failures++
		}
		thresholds.TestCases = append(thresholds.TestCases, tc)
	}
	thresholds.Tests = len(thresholds.TestCases)

	checks := JUnitTestSuite{
		Name:      "checks",
		Time:      seconds,
		Timestamp: timestamp,
		TestCases: []JUnitTestCase{},
	}
	for _, c := range s.Checks {
		tc := JUnitTestCase{
			Name:      c.Name,
			Classname: "tripload.checks",
			Time:      seconds,
			SystemOut: fmt.Sprintf("passes: %d, fails: %d", c.Passes, c.Fails),
		}
		if c.Fails > 0 {
			msg := fmt.Sprintf("%d of %d checks failed", c.Fails, c.Passes+c.Fails)
			tc.Failure = &JUnitFailure{Message: msg, Type: "CheckFailed", Content: msg}
			checks.Failures++
		}
		checks.TestCases = append(checks.TestCases, tc)
	}
	checks.Tests = len(checks.TestCases)

	return &JUnitTestSuites{TestSuites: []JUnitTestSuite{thresholds, checks}}
}
