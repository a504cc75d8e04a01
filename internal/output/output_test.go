package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tripplanner/tripload/internal/executor"
	"github.com/tripplanner/tripload/internal/metrics"
	"github.com/tripplanner/tripload/internal/runner"
	"github.com/tripplanner/tripload/internal/threshold"
)

func sampleResult(passed bool) *runner.Result {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	checks := []metrics.CheckSummary{
		{Name: "GET /profile status 200", Passes: 40, Fails: 0},
		{Name: "GET /groups/{id} id matches", Passes: 38, Fails: 2},
	}
	snapshot := &metrics.Snapshot{
		Metrics: map[string]*metrics.Summary{
			"http_reqs":        {Name: "http_reqs", Type: metrics.TypeCounter, Count: 120, Sum: 120, Rate: 12.5},
			"error_rate":       {Name: "error_rate", Type: metrics.TypeRate, Count: 160, Passes: 2, Fails: 158, Rate: 0.0125},
			"ttfb_get_profile": {Name: "ttfb_get_profile", Type: metrics.TypeTrend, Count: 40, Min: 1.2, Max: 80, Avg: 12, Med: 10, P90: 30, P95: 42.5, P99: 70},
		},
		Checks: checks,
	}

	thresholds := []threshold.Result{
		{Metric: "ttfb_get_profile", Expression: "p(95)<500", Observed: 42.5, Passed: true},
		{Metric: "error_rate", Expression: "rate==0", Observed: 0.0125, Passed: passed},
	}

	return &runner.Result{
		Name:     "travel read-heavy",
		RunID:    "run-42",
		BaseURL:  "http://api.test",
		Start:    start,
		End:      start.Add(105 * time.Second),
		Duration: 105 * time.Second,
		GroupID:  "g-9",
		Stages: []executor.Stage{
			{Duration: 30 * time.Second, Target: 25},
			{Duration: time.Minute, Target: 25},
			{Duration: 15 * time.Second, Target: 0},
		},
		Executor:   &executor.Stats{Iterations: 40, InterruptedIterations: 3, MaxVUs: 25},
		Snapshot:   snapshot,
		Checks:     checks,
		Thresholds: thresholds,
		Passed:     passed,
		TimeSeries: []*metrics.TimeBucket{{Timestamp: start.Add(time.Second), IntervalRPS: 10, Phase: metrics.PhaseRampUp}},
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		ms       float64
		expected string
	}{
		{0, "0ms"},
		{0.5, "500µs"},
		{42.5, "42.50ms"},
		{1500, "1.50s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatMillis(tt.ms))
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatNumber(tt.number))
		})
	}
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "green", stripANSI("\033[32mgreen\033[0m"))
	assert.Equal(t, "no colors here", stripANSI("no \033[31mcolors\033[0m here"))
	assert.Equal(t, 3, visibleLen("\033[1m✓✗✓\033[0m"))
}

func TestConsole_NonTTYHasNoColor(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	assert.False(t, c.IsTTY())
	c.PrintHeader("travel", "http://api.test", executor.Schedule{{Duration: 30 * time.Second, Target: 25, Name: "ramp-up"}})

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "travel - Running")
	assert.Contains(t, out, "http://api.test")
	assert.Contains(t, out, "up to 25 VUs")
	assert.Contains(t, out, "ramp-up")
}

func TestConsole_Report(t *testing.T) {
	stats := &LiveStats{
		Progress: 0.5, Elapsed: 30 * time.Second, Remaining: 30 * time.Second,
		ActiveVUs: 10, TargetVUs: 12, TotalRequests: 1234, RPS: 41.2, ErrorRate: 0.02,
		DurationP95: 120, Phase: "ramp-up", CurrentStage: 1, TotalStages: 3,
	}

	t.Run("non-tty prints a line per update", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConsole(ConsoleConfig{Writer: &buf})
		c.Report(stats)
		c.Report(stats)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "VUs: 10/12")
		assert.Contains(t, lines[0], "Reqs: 1234")
		assert.Contains(t, lines[0], "Errors: 2.00%")
		assert.Contains(t, lines[0], "P95: 120.00ms")
	})

	t.Run("tty redraws in place", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConsole(ConsoleConfig{Writer: &buf, ForceTTY: true})
		c.Report(stats)
		first := buf.Len()
		c.Report(stats)

		out := buf.String()
		assert.Contains(t, out[:first], "Progress:")
		assert.Contains(t, out[first:], "\033[", "second update moves the cursor back")
		assert.Contains(t, out, "ramp-up (1/3)")
		assert.Contains(t, out, "1,234")
	})

	t.Run("quiet prints nothing", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})
		c.Report(stats)
		assert.Empty(t, buf.String())
	})
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})

	c.PrintSummary(sampleResult(false))
	out := buf.String()

	assert.Contains(t, out, "travel read-heavy - FAILED")
	assert.Contains(t, out, "http_reqs....")
	assert.Contains(t, out, "12.50/s")
	assert.Contains(t, out, "error_rate....")
	assert.Contains(t, out, "1.25%")
	assert.Contains(t, out, "p(95)=42.50ms")
	assert.Contains(t, out, "✓ ttfb_get_profile p(95)<500 (observed: 42.50ms)")
	assert.Contains(t, out, "✗ error_rate rate==0 (observed: 1.25%)")
	assert.Contains(t, out, "✗ GET /groups/{id} id matches (38/40 passed)")
	assert.Contains(t, out, "40 (3 interrupted)")
}

func TestConsole_PrintSummaryQuiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})

	c.PrintSummary(sampleResult(true))
	assert.Equal(t, "PASSED ✓\n", buf.String())
}

type fakeSource struct{}

func (fakeSource) Progress() float64 { return 0.25 }

func (fakeSource) Stats() *executor.Stats {
	return &executor.Stats{
		Elapsed: 10 * time.Second, TotalDuration: 40 * time.Second, ActiveVUs: 3, TargetVUs: 4,
		Iterations: 9, CurrentStage: 0, TotalStages: 2, Phase: metrics.PhaseRampUp,
	}
}

func (fakeSource) Snapshot() *metrics.Snapshot {
	return sampleResult(true).Snapshot
}

func TestLiveStatsFrom(t *testing.T) {
	stats := LiveStatsFrom(fakeSource{})

	assert.Equal(t, 0.25, stats.Progress)
	assert.Equal(t, 30*time.Second, stats.Remaining)
	assert.Equal(t, int64(120), stats.TotalRequests)
	assert.Equal(t, 12.5, stats.RPS)
	assert.Equal(t, 0.0125, stats.ErrorRate)
	assert.Equal(t, 42.5, stats.ProfileP95)
	assert.Equal(t, 1, stats.CurrentStage)
	assert.Equal(t, "ramp-up", stats.Phase)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("summary.json"))
	assert.Equal(t, FormatJSON, FormatForPath("summary"))
	assert.Equal(t, FormatYAML, FormatForPath("out/summary.YML"))
	assert.Equal(t, FormatJUnit, FormatForPath("junit.xml"))
}

func TestExport_JSON(t *testing.T) {
	data, err := Export(sampleResult(true), FormatJSON)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-42", decoded["runId"])
	assert.Equal(t, true, decoded["passed"])
	assert.Equal(t, float64(105000), decoded["durationMs"])

	metricsList := decoded["metrics"].([]any)
	require.Len(t, metricsList, 3)
	assert.Equal(t, "error_rate", metricsList[0].(map[string]any)["name"], "metrics are sorted by name")
	assert.NotEmpty(t, decoded["timeSeries"])
}

func TestExport_YAML(t *testing.T) {
	data, err := Export(sampleResult(true), FormatYAML)
	require.NoError(t, err)

	var decoded Summary
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "g-9", decoded.GroupID)
	assert.Len(t, decoded.Thresholds, 2)
	assert.Empty(t, decoded.TimeSeries)
}

func TestExport_JUnit(t *testing.T) {
	data, err := Export(sampleResult(false), FormatJUnit)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &suites))
	require.Len(t, suites.TestSuites, 2)

	thresholds := suites.TestSuites[0]
	assert.Equal(t, 2, thresholds.Tests)
	assert.Equal(t, 1, thresholds.Failures)
	assert.Nil(t, thresholds.TestCases[0].Failure)
	require.NotNil(t, thresholds.TestCases[1].Failure)

	assert.Equal(t, 1, suites.TestSuites[1].Failures)
}

func TestExport_UnknownFormat(t *testing.T) {
	_, err := Export(sampleResult(true), "csv")
	assert.Error(t, err)
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "summary.json")
	require.NoError(t, WriteSummary(sampleResult(true), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"runId": "run-42"`)
}
