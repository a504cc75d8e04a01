// Package report renders a self-contained HTML report of a finished run.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tripplanner/tripload/internal/metrics"
	"github.com/tripplanner/tripload/internal/runner"
)

// ReportData contains all data needed to render the HTML report.
type ReportData struct {
	*runner.Result
	Trends         []*metrics.Summary
	Rates          []*metrics.Summary
	Counters       []*metrics.Summary
	TimeSeriesJSON template.JS
	GeneratedAt    time.Time
}

// TimeSeriesPoint represents a single point in the time series for JSON export.
type TimeSeriesPoint struct {
	Timestamp         string  `json:"timestamp"`
	TotalRequests     int64   `json:"totalRequests"`
	TotalFailures     int64   `json:"totalFailures"`
	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`
	DurationP95       float64 `json:"durationP95"`
	ActiveVUs         int     `json:"activeVUs"`
	Phase             string  `json:"phase"`
}

// GenerateHTML generates an HTML report from run results and writes it to a file.
func GenerateHTML(result *runner.Result, outputPath string) error {
	html, err := GenerateHTMLString(result)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}

	return nil
}

// GenerateHTMLString generates an HTML report from run results and returns it as a string.
func GenerateHTMLString(result *runner.Result) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	tmpl, err := template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	timeSeriesJSON, err := convertTimeSeriesJSON(result.TimeSeries)
	if err != nil {
		return "", fmt.Errorf("failed to convert time series: %w", err)
	}

	data := ReportData{
		Result:         result,
		TimeSeriesJSON: template.JS(timeSeriesJSON),
		GeneratedAt:    time.Now(),
	}
	data.Trends, data.Rates, data.Counters = splitByType(result.Snapshot)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// splitByType groups the snapshot's summaries by metric kind, each sorted by name.
func splitByType(snap *metrics.Snapshot) (trends, rates, counters []*metrics.Summary) {
	if snap == nil {
		return nil, nil, nil
	}
	for _, s := range snap.Metrics {
		switch s.Type {
		case metrics.TypeTrend:
			trends = append(trends, s)
		case metrics.TypeRate:
			rates = append(rates, s)
		case metrics.TypeCounter:
			counters = append(counters, s)
		}
	}
	byName := func(list []*metrics.Summary) {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	byName(trends)
	byName(rates)
	byName(counters)
	return trends, rates, counters
}

// convertTimeSeriesJSON converts the time series buckets to JSON for embedding.
func convertTimeSeriesJSON(timeSeries []*metrics.TimeBucket) (string, error) {
	if len(timeSeries) == 0 {
		return "[]", nil
	}

	points := make([]TimeSeriesPoint, len(timeSeries))
	for i, bucket := range timeSeries {
		points[i] = TimeSeriesPoint{
			Timestamp:         bucket.Timestamp.Format(time.RFC3339),
			TotalRequests:     bucket.TotalRequests,
			TotalFailures:     bucket.TotalFailures,
			IntervalRequests:  bucket.IntervalRequests,
			IntervalRPS:       bucket.IntervalRPS,
			IntervalErrorRate: bucket.IntervalErrorRate,
			DurationP95:       bucket.DurationP95,
			ActiveVUs:         bucket.ActiveVUs,
			Phase:             string(bucket.Phase),
		}
	}

	jsonBytes, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}

	return string(jsonBytes), nil
}

// templateFuncs returns the template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatNumber":   formatNumber,
		"formatMillis":   formatMillis,
		"percent":        percent,
		"metric":         metricValue,
		"offset":         offset,
		"metricSummary":  (*metrics.Snapshot).Get,
		"int64":          func(f float64) int64 { return int64(f) },
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// formatNumber formats a large number with commas.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// formatMillis formats a latency given in milliseconds.
func formatMillis(ms float64) string {
	switch {
	case ms <= 0:
		return "0"
	case ms < 1:
		return fmt.Sprintf("%.0fµs", ms*1000)
	case ms < 10:
		return fmt.Sprintf("%.2fms", ms)
	case ms < 100:
		return fmt.Sprintf("%.1fms", ms)
	case ms < 1000:
		return fmt.Sprintf("%.0fms", ms)
	default:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
}

func percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

// metricValue renders an observed threshold value in its metric's unit.
func metricValue(snap *metrics.Snapshot, name string, v float64) string {
	s := snap.Get(name)
	if s == nil {
		return fmt.Sprintf("%g", v)
	}
	switch s.Type {
	case metrics.TypeTrend:
		return formatMillis(v)
	case metrics.TypeRate:
		return percent(v)
	default:
		return fmt.Sprintf("%g", v)
	}
}

// offset is the time of t relative to start, for the time series table.
func offset(start, t time.Time) string {
	return formatDuration(t.Sub(start).Round(time.Second))
}
