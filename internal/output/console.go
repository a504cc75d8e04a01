// Package output renders run progress and results for humans and machines.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tripplanner/tripload/internal/executor"
	"github.com/tripplanner/tripload/internal/metrics"
	"github.com/tripplanner/tripload/internal/runner"
	"github.com/tripplanner/tripload/internal/scenario"
)

// ANSI escape codes for redrawing the live block
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"

	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"

	ruleWidth  = 56
	labelWidth = 28
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveVUs int
	TargetVUs int

	Iterations    int64
	TotalRequests int64
	RPS           float64

	// ErrorRate is the failed-check fraction of the run so far
	ErrorRate float64

	// Latencies in milliseconds
	DurationP95 float64
	ProfileP95  float64

	Phase        string
	CurrentStage int // 1-indexed
	TotalStages  int
}

// Source provides the live view of a running test.
type Source interface {
	Progress() float64
	Stats() *executor.Stats
	Snapshot() *metrics.Snapshot
}

// LiveStatsFrom reads the current statistics from src.
func LiveStatsFrom(src Source) *LiveStats {
	progress := src.Progress()
	snap := src.Snapshot()

	stats := &LiveStats{
		Progress: progress,
		Phase:    "setup",
	}
	if snap != nil {
		stats.Phase = string(snap.Phase)
		if s := snap.Get(metrics.HTTPReqs); s != nil {
			stats.TotalRequests = int64(s.Sum)
			stats.RPS = s.Rate
		}
		if s := snap.Get(scenario.MetricErrorRate); s != nil {
			stats.ErrorRate = s.Rate
		}
		if s := snap.Get(metrics.HTTPReqDuration); s != nil {
			stats.DurationP95 = s.P95
		}
		if s := snap.Get(scenario.MetricTTFBProfile); s != nil {
			stats.ProfileP95 = s.P95
		}
	}

	if es := src.Stats(); es != nil {
		stats.Elapsed = es.Elapsed
		stats.Remaining = es.TotalDuration - es.Elapsed
		if stats.Remaining < 0 {
			stats.Remaining = 0
		}
		stats.ActiveVUs = es.ActiveVUs
		stats.TargetVUs = es.TargetVUs
		stats.Iterations = es.Iterations
		stats.CurrentStage = es.CurrentStage + 1
		stats.TotalStages = es.TotalStages
		stats.Phase = string(es.Phase)
	}
	return stats
}

// Console manages human-readable output during and after a run.
type Console struct {
	writer  io.Writer
	isTTY   bool
	noColor bool
	quiet   bool
	colors  *ColorScheme

	mu          sync.Mutex
	linesOutput int // lines of the live block currently on screen
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer   io.Writer
	NoColor  bool
	Quiet    bool
	ForceTTY bool
}

// NewConsole creates a console writer. Colors are used only on a terminal
// and never when NoColor or the NO_COLOR environment variable is set.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)
	noColor := config.NoColor || !isTerminal(config.Writer) || colorsDisabled()

	colors := NoColorScheme()
	if !noColor {
		colors = DefaultColorScheme()
		colors.forceColors()
	}

	return &Console{
		writer:  config.Writer,
		isTTY:   isTTY,
		noColor: noColor,
		quiet:   config.Quiet,
		colors:  colors,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run banner with target and schedule.
func (c *Console) PrintHeader(name, baseURL string, schedule executor.Schedule) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.colors.Rule.Sprint(strings.Repeat(boxHorizontal, ruleWidth))
	c.writeln(rule)
	c.writeln(c.colors.Title.Sprintf("%s - Running", name))
	c.writeln(rule)
	c.writeln(fmt.Sprintf("Target:    %s", c.colors.Value.Sprint(baseURL)))
	c.writeln(fmt.Sprintf("Schedule:  up to %s VUs over %s",
		c.colors.Value.Sprint(schedule.MaxTarget()),
		c.colors.Value.Sprint(formatDuration(schedule.TotalDuration()))))
	for i, s := range schedule {
		label := s.Name
		if label == "" {
			label = fmt.Sprintf("stage-%d", i+1)
		}
		c.writeln(c.colors.Dim.Sprintf("  %d. %-10s %8s -> %d VUs", i+1, label, formatDuration(s.Duration), s.Target))
	}
	c.writeln("")
}

// Report shows stats in the mode suited to the output: a redrawn block on a
// terminal, a single appended line otherwise.
func (c *Console) Report(stats *LiveStats) {
	if c.isTTY {
		c.Update(stats)
		return
	}
	c.PrintNonInteractiveUpdate(stats)
}

// Watch reports live stats from src every interval until ctx ends.
func (c *Console) Watch(ctx context.Context, src Source, interval time.Duration) {
	if c.quiet {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Report(LiveStatsFrom(src))
		}
	}
}

// Update redraws the live display in place.
func (c *Console) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// PrintNonInteractiveUpdate prints one status line, for CI logs and pipes.
func (c *Console) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] %s %.0f%% | VUs: %d/%d | Iters: %d | Reqs: %d | RPS: %.1f | Errors: %.2f%% | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Phase,
		stats.Progress*100,
		stats.ActiveVUs,
		stats.TargetVUs,
		stats.Iterations,
		stats.TotalRequests,
		stats.RPS,
		stats.ErrorRate*100,
		formatMillis(stats.DurationP95)))
}

func (c *Console) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	bar := c.colors.Success.Sprint(renderProgressBar(stats.Progress, 40))
	timeInfo := c.colors.Dim.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))
	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s", bar, c.colors.Title.Sprintf("%.0f%%", stats.Progress*100), timeInfo))

	phase := stats.Phase
	if stats.TotalStages > 0 {
		phase = fmt.Sprintf("%s (%d/%d)", stats.Phase, stats.CurrentStage, stats.TotalStages)
	}
	lines = append(lines, fmt.Sprintf("Stage:    %s", c.colors.Stage.Sprint(phase)))
	lines = append(lines, "")

	boxWidth := 55
	lines = append(lines, c.colors.Dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("VUs:     %s / %d", c.colors.Value.Sprint(stats.ActiveVUs), stats.TargetVUs),
		fmt.Sprintf("Requests:    %s", c.colors.Value.Sprint(formatNumber(stats.TotalRequests))),
		boxWidth))

	errColor := c.colors.rateColor(stats.ErrorRate)
	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("RPS:     %s", c.colors.Success.Sprintf("%.1f", stats.RPS)),
		fmt.Sprintf("Error rate:  %s", errColor.Sprintf("%.2f%%", stats.ErrorRate*100)),
		boxWidth))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("P95:     %s", c.colors.Latency.Sprint(formatMillis(stats.DurationP95))),
		fmt.Sprintf("Iterations:  %s", c.colors.Value.Sprint(formatNumber(stats.Iterations))),
		boxWidth))

	lines = append(lines, c.colors.Dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))
	return lines
}

func (c *Console) formatBoxRow(left, right string, boxWidth int) string {
	colWidth := (boxWidth - 4) / 2
	leftPadding := max(colWidth-visibleLen(left), 0)
	rightPadding := max(colWidth-visibleLen(right), 0)

	border := c.colors.Dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s%s %s%s %s",
		border, left, strings.Repeat(" ", leftPadding),
		border, right, strings.Repeat(" ", rightPadding),
		border)
}

// clearLive erases the live block. The caller holds c.mu.
func (c *Console) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

// PrintSummary prints every metric's aggregates, the checks, each threshold
// with its observed value and the overall verdict.
func (c *Console) PrintSummary(result *runner.Result) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quiet {
		c.writeln(c.verdict(result))
		return
	}

	if c.isTTY {
		c.clearLive()
	}

	rule := c.colors.Rule.Sprint(strings.Repeat(boxHorizontal, ruleWidth))
	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Name), c.verdict(result)))
	c.writeln(rule)
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(result.Duration))))
	c.writeln(fmt.Sprintf("Test group:    %s", c.colors.Value.Sprint(result.GroupID)))
	if result.Executor != nil {
		c.writeln(fmt.Sprintf("Iterations:    %s (%d interrupted)",
			c.colors.Value.Sprint(formatNumber(result.Executor.Iterations)),
			result.Executor.InterruptedIterations))
		c.writeln(fmt.Sprintf("Max VUs:       %s", c.colors.Value.Sprint(result.Executor.MaxVUs)))
	}
	if result.Interrupted {
		c.writeln(c.colors.Warn.Sprintf("%s run interrupted before the schedule ended", WarningIcon(c.noColor)))
	}
	c.writeln("")

	if result.Snapshot != nil && len(result.Snapshot.Metrics) > 0 {
		c.writeln(c.colors.Title.Sprint("Metrics:"))
		names := make([]string, 0, len(result.Snapshot.Metrics))
		for name := range result.Snapshot.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.writeln(fmt.Sprintf("  %s %s", c.colors.Label.Sprint(dotted(name)), c.formatSummary(result.Snapshot.Metrics[name])))
		}
		c.writeln("")
	}

	if len(result.Checks) > 0 {
		c.writeln(c.colors.Title.Sprint("Checks:"))
		for _, check := range result.Checks {
			icon := SuccessIcon(c.noColor)
			if check.Fails > 0 {
				icon = ErrorIcon(c.noColor)
			}
			total := check.Passes + check.Fails
			c.writeln(fmt.Sprintf("  %s %s %s", icon, check.Name,
				c.colors.Dim.Sprintf("(%d/%d passed)", check.Passes, total)))
		}
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colors.Title.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			icon := SuccessIcon(c.noColor)
			if !t.Passed {
				icon = ErrorIcon(c.noColor)
			}
			line := fmt.Sprintf("  %s %s %s (observed: %s)", icon, t.Metric, t.Expression,
				formatObserved(result.Snapshot.Get(t.Metric), t.Observed))
			if t.Message != "" {
				line += " " + c.colors.Dim.Sprint(t.Message)
			}
			c.writeln(line)
		}
		c.writeln("")
	}
}

// PrintError prints a run error, such as a failed setup.
func (c *Console) PrintError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLive()
	c.writeln(fmt.Sprintf("%s %s", ErrorIcon(c.noColor), c.colors.Error.Sprint(err.Error())))
}

func (c *Console) verdict(result *runner.Result) string {
	if result.Passed {
		return c.colors.Success.Sprint("PASSED " + SuccessIcon(true))
	}
	return c.colors.Error.Sprint("FAILED " + ErrorIcon(true))
}

func (c *Console) formatSummary(s *metrics.Summary) string {
	switch s.Type {
	case metrics.TypeCounter:
		return fmt.Sprintf("%s %s",
			c.colors.Value.Sprint(formatNumber(int64(s.Sum))),
			c.colors.Dim.Sprintf("%.2f/s", s.Rate))
	case metrics.TypeRate:
		return fmt.Sprintf("%s %s",
			c.colors.Value.Sprintf("%.2f%%", s.Rate*100),
			c.colors.Dim.Sprintf("%s %d %s %d", SuccessIcon(true), s.Passes, ErrorIcon(true), s.Fails))
	case metrics.TypeTrend:
		if s.Count == 0 {
			return c.colors.Dim.Sprint("no samples")
		}
		return c.colors.Latency.Sprintf("avg=%s min=%s med=%s max=%s p(90)=%s p(95)=%s p(99)=%s",
			formatMillis(s.Avg), formatMillis(s.Min), formatMillis(s.Med), formatMillis(s.Max),
			formatMillis(s.P90), formatMillis(s.P95), formatMillis(s.P99))
	default:
		return ""
	}
}

func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatObserved renders a threshold's observed value in the metric's unit.
func formatObserved(s *metrics.Summary, v float64) string {
	if s == nil {
		return "n/a"
	}
	switch s.Type {
	case metrics.TypeTrend:
		return formatMillis(v)
	case metrics.TypeRate:
		return fmt.Sprintf("%.2f%%", v*100)
	default:
		return fmt.Sprintf("%g", v)
	}
}

func dotted(name string) string {
	if len(name) >= labelWidth {
		return name + ":"
	}
	return name + strings.Repeat(".", labelWidth-len(name)) + ":"
}

func renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// formatMillis formats a latency given in milliseconds.
func formatMillis(ms float64) string {
	switch {
	case ms <= 0:
		return "0ms"
	case ms < 1:
		return fmt.Sprintf("%.0fµs", ms*1000)
	case ms < 1000:
		return fmt.Sprintf("%.2fms", ms)
	default:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 || len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// visibleLen is the printed width of s, ignoring ANSI sequences.
func visibleLen(s string) int {
	return len([]rune(stripANSI(s)))
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}
	return result.String()
}
