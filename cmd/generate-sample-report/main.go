// Command generate-sample-report renders an HTML report and summary from
// synthetic samples, for previewing report changes without a backend.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/tripplanner/tripload/internal/config"
	"github.com/tripplanner/tripload/internal/executor"
	"github.com/tripplanner/tripload/internal/metrics"
	"github.com/tripplanner/tripload/internal/output"
	"github.com/tripplanner/tripload/internal/report"
	"github.com/tripplanner/tripload/internal/runner"
	"github.com/tripplanner/tripload/internal/scenario"
	"github.com/tripplanner/tripload/internal/threshold"
)

// endpoint is a synthetic latency profile for one step of the travel flow.
type endpoint struct {
	name   string
	metric string
	median float64 // ms
	checks []string
}

var endpoints = []endpoint{
	{name: "GET /profile", metric: scenario.MetricTTFBProfile, median: 38, checks: []string{"GET /profile status 200"}},
	{name: "GET /groups", metric: scenario.MetricTTFBGroups, median: 74, checks: []string{"GET /groups status 200"}},
	{name: "GET /groups/{id}", metric: scenario.MetricTTFBGroupDetails, median: 55, checks: []string{"GET /groups/{id} status 200", "GET /groups/{id} id matches"}},
}

func main() {
	outputPath := "sample-report.html"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	result, err := createSampleResult()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := report.GenerateHTML(result, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) > 2 {
		if err := output.WriteSummary(result, os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Sample report generated: %s\n", outputPath)
}

func createSampleResult() (*runner.Result, error) {
	cfg := config.Default()
	schedule := make(executor.Schedule, len(cfg.Stages))
	for i, s := range cfg.Stages {
		schedule[i] = executor.Stage{Duration: s.Duration.Std(), Target: s.Target, Name: s.Name}
	}

	engine := metrics.NewEngine(metrics.DefaultEngineConfig(), scenario.AllDefinitions()...)
	buf := engine.NewBuffer()

	rng := rand.New(rand.NewPCG(7, 42))
	iterations := int64(0)
	for second := 0; second < int(schedule.TotalDuration().Seconds()); second++ {
		vus := schedule.TargetAt(time.Duration(second) * time.Second)
		for vu := 0; vu < vus; vu += 4 {
			iterations++
			for _, ep := range endpoints {
				recordStep(buf, rng, ep)
			}
			buf.AddValue(metrics.Iterations, 1, nil)
			buf.AddValue(metrics.IterationDuration, 3000+rng.Float64()*400, nil)
		}
	}
	engine.Collect()
	snapshot := engine.Snapshot()

	thresholds, err := threshold.ParseAll(cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	results := threshold.Evaluate(thresholds, snapshot)

	end := time.Now()
	start := end.Add(-schedule.TotalDuration())
	return &runner.Result{
		Name:     cfg.Name + " (sample)",
		RunID:    "sample",
		BaseURL:  cfg.Settings.BaseURL,
		Start:    start,
		End:      end,
		Duration: schedule.TotalDuration(),
		GroupID:  "sample-group",
		Stages:   schedule,
		Executor: &executor.Stats{
			StartTime:     start,
			Elapsed:       schedule.TotalDuration(),
			TotalDuration: schedule.TotalDuration(),
			MaxVUs:        schedule.MaxTarget(),
			Iterations:    iterations,
			TotalStages:   len(schedule),
			Phase:         metrics.PhaseDone,
		},
		Snapshot:   snapshot,
		TimeSeries: sampleTimeSeries(schedule, start, rng),
		Checks:     snapshot.Checks,
		Thresholds: results,
		Passed:     threshold.AllPassed(results),
	}, nil
}

// recordStep emits the samples one request of the travel flow produces.
func recordStep(buf *metrics.Buffer, rng *rand.Rand, ep endpoint) {
	tags := map[string]string{metrics.TagName: ep.name, metrics.TagStatus: "200"}
	ttfb := ep.median * (0.5 + rng.ExpFloat64()*0.6)

	buf.AddValue(metrics.HTTPReqs, 1, tags)
	buf.AddValue(metrics.HTTPReqDuration, ttfb+rng.Float64()*4, tags)
	buf.AddValue(metrics.HTTPReqWaiting, ttfb, tags)
	buf.AddValue(ep.metric, ttfb, tags)
	buf.AddValue(metrics.HTTPReqFailed, 0, tags)

	for _, check := range ep.checks {
		ok := rng.Float64() > 0.002
		buf.AddValue(metrics.Checks, metrics.Bool(ok), map[string]string{metrics.TagName: ep.name, metrics.TagCheck: check})
		buf.AddValue(scenario.MetricErrorRate, metrics.Bool(!ok), tags)
	}
}

func sampleTimeSeries(schedule executor.Schedule, start time.Time, rng *rand.Rand) []*metrics.TimeBucket {
	seconds := int(schedule.TotalDuration().Seconds())
	buckets := make([]*metrics.TimeBucket, 0, seconds)

	var total int64
	for i := 1; i <= seconds; i++ {
		elapsed := time.Duration(i) * time.Second
		vus := schedule.TargetAt(elapsed)
		rps := float64(vus) * 3 / 3.2 * (0.95 + rng.Float64()*0.1)
		total += int64(rps)

		buckets = append(buckets, &metrics.TimeBucket{
			Timestamp:        start.Add(elapsed),
			TotalRequests:    total,
			IntervalRequests: int64(rps),
			IntervalRPS:      rps,
			DurationP95:      120 + rng.Float64()*30,
			ActiveVUs:        vus,
			Phase:            schedule.PhaseAt(elapsed - time.Millisecond),
		})
	}
	return buckets
}
