// Package runner orchestrates a complete load run.
//
// It coordinates:
//   - One-time setup (login and test group creation)
//   - The ramping VU schedule driving the travel scenario
//   - Metrics collection and the optional Prometheus endpoint
//   - Teardown and threshold evaluation
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("run.yaml")
//	r, _ := runner.New(cfg, logger)
//	result, err := r.Run(ctx)
//	if errors.Is(err, runner.ErrThresholdsFailed) { ... }
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripplanner/tripload/internal/config"
	"github.com/tripplanner/tripload/internal/executor"
	http "github.com/tripplanner/tripload/internal/http"
	"github.com/tripplanner/tripload/internal/metrics"
	"github.com/tripplanner/tripload/internal/scenario"
	"github.com/tripplanner/tripload/internal/threshold"
)

// ErrThresholdsFailed is returned alongside the result when at least one
// threshold does not hold.
var ErrThresholdsFailed = errors.New("one or more thresholds failed")

// Result contains the complete run results.
type Result struct {
	Name     string        `json:"name"`
	RunID    string        `json:"runId"`
	BaseURL  string        `json:"baseUrl"`
	Start    time.Time     `json:"startTime"`
	End      time.Time     `json:"endTime"`
	Duration time.Duration `json:"duration"`

	GroupID string `json:"groupId"`

	Stages     []executor.Stage       `json:"stages"`
	Executor   *executor.Stats        `json:"executor"`
	Snapshot   *metrics.Snapshot      `json:"metrics"`
	TimeSeries []*metrics.TimeBucket  `json:"timeSeries,omitempty"`
	Phases     []metrics.PhaseChange  `json:"phases,omitempty"`
	Checks     []metrics.CheckSummary `json:"checks,omitempty"`

	Thresholds []threshold.Result `json:"thresholds,omitempty"`
	Passed     bool               `json:"passed"`

	// Interrupted is set when the run was cancelled before the schedule ended.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Runner runs one configured load test. A Runner is single-use.
type Runner struct {
	cfg        config.RunConfig
	logger     *zap.Logger
	runID      string
	client     *http.Client
	engine     *metrics.Engine
	thresholds []*threshold.Threshold
	exporter   *metrics.PrometheusExporter
	schedule   executor.Schedule

	exec    atomic.Pointer[executor.RampingVUs]
	started atomic.Bool

	mu    sync.RWMutex
	start time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithHTTPClient replaces the client built from the settings.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Runner) {
		r.client = client
	}
}

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// WithObserver registers an additional metrics observer.
func WithObserver(o metrics.Observer) Option {
	return func(r *Runner) {
		r.engine.AddObserver(o)
	}
}

// New validates cfg, fills defaults and prepares a run. cfg is copied.
func New(cfg *config.RunConfig, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner: configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := *cfg
	config.ApplyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	thresholds, err := threshold.ParseAll(c.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	defs := scenario.AllDefinitions()
	known := make(map[string]bool, len(defs))
	for _, d := range defs {
		known[d.Name] = true
	}
	for _, t := range thresholds {
		if !known[t.Metric] {
			return nil, fmt.Errorf("invalid configuration: threshold on undefined metric %q", t.Metric)
		}
	}

	schedule := make(executor.Schedule, len(c.Stages))
	for i, s := range c.Stages {
		schedule[i] = executor.Stage{Duration: s.Duration.Std(), Target: s.Target, Name: s.Name}
	}

	r := &Runner{
		cfg:        c,
		logger:     logger,
		runID:      uuid.NewString(),
		thresholds: thresholds,
		schedule:   schedule,
		engine: metrics.NewEngine(metrics.EngineConfig{
			FlushInterval: c.Output.FlushInterval.Std(),
		}, defs...),
	}

	if c.Output.PrometheusAddr != "" {
		r.exporter = metrics.NewPrometheusExporter(metrics.PrometheusExporterConfig{
			Addr: c.Output.PrometheusAddr,
		}, defs)
		r.engine.AddObserver(r.exporter)
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		r.client = http.NewClient(
			http.WithBaseURL(c.Settings.BaseURL),
			http.WithTimeout(c.Settings.Timeout.Std()),
			http.WithHeader("User-Agent", c.Settings.UserAgent),
			http.WithRateLimit(c.Settings.MaxRPS),
			http.WithInsecureSkipVerify(c.Settings.InsecureSkipVerify),
			http.WithMaxConnsPerHost(schedule.MaxTarget()),
		)
	}

	r.logger = r.logger.With(zap.String("run_id", r.runID))
	return r, nil
}

// RunID returns the run identifier.
func (r *Runner) RunID() string {
	return r.runID
}

// Config returns the effective configuration, defaults applied.
func (r *Runner) Config() *config.RunConfig {
	return &r.cfg
}

// Schedule returns the VU schedule.
func (r *Runner) Schedule() executor.Schedule {
	return r.schedule
}

// Run performs setup, drives the schedule, tears down and evaluates
// thresholds.
//
// A setup failure aborts before any VU starts and returns an error wrapping
// scenario.ErrSetup with a nil result. When thresholds fail, the result is
// returned together with ErrThresholdsFailed. Cancelling ctx ends the
// schedule early; the partial result is still evaluated.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.started.CompareAndSwap(false, true) {
		return nil, errors.New("runner: already started")
	}

	r.mu.Lock()
	r.start = time.Now()
	r.mu.Unlock()

	r.logger.Info("run starting",
		zap.String("name", r.cfg.Name),
		zap.String("base_url", r.cfg.Settings.BaseURL),
		zap.Int("vus", r.schedule.MaxTarget()),
		zap.Duration("duration", r.schedule.TotalDuration()),
	)

	if r.exporter != nil {
		if err := r.exporter.Start(); err != nil {
			return nil, err
		}
		r.logger.Info("prometheus metrics available", zap.String("address", r.exporter.Address()))
		defer r.stopExporter()
	}

	r.engine.SetPhase(metrics.PhaseSetup)
	fixture, err := scenario.Setup(ctx, r.client, &r.cfg, r.logger)
	if err != nil {
		r.engine.SetPhase(metrics.PhaseDone)
		r.logger.Error("setup failed, aborting run", zap.Error(err))
		return nil, err
	}

	exec, err := executor.NewRampingVUs(executor.Config{
		Stages:       r.schedule,
		GracefulStop: r.cfg.Settings.GracefulStop.Std(),
	}, scenario.NewTravel(r.client, fixture, r.cfg.Settings.ThinkTime.Std(), r.logger), r.engine,
		executor.WithLogger(r.logger.With(zap.String("group_id", fixture.TestGroupID))),
	)
	if err != nil {
		return nil, err
	}
	r.exec.Store(exec)

	r.engine.Start()
	runErr := exec.Run(ctx)
	r.engine.Stop()

	interrupted := runErr != nil
	if interrupted {
		r.logger.Warn("run interrupted", zap.Error(runErr))
	}

	r.engine.SetPhase(metrics.PhaseTeardown)
	r.teardown(ctx, fixture)
	r.engine.SetPhase(metrics.PhaseDone)

	snapshot := r.engine.Snapshot()
	results := threshold.Evaluate(r.thresholds, snapshot)
	end := time.Now()

	result := &Result{
		Name:        r.cfg.Name,
		RunID:       r.runID,
		BaseURL:     r.cfg.Settings.BaseURL,
		Start:       r.start,
		End:         end,
		Duration:    end.Sub(r.start),
		GroupID:     fixture.TestGroupID,
		Stages:      r.schedule,
		Executor:    exec.Stats(),
		Snapshot:    snapshot,
		TimeSeries:  r.engine.GetTimeSeries(),
		Phases:      r.engine.GetPhaseHistory(),
		Checks:      snapshot.Checks,
		Thresholds:  results,
		Passed:      threshold.AllPassed(results),
		Interrupted: interrupted,
	}

	r.logger.Info("run finished",
		zap.Bool("passed", result.Passed),
		zap.Int64("iterations", result.Executor.Iterations),
		zap.Duration("duration", result.Duration),
	)

	if !result.Passed {
		return result, ErrThresholdsFailed
	}
	return result, nil
}

// teardown deletes the test group when configured. Failures are logged only.
func (r *Runner) teardown(ctx context.Context, fixture scenario.Fixture) {
	if !r.cfg.Teardown.DeleteGroup {
		return
	}

	// Settings.Timeout is always positive after ApplyDefaults.
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Settings.Timeout.Std())
	defer cancel()

	if err := scenario.Teardown(tctx, r.client, fixture, r.logger); err != nil {
		r.logger.Warn("teardown failed", zap.String("group_id", fixture.TestGroupID), zap.Error(err))
	}
}

func (r *Runner) stopExporter() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.exporter.Stop(ctx); err != nil {
		r.logger.Warn("stopping prometheus exporter", zap.Error(err))
	}
}

// Progress returns schedule progress (0.0 to 1.0). It is 0 until VUs start.
func (r *Runner) Progress() float64 {
	if exec := r.exec.Load(); exec != nil {
		return exec.Progress()
	}
	return 0
}

// Stats returns live executor statistics, or nil before VUs start.
func (r *Runner) Stats() *executor.Stats {
	if exec := r.exec.Load(); exec != nil {
		return exec.Stats()
	}
	return nil
}

// Snapshot returns the live metrics view.
func (r *Runner) Snapshot() *metrics.Snapshot {
	return r.engine.Snapshot()
}

// Phase returns the current run phase.
func (r *Runner) Phase() metrics.Phase {
	return r.engine.GetPhase()
}

// Elapsed returns the time since Run started.
func (r *Runner) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.start.IsZero() {
		return 0
	}
	return time.Since(r.start)
}
