package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tripplanner/tripload/internal/metrics"
)

// DefaultTick is how often the controller re-evaluates the target VU count.
const DefaultTick = 100 * time.Millisecond

// Iterator runs one scenario iteration on behalf of a VU. It must return
// promptly once ctx is cancelled.
type Iterator interface {
	RunIteration(ctx context.Context, vu *VU) error
}

// IteratorFunc adapts a function to the Iterator interface.
type IteratorFunc func(ctx context.Context, vu *VU) error

// RunIteration calls f(ctx, vu).
func (f IteratorFunc) RunIteration(ctx context.Context, vu *VU) error {
	return f(ctx, vu)
}

// Config contains configuration for the ramping executor.
type Config struct {
	Stages Schedule

	// GracefulStop is how long a retired VU may keep running its current
	// iteration before it is cancelled. Zero cancels at once.
	GracefulStop time.Duration

	// Tick is the controller interval (default: 100ms).
	Tick time.Duration
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if len(c.Stages) == 0 {
		return &ValidationError{Field: "stages", Message: "at least one stage is required"}
	}
	for i, stage := range c.Stages {
		if stage.Duration < 0 {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].duration", i), Message: "cannot be negative"}
		}
		if stage.Target < 0 {
			return &ValidationError{Field: fmt.Sprintf("stages[%d].target", i), Message: "cannot be negative"}
		}
	}
	if c.GracefulStop < 0 {
		return &ValidationError{Field: "gracefulStop", Message: "cannot be negative"}
	}
	return nil
}

// ValidationError represents an executor configuration error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}

// Stats contains real-time executor statistics.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	ActiveVUs int `json:"activeVUs"`
	TargetVUs int `json:"targetVUs"`
	MaxVUs    int `json:"maxVUs"`

	Iterations            int64 `json:"iterations"`
	InterruptedIterations int64 `json:"interruptedIterations"`

	CurrentStage     int           `json:"currentStage"`
	CurrentStageName string        `json:"currentStageName,omitempty"`
	TotalStages      int           `json:"totalStages"`
	Phase            metrics.Phase `json:"phase"`
}

// RampingVUs ramps VU count up and down according to stages.
//
// Every tick the controller interpolates the target from the schedule,
// spawning VUs to reach it or retiring the most recently spawned ones.
// Retired VUs finish their current iteration within GracefulStop, then are
// cancelled; in-flight requests of cancelled VUs are abandoned.
type RampingVUs struct {
	config   Config
	iterator Iterator
	metrics  *metrics.Engine
	logger   *zap.Logger

	startTime   time.Time
	activeVUs   atomic.Int32
	targetVUs   atomic.Int32
	iterations  atomic.Int64
	interrupted atomic.Int64
	stage       atomic.Int32
	running     atomic.Bool
	nextID      int

	wg    sync.WaitGroup
	vus   []*VU
	vusMu sync.Mutex

	mu sync.RWMutex
}

// Option configures a RampingVUs executor.
type Option func(*RampingVUs)

// WithLogger sets the logger used for VU lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(e *RampingVUs) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewRampingVUs creates a new ramping VUs executor.
func NewRampingVUs(config Config, iterator Iterator, engine *metrics.Engine, opts ...Option) (*RampingVUs, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if iterator == nil {
		return nil, errors.New("executor: iterator is required")
	}
	if engine == nil {
		return nil, errors.New("executor: metrics engine is required")
	}
	if config.Tick <= 0 {
		config.Tick = DefaultTick
	}

	e := &RampingVUs{
		config:   config,
		iterator: iterator,
		metrics:  engine,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes the schedule and blocks until every VU has exited.
//
// Cancelling ctx ends the schedule early and cancels all VUs at once.
func (e *RampingVUs) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("executor: already running")
	}
	defer e.running.Store(false)

	e.mu.Lock()
	e.startTime = time.Now()
	e.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, e.config.Stages.TotalDuration())
	defer cancel()

	e.logger.Info("schedule started",
		zap.Int("stages", len(e.config.Stages)),
		zap.Int("max_vus", e.config.Stages.MaxTarget()),
		zap.Duration("duration", e.config.Stages.TotalDuration()),
	)

	e.controller(ctx, runCtx)
	e.shutdown()

	e.logger.Info("schedule finished",
		zap.Int64("iterations", e.iterations.Load()),
		zap.Int64("interrupted", e.interrupted.Load()),
	)

	return ctx.Err()
}

// controller adjusts VU count until the schedule ends. VU contexts derive
// from parent, not from the schedule timeout, so retired VUs get their grace.
func (e *RampingVUs) controller(parent, runCtx context.Context) {
	ticker := time.NewTicker(e.config.Tick)
	defer ticker.Stop()

	for {
		e.tick(parent)

		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *RampingVUs) tick(ctx context.Context) {
	elapsed := time.Since(e.startTime)
	idx, _ := e.config.Stages.StageAt(elapsed)
	e.stage.Store(int32(idx))

	target := e.config.Stages.TargetAt(elapsed)
	e.targetVUs.Store(int32(target))
	e.adjustVUs(ctx, target)

	if phase := e.config.Stages.PhaseAt(elapsed); phase != metrics.PhaseDone {
		e.metrics.SetPhase(phase)
	}
}

// adjustVUs adjusts the VU count to match the target.
func (e *RampingVUs) adjustVUs(ctx context.Context, target int) {
	e.vusMu.Lock()
	defer e.vusMu.Unlock()

	current := len(e.vus)

	if target > current {
		for i := current; i < target; i++ {
			e.nextID++
			vuCtx, cancel := context.WithCancel(ctx)
			vu := newVU(e.nextID, e.metrics.NewBuffer(), cancel)
			e.vus = append(e.vus, vu)
			e.wg.Add(1)
			go e.runVU(vuCtx, vu)
		}
		e.logger.Debug("vus spawned", zap.Int("from", current), zap.Int("to", target))
	} else if target < current {
		for i := current - 1; i >= target; i-- {
			e.retire(e.vus[i])
			e.vus[i] = nil
		}
		e.vus = e.vus[:target]
		e.logger.Debug("vus retired", zap.Int("from", current), zap.Int("to", target))
	}

	e.metrics.SetActiveVUs(len(e.vus))
}

// retire asks a VU to stop and cancels it once the grace period lapses.
func (e *RampingVUs) retire(vu *VU) {
	vu.RequestStop()

	if e.config.GracefulStop <= 0 {
		vu.Cancel()
		return
	}

	go func() {
		timer := time.NewTimer(e.config.GracefulStop)
		defer timer.Stop()

		select {
		case <-vu.Done():
		case <-timer.C:
			vu.Cancel()
		}
	}()
}

// runVU runs iterations until the VU is stopped or cancelled.
func (e *RampingVUs) runVU(ctx context.Context, vu *VU) {
	defer e.wg.Done()
	defer vu.markStopped()
	defer vu.Cancel()
	defer vu.Buffer.Close()

	e.activeVUs.Add(1)
	defer e.activeVUs.Add(-1)

	for {
		if ctx.Err() != nil || vu.stopRequested() {
			return
		}

		vu.setRunning(true)
		start := time.Now()
		err := e.iterator.RunIteration(ctx, vu)
		vu.setRunning(false)

		if ctx.Err() != nil {
			e.interrupted.Add(1)
			return
		}

		vu.iteration.Add(1)
		e.iterations.Add(1)
		vu.Buffer.AddValue(metrics.Iterations, 1, nil)
		vu.Buffer.AddValue(metrics.IterationDuration, metrics.Millis(time.Since(start)), nil)

		if err != nil {
			e.logger.Debug("iteration failed", zap.Int("vu", vu.ID), zap.Error(err))
		}
	}
}

// shutdown retires every remaining VU and waits for all of them to exit.
func (e *RampingVUs) shutdown() {
	e.vusMu.Lock()
	for i := len(e.vus) - 1; i >= 0; i-- {
		e.retire(e.vus[i])
	}
	e.vus = nil
	e.vusMu.Unlock()

	e.wg.Wait()
	e.targetVUs.Store(0)
	e.metrics.SetActiveVUs(0)
}

// Progress returns schedule progress (0.0 to 1.0).
func (e *RampingVUs) Progress() float64 {
	e.mu.RLock()
	start := e.startTime
	e.mu.RUnlock()

	if start.IsZero() {
		return 0
	}
	total := e.config.Stages.TotalDuration()
	if total == 0 || !e.running.Load() {
		return 1
	}

	progress := float64(time.Since(start)) / float64(total)
	if progress > 1 {
		progress = 1
	}
	return progress
}

// ActiveVUs returns the number of VU goroutines still running, including
// retired VUs finishing their grace period.
func (e *RampingVUs) ActiveVUs() int {
	return int(e.activeVUs.Load())
}

// Stats returns executor statistics.
func (e *RampingVUs) Stats() *Stats {
	e.mu.RLock()
	start := e.startTime
	e.mu.RUnlock()

	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}

	stageIdx := int(e.stage.Load())
	stageName := ""
	if stageIdx < len(e.config.Stages) {
		stageName = e.config.Stages[stageIdx].Name
	}

	return &Stats{
		StartTime:             start,
		Elapsed:               elapsed,
		TotalDuration:         e.config.Stages.TotalDuration(),
		ActiveVUs:             e.ActiveVUs(),
		TargetVUs:             int(e.targetVUs.Load()),
		MaxVUs:                e.config.Stages.MaxTarget(),
		Iterations:            e.iterations.Load(),
		InterruptedIterations: e.interrupted.Load(),
		CurrentStage:          stageIdx,
		CurrentStageName:      stageName,
		TotalStages:           len(e.config.Stages),
		Phase:                 e.metrics.GetPhase(),
	}
}
