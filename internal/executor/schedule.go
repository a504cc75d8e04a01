// Package executor drives virtual users through a ramping schedule.
package executor

import (
	"math"
	"time"

	"github.com/tripplanner/tripload/internal/metrics"
)

// Stage defines one leg of the schedule: over Duration, concurrency moves
// linearly from the previous stage's target to Target.
type Stage struct {
	Duration time.Duration `json:"duration" yaml:"duration"`
	Target   int           `json:"target" yaml:"target"`
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
}

// Schedule is an ordered list of stages. Concurrency starts at 0.
//
// Example:
//
//	stages:
//	  - duration: 30s
//	    target: 25     # Ramp from 0 to 25 VUs over 30s
//	  - duration: 1m
//	    target: 25     # Hold 25 VUs for 1 minute
//	  - duration: 15s
//	    target: 0      # Ramp down to 0 VUs over 15s
type Schedule []Stage

// TotalDuration is the sum of all stage durations.
func (s Schedule) TotalDuration() time.Duration {
	var total time.Duration
	for _, stage := range s {
		total += stage.Duration
	}
	return total
}

// MaxTarget is the highest concurrency the schedule reaches.
func (s Schedule) MaxTarget() int {
	highest := 0
	for _, stage := range s {
		if stage.Target > highest {
			highest = stage.Target
		}
	}
	return highest
}

// StageAt returns the index of the stage active at elapsed and the target
// concurrency the stage started from. Zero-duration stages are never active:
// their target applies from the moment they are reached. Past the end, the
// index is len(s).
func (s Schedule) StageAt(elapsed time.Duration) (index int, from int) {
	var stageStart time.Duration
	for i, stage := range s {
		stageEnd := stageStart + stage.Duration
		if elapsed < stageEnd {
			return i, from
		}
		from = stage.Target
		stageStart = stageEnd
	}
	return len(s), from
}

// TargetAt returns the desired concurrency at elapsed time, rounded to the
// nearest whole VU.
func (s Schedule) TargetAt(elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}

	idx, from := s.StageAt(elapsed)
	if idx >= len(s) {
		return from
	}

	var stageStart time.Duration
	for _, stage := range s[:idx] {
		stageStart += stage.Duration
	}

	stage := s[idx]
	progress := float64(elapsed-stageStart) / float64(stage.Duration)
	target := float64(from) + float64(stage.Target-from)*progress
	return int(math.Round(target))
}

// PhaseAt classifies the stage active at elapsed by its direction.
func (s Schedule) PhaseAt(elapsed time.Duration) metrics.Phase {
	idx, from := s.StageAt(elapsed)
	if idx >= len(s) {
		return metrics.PhaseDone
	}

	switch target := s[idx].Target; {
	case target > from:
		return metrics.PhaseRampUp
	case target < from:
		return metrics.PhaseRampDown
	default:
		return metrics.PhaseSteady
	}
}
