package executor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tripplanner/tripload/internal/metrics"
)

// VUState represents the lifecycle state of a virtual user.
type VUState int32

const (
	// VUStateIdle indicates the VU is between iterations.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is inside an iteration.
	VUStateRunning
	// VUStateStopping indicates the VU has been asked to stop after its current iteration.
	VUStateStopping
	// VUStateStopped indicates the VU goroutine has exited.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VU is one simulated user. It runs iterations sequentially and owns a
// metrics buffer that nothing else writes to.
type VU struct {
	ID     int
	Buffer *metrics.Buffer

	state     atomic.Int32
	iteration atomic.Int64

	stopCh chan struct{}
	doneCh chan struct{}
	cancel context.CancelFunc
}

// NewVU creates a standalone VU writing to buf, for driving an Iterator
// outside of an executor.
func NewVU(id int, buf *metrics.Buffer) *VU {
	return newVU(id, buf, nil)
}

func newVU(id int, buf *metrics.Buffer, cancel context.CancelFunc) *VU {
	return &VU{
		ID:     id,
		Buffer: buf,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		cancel: cancel,
	}
}

// State returns the current VU state.
func (vu *VU) State() VUState {
	return VUState(vu.state.Load())
}

// Iteration returns the number of completed iterations.
func (vu *VU) Iteration() int64 {
	return vu.iteration.Load()
}

// Stopping is closed once the VU has been asked to stop.
func (vu *VU) Stopping() <-chan struct{} {
	return vu.stopCh
}

// Done is closed once the VU goroutine has exited.
func (vu *VU) Done() <-chan struct{} {
	return vu.doneCh
}

// Sleep pauses for d, returning false if ctx ends first.
func (vu *VU) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RequestStop asks the VU to stop once its current iteration ends.
func (vu *VU) RequestStop() {
	for {
		current := VUState(vu.state.Load())
		if current == VUStateStopping || current == VUStateStopped {
			return
		}
		if vu.state.CompareAndSwap(int32(current), int32(VUStateStopping)) {
			close(vu.stopCh)
			return
		}
	}
}

// Cancel abandons the VU's in-flight work.
func (vu *VU) Cancel() {
	if vu.cancel != nil {
		vu.cancel()
	}
}

func (vu *VU) stopRequested() bool {
	select {
	case <-vu.stopCh:
		return true
	default:
		return false
	}
}

func (vu *VU) setRunning(running bool) {
	next, prev := VUStateIdle, VUStateRunning
	if running {
		next, prev = VUStateRunning, VUStateIdle
	}
	vu.state.CompareAndSwap(int32(prev), int32(next))
}

// markStopped marks the VU as fully stopped. Called once, when its goroutine exits.
func (vu *VU) markStopped() {
	vu.state.Store(int32(VUStateStopped))
	close(vu.doneCh)
}
