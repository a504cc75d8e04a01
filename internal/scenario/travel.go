package scenario

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tripplanner/tripload/internal/executor"
	http "github.com/tripplanner/tripload/internal/http"
	"github.com/tripplanner/tripload/internal/metrics"
)

// check is a named assertion on a response. A nil response means the
// request never completed.
type check struct {
	name string
	fn   func(resp *http.Response) bool
}

func statusIs(name string, code int) check {
	return check{name: name, fn: func(resp *http.Response) bool {
		return resp != nil && resp.StatusCode == code
	}}
}

type step struct {
	name   string
	path   string
	metric string
	checks []check
}

// Travel is the per-VU iteration of the read-heavy travel flow. It holds only
// read-only state and is shared by every VU.
type Travel struct {
	client    Doer
	fixture   Fixture
	thinkTime time.Duration
	logger    *zap.Logger
	steps     []step
}

// NewTravel creates the iteration for fixture, pausing thinkTime after every request.
func NewTravel(client Doer, fixture Fixture, thinkTime time.Duration, logger *zap.Logger) *Travel {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Travel{
		client:    client,
		fixture:   fixture,
		thinkTime: thinkTime,
		logger:    logger,
	}
	t.steps = []step{
		{
			name:   stepProfile,
			path:   "/profile",
			metric: MetricTTFBProfile,
			checks: []check{statusIs(checkProfileStatus, 200)},
		},
		{
			name:   stepGroups,
			path:   "/groups",
			metric: MetricTTFBGroups,
			checks: []check{statusIs(checkGroupsStatus, 200)},
		},
		{
			name:   stepGroupDetails,
			path:   groupPath(fixture.TestGroupID),
			metric: MetricTTFBGroupDetails,
			checks: []check{
				statusIs(checkGroupDetailsStatus, 200),
				{name: checkGroupDetailsIDMatch, fn: t.idMatches},
			},
		},
	}
	return t
}

func (t *Travel) idMatches(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	id := resp.JSONField("id")
	return id.Exists() && id.String() == t.fixture.TestGroupID
}

// RunIteration performs profile, group list and group detail reads in order,
// with a think-time pause after each. Failed checks and transport errors are
// recorded and never abort the iteration; only cancellation does.
func (t *Travel) RunIteration(ctx context.Context, vu *executor.VU) error {
	var errs []error

	for _, s := range t.steps {
		if err := t.runStep(ctx, vu.Buffer, s); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}

		if !vu.Sleep(ctx, t.thinkTime) {
			return ctx.Err()
		}
	}

	return errors.Join(errs...)
}

// runStep issues one request and records its samples. The returned error is
// the transport error, if any.
func (t *Travel) runStep(ctx context.Context, buf *metrics.Buffer, s step) error {
	req := http.NewRequest("GET", s.path).WithBearer(t.fixture.AuthToken)
	resp, err := t.client.Do(ctx, req)
	if err != nil && ctx.Err() != nil {
		// Abandoned by cancellation: nothing was observed.
		return err
	}

	tags := map[string]string{metrics.TagName: s.name}
	if resp != nil {
		tags[metrics.TagStatus] = strconv.Itoa(resp.StatusCode)
	}

	buf.AddValue(metrics.HTTPReqs, 1, tags)
	if resp != nil {
		buf.AddValue(metrics.HTTPReqDuration, metrics.Millis(resp.Timing.Duration), tags)
		buf.AddValue(metrics.HTTPReqWaiting, metrics.Millis(resp.Timing.Waiting), tags)
		buf.AddValue(s.metric, metrics.Millis(resp.Timing.Waiting), tags)
		buf.AddValue(metrics.HTTPReqFailed, metrics.Bool(resp.StatusCode < 200 || resp.StatusCode >= 400), tags)
	} else {
		buf.AddValue(metrics.HTTPReqFailed, 1, tags)
	}

	for _, c := range s.checks {
		ok := c.fn(resp)
		buf.AddValue(metrics.Checks, metrics.Bool(ok), map[string]string{
			metrics.TagName:  s.name,
			metrics.TagCheck: c.name,
		})
		buf.AddValue(MetricErrorRate, metrics.Bool(!ok), tags)
	}

	if err != nil {
		t.logger.Debug("request failed", zap.String("step", s.name), zap.Error(err))
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}
