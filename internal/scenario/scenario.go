// Package scenario implements the authenticated read-heavy travel flow: a
// one-time setup that logs in and creates a test group, the per-VU iteration
// that reads the profile, the group list and the group detail, and an
// optional teardown that deletes the group.
package scenario

import (
	"context"
	"errors"

	http "github.com/tripplanner/tripload/internal/http"
	"github.com/tripplanner/tripload/internal/metrics"
)

// ErrSetup wraps every failure of the one-time setup.
var ErrSetup = errors.New("setup failed")

// Metrics recorded by the travel scenario on top of the built-in HTTP metrics.
const (
	MetricErrorRate          = "error_rate"
	MetricTTFBProfile        = "ttfb_get_profile"
	MetricTTFBGroups         = "ttfb_get_groups"
	MetricTTFBGroupDetails   = "ttfb_get_group_details"
	stepProfile              = "GET /profile"
	stepGroups               = "GET /groups"
	stepGroupDetails         = "GET /groups/{id}"
	checkProfileStatus       = "GET /profile status 200"
	checkGroupsStatus        = "GET /groups status 200"
	checkGroupDetailsStatus  = "GET /groups/{id} status 200"
	checkGroupDetailsIDMatch = "GET /groups/{id} id matches"
)

// Definitions returns the scenario's custom metrics.
func Definitions() []metrics.Definition {
	return []metrics.Definition{
		{Name: MetricErrorRate, Type: metrics.TypeRate},
		{Name: MetricTTFBProfile, Type: metrics.TypeTrend},
		{Name: MetricTTFBGroups, Type: metrics.TypeTrend},
		{Name: MetricTTFBGroupDetails, Type: metrics.TypeTrend},
	}
}

// AllDefinitions returns the built-in metrics followed by the scenario's own.
func AllDefinitions() []metrics.Definition {
	return append(metrics.BuiltinDefinitions(), Definitions()...)
}

// Fixture is the data produced by setup and shared read-only by every VU.
type Fixture struct {
	AuthToken   string `json:"-"`
	TestGroupID string `json:"testGroupId"`
}

// Doer executes a request against the system under test.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}
