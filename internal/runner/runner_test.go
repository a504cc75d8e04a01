package runner

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripplanner/tripload/internal/config"
	"github.com/tripplanner/tripload/internal/metrics"
	"github.com/tripplanner/tripload/internal/scenario"
)

type travelAPI struct {
	mu     sync.Mutex
	counts map[string]int

	loginStatus  int
	loginDelay   time.Duration
	profileDelay time.Duration
}

func (a *travelAPI) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	key := r.Method + " " + r.URL.Path
	a.mu.Lock()
	a.counts[key]++
	a.mu.Unlock()

	switch key {
	case "POST /auth/login":
		if a.loginDelay > 0 {
			time.Sleep(a.loginDelay)
		}
		w.WriteHeader(a.loginStatus)
		_, _ = w.Write([]byte(`{"token":"tok"}`))
	case "POST /groups":
		w.WriteHeader(nethttp.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"trip-7"}`))
	case "GET /profile":
		if a.profileDelay > 0 {
			time.Sleep(a.profileDelay)
		}
		_, _ = w.Write([]byte(`{"email":"a@b.c"}`))
	case "GET /groups":
		_, _ = w.Write([]byte(`[{"id":"trip-7"}]`))
	case "GET /groups/trip-7":
		_, _ = w.Write([]byte(`{"id":"trip-7"}`))
	case "DELETE /groups/trip-7":
		w.WriteHeader(nethttp.StatusNoContent)
	default:
		w.WriteHeader(nethttp.StatusNotFound)
	}
}

func (a *travelAPI) count(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[key]
}

func startAPI(t *testing.T) (*travelAPI, *config.RunConfig) {
	t.Helper()
	api := &travelAPI{counts: map[string]int{}, loginStatus: nethttp.StatusOK}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	cfg := &config.RunConfig{
		Settings: config.Settings{
			BaseURL:   server.URL,
			Timeout:   config.Duration(5 * time.Second),
			ThinkTime: config.Duration(10 * time.Millisecond),
		},
		Credentials: config.Credentials{Email: "load@example.com", Password: "pw"},
		Stages: []config.Stage{
			{Duration: config.Duration(300 * time.Millisecond), Target: 2},
			{Duration: config.Duration(100 * time.Millisecond), Target: 0},
		},
		Thresholds: map[string][]string{
			scenario.MetricErrorRate: {"rate==0"},
		},
		Output: config.Output{FlushInterval: config.Duration(50 * time.Millisecond)},
	}
	return api, cfg
}

func TestRun_Passes(t *testing.T) {
	api, cfg := startAPI(t)

	r, err := New(cfg, nil, WithRunID("run-1"))
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Passed)
	assert.False(t, result.Interrupted)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, "trip-7", result.GroupID)
	assert.Equal(t, 1, api.count("POST /auth/login"), "setup runs once")
	assert.Equal(t, 1, api.count("POST /groups"), "setup runs once")
	assert.Equal(t, 0, api.count("DELETE /groups/trip-7"), "group is kept by default")

	assert.Greater(t, result.Executor.Iterations, int64(0))
	assert.Greater(t, result.Snapshot.Get(scenario.MetricTTFBProfile).Count, int64(0))
	assert.Equal(t, 0.0, result.Snapshot.Get(scenario.MetricErrorRate).Rate)
	require.Len(t, result.Thresholds, 1)
	assert.True(t, result.Thresholds[0].Passed)

	phases := make([]metrics.Phase, 0, len(result.Phases))
	for _, p := range result.Phases {
		phases = append(phases, p.Phase)
	}
	assert.Contains(t, phases, metrics.PhaseSetup)
	assert.Contains(t, phases, metrics.PhaseTeardown)
	assert.Equal(t, metrics.PhaseDone, phases[len(phases)-1])
	assert.Equal(t, 1.0, r.Progress())
}

func TestRun_ThresholdFailure(t *testing.T) {
	api, cfg := startAPI(t)
	api.profileDelay = 30 * time.Millisecond
	cfg.Thresholds = map[string][]string{
		scenario.MetricTTFBProfile: {"p(95)<5"},
		scenario.MetricErrorRate:   {"rate==0"},
	}

	r, err := New(cfg, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrThresholdsFailed)
	require.NotNil(t, result, "result is returned with the failure")
	assert.False(t, result.Passed)

	byMetric := map[string]bool{}
	for _, tr := range result.Thresholds {
		byMetric[tr.Metric] = tr.Passed
	}
	assert.False(t, byMetric[scenario.MetricTTFBProfile])
	assert.True(t, byMetric[scenario.MetricErrorRate])
}

func TestRun_SetupFailureStartsNoVUs(t *testing.T) {
	api, cfg := startAPI(t)
	api.loginStatus = nethttp.StatusUnauthorized

	r, err := New(cfg, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, scenario.ErrSetup)
	assert.False(t, errors.Is(err, ErrThresholdsFailed))
	assert.Nil(t, result)
	assert.Equal(t, 0, api.count("GET /profile"))
	assert.Equal(t, 0, api.count("POST /groups"))
	assert.Nil(t, r.Stats())
}

func TestRun_DeleteGroup(t *testing.T) {
	api, cfg := startAPI(t)
	cfg.Teardown.DeleteGroup = true

	r, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("DELETE /groups/trip-7"))
}

func TestRun_Interrupted(t *testing.T) {
	api, cfg := startAPI(t)
	cfg.Stages = []config.Stage{{Duration: config.Duration(time.Minute), Target: 2}}
	cfg.Teardown.DeleteGroup = true

	r, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, result.Interrupted)
	assert.Equal(t, 1, api.count("DELETE /groups/trip-7"), "teardown still runs after an interrupt")
}

func TestRun_SingleUse(t *testing.T) {
	_, cfg := startAPI(t)
	cfg.Stages = []config.Stage{{Duration: config.Duration(50 * time.Millisecond), Target: 1}}

	r, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.RunConfig)
		want   string
	}{
		{
			name:   "missing credentials",
			mutate: func(cfg *config.RunConfig) { cfg.Credentials = config.Credentials{} },
			want:   "credentials.email",
		},
		{
			name:   "threshold on unknown metric",
			mutate: func(cfg *config.RunConfig) { cfg.Thresholds = map[string][]string{"ttfb_get_nothing": {"p(95)<1"}} },
			want:   "ttfb_get_nothing",
		},
		{
			name:   "malformed threshold",
			mutate: func(cfg *config.RunConfig) { cfg.Thresholds = map[string][]string{"error_rate": {"rate=0"}} },
			want:   "error_rate",
		},
		{
			name:   "negative target",
			mutate: func(cfg *config.RunConfig) { cfg.Stages[0].Target = -1 },
			want:   "stages[0].target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cfg := startAPI(t)
			tt.mutate(cfg)

			_, err := New(cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNew_AppliesDefaultsToCopy(t *testing.T) {
	_, cfg := startAPI(t)
	cfg.Settings.UserAgent = ""
	cfg.Settings.Timeout = 0

	r, err := New(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "tripload", r.Config().Settings.UserAgent)
	assert.Equal(t, config.DefaultTimeout, r.Config().Settings.Timeout.Std(), "zero timeout is defaulted, never disabled")
	assert.Empty(t, cfg.Settings.UserAgent, "caller's config is not mutated")
	assert.Len(t, r.Schedule(), 2)
	assert.NotEmpty(t, r.RunID())
}

func TestRun_LiveAccessorsDuringRun(t *testing.T) {
	api, cfg := startAPI(t)
	api.loginDelay = 100 * time.Millisecond

	r, err := New(cfg, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			snap := r.Snapshot()
			assert.NotNil(t, snap)
			_ = r.Phase()
			_ = r.Progress()
			_ = r.Stats()
			_ = r.Elapsed()
			time.Sleep(time.Millisecond)
		}
	}()

	result, err := r.Run(context.Background())
	close(done)
	wg.Wait()

	require.NoError(t, err)
	assert.True(t, result.Passed)
}
