package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusExporter_Defaults(t *testing.T) {
	exp := NewPrometheusExporter(PrometheusExporterConfig{}, BuiltinDefinitions())

	assert.Equal(t, ":9464", exp.config.Addr)
	assert.Equal(t, "/metrics", exp.config.Path)
	assert.Equal(t, "tripload", exp.config.Namespace)
	assert.False(t, exp.IsRunning())
}

func TestPrometheusExporter_ObserveSample(t *testing.T) {
	exp := NewPrometheusExporter(PrometheusExporterConfig{}, BuiltinDefinitions())

	exp.ObserveSample(Sample{Metric: HTTPReqs, Value: 1, Tags: map[string]string{TagName: "GET /groups"}})
	exp.ObserveSample(Sample{Metric: HTTPReqFailed, Value: 0, Tags: map[string]string{TagName: "GET /groups"}})
	exp.ObserveSample(Sample{Metric: HTTPReqDuration, Value: 120, Tags: map[string]string{TagName: "GET /groups"}})
	exp.ObserveSample(Sample{Metric: "ignored", Value: 1})
	exp.ObserveBucket(&TimeBucket{ActiveVUs: 4, IntervalRPS: 12.5, Phase: PhaseSteady})

	families, err := exp.Gather()
	require.NoError(t, err)

	byName := make(map[string]bool)
	for _, f := range families {
		byName[f.GetName()] = true
	}
	for _, name := range []string{
		"tripload_counter_total",
		"tripload_rate_samples_total",
		"tripload_trend_seconds",
		"tripload_active_vus",
		"tripload_interval_rps",
		"tripload_phase",
	} {
		assert.True(t, byName[name], "missing metric family %s", name)
	}

	for _, f := range families {
		if f.GetName() != "tripload_active_vus" {
			continue
		}
		require.Len(t, f.GetMetric(), 1)
		assert.Equal(t, 4.0, f.GetMetric()[0].GetGauge().GetValue())
	}
}

func TestPrometheusExporter_Serve(t *testing.T) {
	exp := NewPrometheusExporter(PrometheusExporterConfig{Addr: "127.0.0.1:0"}, BuiltinDefinitions())
	require.NoError(t, exp.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, exp.Stop(ctx))
	}()

	exp.ObserveSample(Sample{Metric: Iterations, Value: 1})

	resp, err := http.Get(exp.Address())
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tripload_counter_total")
}
