// Package config provides configuration parsing and validation for tripload runs.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RunConfig is the root configuration for a load run.
//
// Example YAML:
//
//	name: "travel read-heavy"
//	settings:
//	  baseUrl: "http://localhost:8080"
//	  thinkTime: 1s
//	credentials:
//	  email: "loadtest@example.com"
//	  password: "secret"
//	stages:
//	  - duration: 30s
//	    target: 25
//	  - duration: 1m
//	    target: 25
//	  - duration: 15s
//	    target: 0
//	thresholds:
//	  error_rate: ["rate==0"]
//	  ttfb_get_profile: ["p(95)<500"]
type RunConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Settings contains HTTP and pacing settings
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Credentials of the test user used by setup
	Credentials Credentials `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	// Fixture describes the travel group created during setup
	Fixture Fixture `json:"fixture,omitempty" yaml:"fixture,omitempty"`

	// Stages is the ramping VU schedule
	Stages []Stage `json:"stages,omitempty" yaml:"stages,omitempty"`

	// Thresholds maps a metric name to its pass/fail expressions
	Thresholds map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Teardown controls cleanup after the last iteration
	Teardown Teardown `json:"teardown,omitempty" yaml:"teardown,omitempty"`

	// Output controls metric flushing and export
	Output Output `json:"output,omitempty" yaml:"output,omitempty"`
}

// Settings contains HTTP and pacing settings.
type Settings struct {
	// BaseURL of the system under test
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// Timeout is the per-request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// ThinkTime is the pause after every request of an iteration
	ThinkTime Duration `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`

	// GracefulStop is how long a retiring VU may finish its iteration
	GracefulStop Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// MaxRPS caps the request rate across all VUs (0 = unlimited)
	MaxRPS float64 `json:"maxRps,omitempty" yaml:"maxRps,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// UserAgent is sent with every request
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

// Credentials of the test user.
type Credentials struct {
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Fixture describes the travel group created by setup.
type Fixture struct {
	// Name of the group; generated when empty
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	StartDate   string `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty" yaml:"endDate,omitempty"`
}

// Stage defines a single stage of the VU ramp.
type Stage struct {
	// Duration of this stage
	Duration Duration `json:"duration" yaml:"duration"`

	// Target VU count reached at the end of the stage
	Target int `json:"target" yaml:"target"`

	// Name is an optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Teardown controls cleanup after the last iteration.
type Teardown struct {
	// DeleteGroup removes the fixture group created by setup
	DeleteGroup bool `json:"deleteGroup,omitempty" yaml:"deleteGroup,omitempty"`
}

// Output controls metric flushing and export.
type Output struct {
	// FlushInterval is how often VU sample buffers are merged
	FlushInterval Duration `json:"flushInterval,omitempty" yaml:"flushInterval,omitempty"`

	// PrometheusAddr enables a /metrics endpoint on this address
	PrometheusAddr string `json:"prometheusAddr,omitempty" yaml:"prometheusAddr,omitempty"`
}

// TotalDuration is the sum of all stage durations.
func (c *RunConfig) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range c.Stages {
		total += s.Duration.Std()
	}
	return total
}

// MaxTarget returns the highest stage target.
func (c *RunConfig) MaxTarget() int {
	highest := 0
	for _, s := range c.Stages {
		if s.Target > highest {
			highest = s.Target
		}
	}
	return highest
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings
// ("30s", "1m30s") or from integer seconds.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// GetDuration returns the duration or a default if zero.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*d = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	dur, err := ParseDurationString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(dur)
	return nil
}
