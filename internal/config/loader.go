package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted for credentials left empty by file and flags.
const (
	EnvEmail    = "TRIPLOAD_EMAIL"
	EnvPassword = "TRIPLOAD_PASSWORD"
)

// Default request settings.
const (
	DefaultBaseURL       = "http://localhost:8080"
	DefaultTimeout       = 30 * time.Second
	DefaultThinkTime     = time.Second
	DefaultFlushInterval = time.Second
)

// LoadConfig loads a run configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The raw document is checked against the embedded JSON Schema before it is decoded.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ValidateDocument(data, path); err != nil {
		return nil, err
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*RunConfig, error) {
	var cfg RunConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	return &cfg, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ParseStages parses stages from the CLI format "30s:25,1m:25,15s:0".
func ParseStages(spec string) ([]Stage, error) {
	var stages []Stage

	for i, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		colonIdx := strings.LastIndex(part, ":")
		if colonIdx == -1 {
			return nil, fmt.Errorf("stage %d: expected 'duration:target' format, got '%s'", i+1, part)
		}

		dur, err := ParseDurationString(part[:colonIdx])
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}

		target, err := strconv.Atoi(strings.TrimSpace(part[colonIdx+1:]))
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid target '%s': %w", i+1, part[colonIdx+1:], err)
		}

		stages = append(stages, Stage{
			Duration: Duration(dur),
			Target:   target,
			Name:     fmt.Sprintf("stage-%d", len(stages)+1),
		})
	}

	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}

	return stages, nil
}

// Default returns the read-heavy travel run: ramp to 25 VUs, hold, ramp down,
// with per-endpoint TTFB objectives and a zero error-rate budget.
func Default() *RunConfig {
	return &RunConfig{
		Name: "travel read-heavy",
		Settings: Settings{
			BaseURL:   DefaultBaseURL,
			Timeout:   Duration(DefaultTimeout),
			ThinkTime: Duration(DefaultThinkTime),
			UserAgent: "tripload",
		},
		Fixture: Fixture{
			Description: "Group generated automatically by tripload for load testing",
			StartDate:   "2025-01-01",
			EndDate:     "2025-01-10",
		},
		Stages: []Stage{
			{Duration: Duration(30 * time.Second), Target: 25, Name: "ramp-up"},
			{Duration: Duration(time.Minute), Target: 25, Name: "steady"},
			{Duration: Duration(15 * time.Second), Target: 0, Name: "ramp-down"},
		},
		Thresholds: map[string][]string{
			"http_req_duration":      {"p(95)<1000"},
			"error_rate":             {"rate==0"},
			"ttfb_get_profile":       {"p(95)<500"},
			"ttfb_get_groups":        {"p(95)<800"},
			"ttfb_get_group_details": {"p(95)<600"},
		},
		Output: Output{
			FlushInterval: Duration(DefaultFlushInterval),
		},
	}
}

// ApplyDefaults fills zero values from Default. Stages and thresholds are only
// defaulted when the configuration leaves them out entirely.
func ApplyDefaults(cfg *RunConfig) {
	def := Default()

	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Settings.BaseURL == "" {
		cfg.Settings.BaseURL = def.Settings.BaseURL
	}
	if cfg.Settings.Timeout == 0 {
		cfg.Settings.Timeout = def.Settings.Timeout
	}
	if cfg.Settings.ThinkTime == 0 {
		cfg.Settings.ThinkTime = def.Settings.ThinkTime
	}
	if cfg.Settings.UserAgent == "" {
		cfg.Settings.UserAgent = def.Settings.UserAgent
	}
	if cfg.Fixture.Description == "" {
		cfg.Fixture.Description = def.Fixture.Description
	}
	if cfg.Fixture.StartDate == "" {
		cfg.Fixture.StartDate = def.Fixture.StartDate
	}
	if cfg.Fixture.EndDate == "" {
		cfg.Fixture.EndDate = def.Fixture.EndDate
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = def.Stages
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.Output.FlushInterval == 0 {
		cfg.Output.FlushInterval = def.Output.FlushInterval
	}
}

// ApplyEnv fills empty credentials from TRIPLOAD_EMAIL and TRIPLOAD_PASSWORD.
func ApplyEnv(cfg *RunConfig, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if cfg.Credentials.Email == "" {
		if v, ok := lookup(EnvEmail); ok {
			cfg.Credentials.Email = v
		}
	}
	if cfg.Credentials.Password == "" {
		if v, ok := lookup(EnvPassword); ok {
			cfg.Credentials.Password = v
		}
	}
}

// Marshal renders the configuration as YAML.
func Marshal(cfg *RunConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}
