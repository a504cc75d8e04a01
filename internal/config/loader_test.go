package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `name: smoke
settings:
  baseUrl: https://staging.example.com
  timeout: 10s
  thinkTime: 500ms
  maxRps: 50
credentials:
  email: load@example.com
  password: secret
fixture:
  name: Lisbon weekend
stages:
  - duration: 30s
    target: 10
  - duration: 1m
    target: 10
  - duration: 15
    target: 0
thresholds:
  error_rate: ["rate==0"]
  ttfb_get_profile: ["p(95)<500", "avg<200"]
teardown:
  deleteGroup: true
output:
  flushInterval: 2s
  prometheusAddr: ":9464"
`

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Name != "smoke" {
		t.Errorf("Name = %q, want smoke", cfg.Name)
	}
	if cfg.Settings.Timeout.Std() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Settings.Timeout)
	}
	if cfg.Settings.ThinkTime.Std() != 500*time.Millisecond {
		t.Errorf("ThinkTime = %v, want 500ms", cfg.Settings.ThinkTime)
	}
	if cfg.Settings.MaxRPS != 50 {
		t.Errorf("MaxRPS = %v, want 50", cfg.Settings.MaxRPS)
	}
	if len(cfg.Stages) != 3 {
		t.Fatalf("len(Stages) = %d, want 3", len(cfg.Stages))
	}
	if cfg.Stages[2].Duration.Std() != 15*time.Second {
		t.Errorf("integer stage duration = %v, want 15s", cfg.Stages[2].Duration)
	}
	if got := cfg.Thresholds["ttfb_get_profile"]; len(got) != 2 {
		t.Errorf("ttfb_get_profile thresholds = %v, want 2 expressions", got)
	}
	if !cfg.Teardown.DeleteGroup {
		t.Error("Teardown.DeleteGroup = false, want true")
	}
	if cfg.Output.PrometheusAddr != ":9464" {
		t.Errorf("PrometheusAddr = %q", cfg.Output.PrometheusAddr)
	}
	if cfg.TotalDuration() != 105*time.Second {
		t.Errorf("TotalDuration() = %v, want 1m45s", cfg.TotalDuration())
	}
	if cfg.MaxTarget() != 10 {
		t.Errorf("MaxTarget() = %d, want 10", cfg.MaxTarget())
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	doc := `{
		"settings": {"baseUrl": "http://localhost:3000", "thinkTime": "2s"},
		"credentials": {"email": "a@b.c", "password": "pw"},
		"stages": [{"duration": "10s", "target": 3}],
		"thresholds": {"error_rate": ["rate<0.01"]}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Settings.ThinkTime.Std() != 2*time.Second {
		t.Errorf("ThinkTime = %v, want 2s", cfg.Settings.ThinkTime)
	}
	if len(cfg.Stages) != 1 || cfg.Stages[0].Target != 3 {
		t.Errorf("Stages = %+v", cfg.Stages)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "unknown key", file: "unknown.yaml", content: "vus: 10\n", wantErr: "vus"},
		{name: "wrong type", file: "type.yaml", content: "stages:\n  - duration: 10s\n    target: many\n", wantErr: "stages.0.target"},
		{name: "negative target", file: "negative.yaml", content: "stages:\n  - duration: 10s\n    target: -1\n", wantErr: "stages.0.target"},
		{name: "invalid JSON", file: "broken.json", content: "{not json", wantErr: "failed to parse JSON config"},
		{name: "invalid YAML", file: "broken.yaml", content: "settings: [\n", wantErr: "failed to parse YAML config"},
		{name: "bad duration", file: "duration.yaml", content: "settings:\n  thinkTime: soon\n", wantErr: "invalid duration format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "30s", want: 30 * time.Second},
		{input: "1m30s", want: 90 * time.Second},
		{input: "500ms", want: 500 * time.Millisecond},
		{input: "45", want: 45 * time.Second},
		{input: " 2m ", want: 2 * time.Minute},
		{input: "", want: 0},
		{input: "soon", wantErr: true},
		{input: "10x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDurationString(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseStages(t *testing.T) {
	stages, err := ParseStages("30s:25, 1m:25,15s:0")
	if err != nil {
		t.Fatalf("ParseStages() error = %v", err)
	}
	want := []Stage{
		{Duration: Duration(30 * time.Second), Target: 25, Name: "stage-1"},
		{Duration: Duration(time.Minute), Target: 25, Name: "stage-2"},
		{Duration: Duration(15 * time.Second), Target: 0, Name: "stage-3"},
	}
	if len(stages) != len(want) {
		t.Fatalf("len = %d, want %d", len(stages), len(want))
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d = %+v, want %+v", i, stages[i], want[i])
		}
	}

	for _, bad := range []string{"", "30s", "30s:many", "later:5", ",,"} {
		if _, err := ParseStages(bad); err == nil {
			t.Errorf("ParseStages(%q) expected error", bad)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &RunConfig{
		Settings:   Settings{BaseURL: "https://staging.example.com"},
		Stages:     []Stage{{Duration: Duration(time.Second), Target: 1}},
		Thresholds: map[string][]string{},
	}
	ApplyDefaults(cfg)

	def := Default()
	if cfg.Settings.BaseURL != "https://staging.example.com" {
		t.Errorf("BaseURL overwritten: %q", cfg.Settings.BaseURL)
	}
	if cfg.Settings.Timeout != def.Settings.Timeout {
		t.Errorf("Timeout = %v, want %v", cfg.Settings.Timeout, def.Settings.Timeout)
	}
	if cfg.Settings.ThinkTime.Std() != DefaultThinkTime {
		t.Errorf("ThinkTime = %v, want %v", cfg.Settings.ThinkTime, DefaultThinkTime)
	}
	if len(cfg.Stages) != 1 {
		t.Errorf("explicit stages replaced: %+v", cfg.Stages)
	}
	if len(cfg.Thresholds) != 0 {
		t.Errorf("explicitly empty thresholds replaced: %v", cfg.Thresholds)
	}
	if cfg.Output.FlushInterval.Std() != DefaultFlushInterval {
		t.Errorf("FlushInterval = %v", cfg.Output.FlushInterval)
	}

	empty := &RunConfig{}
	ApplyDefaults(empty)
	if len(empty.Stages) != len(def.Stages) || len(empty.Thresholds) != len(def.Thresholds) {
		t.Errorf("missing stages or thresholds not defaulted: %+v", empty)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvEmail: "env@example.com", EnvPassword: "env-pw"}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := &RunConfig{}
	ApplyEnv(cfg, lookup)
	if cfg.Credentials.Email != "env@example.com" || cfg.Credentials.Password != "env-pw" {
		t.Errorf("credentials not filled from env: %+v", cfg.Credentials)
	}

	cfg = &RunConfig{Credentials: Credentials{Email: "file@example.com"}}
	ApplyEnv(cfg, lookup)
	if cfg.Credentials.Email != "file@example.com" {
		t.Errorf("email from file overwritten: %q", cfg.Credentials.Email)
	}
	if cfg.Credentials.Password != "env-pw" {
		t.Errorf("empty password not filled: %q", cfg.Credentials.Password)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Credentials = Credentials{Email: "a@b.c", Password: "pw"}

	data, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), "duration: 30s") {
		t.Errorf("durations should render as strings:\n%s", data)
	}
	if err := ValidateDocument(data, "run.yaml"); err != nil {
		t.Fatalf("marshaled default does not satisfy the schema: %v", err)
	}

	parsed, err := ParseConfig(data, "run.yaml")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if parsed.TotalDuration() != cfg.TotalDuration() {
		t.Errorf("TotalDuration = %v, want %v", parsed.TotalDuration(), cfg.TotalDuration())
	}
	if err := parsed.Validate(); err != nil {
		t.Errorf("round-tripped config invalid: %v", err)
	}
}
