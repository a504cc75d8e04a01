package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripplanner/tripload/internal/config"
	"github.com/tripplanner/tripload/internal/output"
	"github.com/tripplanner/tripload/internal/report"
	"github.com/tripplanner/tripload/internal/runner"
)

type runOptions struct {
	configFile   string
	baseURL      string
	email        string
	password     string
	stages       string
	thinkTime    time.Duration
	timeout      time.Duration
	gracefulStop time.Duration
	maxRPS       float64
	deleteGroup  bool
	insecure     bool

	htmlPath       string
	summaryPath    string
	prometheusAddr string
	quiet          bool
	noColor        bool
	logLevel       string
	logFormat      string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the travel load test",
		Long: `Run the read-heavy travel scenario against a backend.

Config file mode:
  tripload run --config run.yaml

Flags only (defaults for everything else):
  tripload run --base-url https://staging.example.com \
    --email loadtest@example.com --password secret \
    --stages "30s:25,1m:25,15s:0"

Credentials may also come from TRIPLOAD_EMAIL and TRIPLOAD_PASSWORD.

Exit codes: 0 when every threshold passes, 1 on configuration, setup or
runtime errors, 2 when a threshold fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	f.StringVar(&opts.baseURL, "base-url", "", "Base URL of the backend under test")
	f.StringVar(&opts.email, "email", "", "Login email of the test user")
	f.StringVar(&opts.password, "password", "", "Login password of the test user")
	f.StringVar(&opts.stages, "stages", "", "Stages in format 'duration:target,duration:target,...'")
	f.DurationVar(&opts.thinkTime, "think-time", 0, "Pause after every request of an iteration (default 1s)")
	f.DurationVarP(&opts.timeout, "timeout", "t", 0, "Per-request timeout (default 30s)")
	f.DurationVar(&opts.gracefulStop, "graceful-stop", 0, "Time a retiring VU may finish its iteration")
	f.Float64Var(&opts.maxRPS, "max-rps", 0, "Global request rate cap (0 = unlimited)")
	f.BoolVar(&opts.deleteGroup, "delete-group", false, "Delete the test group after the run")
	f.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification")

	f.StringVar(&opts.htmlPath, "html", "", "Write an HTML report to this file")
	f.StringVar(&opts.summaryPath, "summary-export", "", "Write the end-of-run summary (.json, .yaml or .xml for JUnit)")
	f.StringVar(&opts.prometheusAddr, "prometheus-addr", "", "Serve live metrics on this address (e.g. :9464)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Disable live progress output, show only the verdict")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "console", "Log format (console, json)")

	return cmd
}

// runLoadTest loads and merges configuration, runs the test and writes the
// requested artifacts. Threshold failures surface as runner.ErrThresholdsFailed.
func runLoadTest(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadRunConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.logLevel, opts.logFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	r, err := runner.New(cfg, logger)
	if err != nil {
		return err
	}
	effective := r.Config()

	console := output.NewConsole(output.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: opts.noColor,
		Quiet:   opts.quiet,
	})
	console.PrintHeader(effective.Name, effective.Settings.BaseURL, r.Schedule())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchCtx, stopWatch := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		console.Watch(watchCtx, r, time.Second)
	}()

	result, runErr := r.Run(ctx)
	stopWatch()
	wg.Wait()

	if result == nil {
		if runErr != nil {
			console.PrintError(runErr)
		}
		return runErr
	}

	console.PrintSummary(result)

	var exportErrs []error
	if opts.summaryPath != "" {
		if err := output.WriteSummary(result, opts.summaryPath); err != nil {
			exportErrs = append(exportErrs, err)
		} else {
			logger.Info("summary written", zap.String("path", opts.summaryPath))
		}
	}
	if opts.htmlPath != "" {
		path := opts.htmlPath
		if !strings.HasSuffix(strings.ToLower(path), ".html") {
			path += ".html"
		}
		if err := report.GenerateHTML(result, path); err != nil {
			exportErrs = append(exportErrs, fmt.Errorf("failed to generate HTML report: %w", err))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", filepath.Clean(path))
		}
	}

	return errors.Join(append([]error{runErr}, exportErrs...)...)
}

// loadRunConfig merges the config file, environment and flags, in that order
// of increasing precedence. Credentials from the environment only fill values
// the file leaves empty.
func loadRunConfig(cmd *cobra.Command, opts *runOptions) (*config.RunConfig, error) {
	var cfg *config.RunConfig
	if opts.configFile != "" {
		loaded, err := config.LoadConfig(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("email") {
		cfg.Credentials.Email = opts.email
	}
	if flags.Changed("password") {
		cfg.Credentials.Password = opts.password
	}
	config.ApplyEnv(cfg, os.LookupEnv)

	if flags.Changed("base-url") {
		cfg.Settings.BaseURL = opts.baseURL
	}
	if flags.Changed("stages") {
		stages, err := config.ParseStages(opts.stages)
		if err != nil {
			return nil, fmt.Errorf("invalid stages format: %w", err)
		}
		cfg.Stages = stages
	}
	// Zero means "use the default" in a config file, so an explicit zero flag
	// would be silently replaced.
	if flags.Changed("think-time") {
		if opts.thinkTime <= 0 {
			return nil, fmt.Errorf("--think-time must be positive, got %s (use e.g. 1ms for minimal pacing)", opts.thinkTime)
		}
		cfg.Settings.ThinkTime = config.Duration(opts.thinkTime)
	}
	if flags.Changed("timeout") {
		if opts.timeout <= 0 {
			return nil, fmt.Errorf("--timeout must be positive, got %s", opts.timeout)
		}
		cfg.Settings.Timeout = config.Duration(opts.timeout)
	}
	if flags.Changed("graceful-stop") {
		cfg.Settings.GracefulStop = config.Duration(opts.gracefulStop)
	}
	if flags.Changed("max-rps") {
		cfg.Settings.MaxRPS = opts.maxRPS
	}
	if flags.Changed("delete-group") {
		cfg.Teardown.DeleteGroup = opts.deleteGroup
	}
	if flags.Changed("insecure") {
		cfg.Settings.InsecureSkipVerify = opts.insecure
	}
	if flags.Changed("prometheus-addr") {
		cfg.Output.PrometheusAddr = opts.prometheusAddr
	}

	return cfg, nil
}
