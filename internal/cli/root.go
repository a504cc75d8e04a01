// Package cli implements the tripload command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripplanner/tripload/internal/runner"
)

var version = "0.1.0"

// Exit codes returned by Execute.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitThresholdsFailed = 2
)

// NewRootCmd builds the command tree. Output goes to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:     "tripload",
		Short:   "Load testing harness for the travel planner API",
		Version: version,
		Long: `tripload drives a read-heavy travel planner workload against a backend:
it logs in once, creates a test group, then ramps virtual users that read
the profile, the group list and the group details with think time between
requests. Per-endpoint time to first byte and the check error rate are
evaluated against thresholds to produce a pass/fail verdict.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newInitCmd())
	return root
}

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	code := ExitCode(err)
	if err != nil && code == ExitError {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return code
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, runner.ErrThresholdsFailed):
		return ExitThresholdsFailed
	default:
		return ExitError
	}
}

// Main is the entry point used by cmd/tripload.
func Main() int {
	return Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}
