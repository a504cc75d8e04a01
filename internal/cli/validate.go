package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripplanner/tripload/internal/config"
	"github.com/tripplanner/tripload/internal/output"
	"github.com/tripplanner/tripload/internal/runner"
)

func newValidateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file without running it",
		Long: `Check a configuration file against the schema and the semantic rules a
run applies: URL, stages, credentials (file or environment) and threshold
expressions on known metrics. No request is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			config.ApplyEnv(cfg, os.LookupEnv)

			r, err := runner.New(cfg, zap.NewNop())
			if err != nil {
				return err
			}

			effective := r.Config()
			thresholds := 0
			for _, exprs := range effective.Thresholds {
				thresholds += len(exprs)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid: %d stages, up to %d VUs over %s, %d thresholds\n",
				output.SuccessIcon(true), configFile,
				len(effective.Stages), effective.MaxTarget(), effective.TotalDuration(), thresholds)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
