package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripplanner/tripload/internal/config"
)

func newInitCmd() *cobra.Command {
	var outputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Print the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Credentials = config.Credentials{Email: "loadtest@example.com", Password: "change-me"}

			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}

			if outputPath == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			if _, err := os.Stat(outputPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outputPath)
			}
			if err := os.WriteFile(outputPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the configuration to this file instead of stdout")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
