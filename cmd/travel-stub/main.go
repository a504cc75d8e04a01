// Command travel-stub serves an in-memory travel planner backend for trying
// tripload locally:
//
//	travel-stub --addr :8080 --latency 50ms
//	tripload run --base-url http://localhost:8080 --email a@b.c --password x
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tripplanner/tripload/internal/stub"
)

func main() {
	var (
		addr    string
		opts    stub.Options
		verbose bool
	)

	cmd := &cobra.Command{
		Use:          "travel-stub",
		Short:        "Serve an in-memory travel planner backend",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			if verbose {
				var err error
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			defer func() { _ = logger.Sync() }()
			opts.Logger = logger

			server := &http.Server{
				Addr:              addr,
				Handler:           stub.New(opts),
				ReadTimeout:       5 * time.Second,
				WriteTimeout:      5 * time.Second,
				IdleTimeout:       120 * time.Second,
				MaxHeaderBytes:    1 << 20,
				ReadHeaderTimeout: 2 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "travel stub listening on %s\n", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "Listen address")
	f.StringVar(&opts.Email, "email", "", "Only accept this login email (any when empty)")
	f.StringVar(&opts.Password, "password", "", "Password required with --email")
	f.DurationVar(&opts.Latency, "latency", 0, "Upper bound of a random delay added to every read")
	f.BoolVarP(&verbose, "verbose", "v", false, "Log every login and group change")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
