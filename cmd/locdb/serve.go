package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/locdb/locdb/internal/api"
)

var serveListen string

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the HTTP API until interrupted.

Saved resources are queued for suggestion precalculation when Temporal
is enabled in the configuration.

Example:
  locdb serve --listen :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := mustNewApp(ctx, true)
	defer a.Close()

	addr := serveListen
	if addr == "" {
		addr = a.cfg.Listen
	}

	srv := api.NewServer(api.Deps{
		Store:    a.store,
		Ranker:   a.ranker,
		Curator:  a.curator,
		Entries:  a.entries,
		Intake:   a.intake,
		Metrics:  a.metrics,
		Logger:   a.log,
		DefaultK: a.cfg.Suggestions.K,
	})
	if err := srv.ListenAndServe(ctx, addr); err != nil && ctx.Err() == nil {
		exitWithError(ExitError, "serving: %v", err)
	}
	return nil
}

// contextOrBackground guards against commands executed without a context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
