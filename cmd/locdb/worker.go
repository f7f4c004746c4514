package main

import (
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"

	"github.com/locdb/locdb/internal/jobs"
)

func init() {
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long: `Run a Temporal worker for suggestion precalculation and orphan
relinking. Requires temporal.enabled in the configuration.

Example:
  LOCDB_TEMPORAL_ENABLED=true locdb worker`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	a := mustNewApp(contextOrBackground(cmd), true)
	defer a.Close()

	if a.temporal == nil {
		exitWithError(ExitConfigError, "temporal is not enabled; set temporal.enabled or LOCDB_TEMPORAL_ENABLED")
	}

	w := worker.New(a.temporal, a.cfg.Temporal.TaskQueue, worker.Options{})
	jobs.Register(w, a.activities())

	a.log.Info("worker started", "task_queue", a.cfg.Temporal.TaskQueue, "address", a.cfg.Temporal.Address)
	if err := w.Run(worker.InterruptCh()); err != nil {
		exitWithError(ExitError, "worker: %v", err)
	}
	return nil
}
