// Command dr-replicator runs the disaster-recovery replication core:
// it loads configuration, wires the external collaborators, and loops
// receive -> process -> repeat until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/muesli/coral"

	"github.com/preservica/dr-replicator/internal/logging"
)

var cfgPath string

var rootCmd = &coral.Command{
	Use:          "dr-replicator",
	Short:        "Disaster-recovery replication core for a preservation archive",
	Long:         "Consumes change notifications, fetches entity metadata and bitstreams, and writes them into a local OCFL mirror.",
	SilenceUsage: true,
}

var runCmd = &coral.Command{
	Use:   "run",
	Short: "Poll the queue and reconcile batches into the OCFL mirror",
	RunE:  runE,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "dr-replicator.yaml", "path to configuration file")
	rootCmd.AddCommand(runCmd)
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runE(cmd *coral.Command, args []string) error {
	level := slog.LevelInfo
	logger := logging.TextLogger(level)

	ctx, cancel := trapSignals(cmd.Context())
	defer cancel()

	runner, err := newRunner(ctx, cfgPath, logger)
	if err != nil {
		return fmt.Errorf("bootstrapping: %w", err)
	}
	defer runner.Close(context.Background())

	return runner.Loop(ctx)
}
