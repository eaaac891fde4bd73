package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "Re-ingest blocks queued after failed ingestion",
	Run:   runRetryFailed,
}

func init() {
	rootCmd.AddCommand(retryFailedCmd)
}

func runRetryFailed(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfgPath, networkName, isDebug)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	if a.retryQueue == nil {
		a.log.Error("retry queue requires redis to be configured")
		os.Exit(1)
	}

	pending, err := a.retryQueue.Count(ctx)
	if err != nil {
		a.log.Error("failed to read retry queue", "error", err)
		os.Exit(1)
	}
	if pending == 0 {
		a.log.Info("retry queue is empty")
		return
	}
	a.log.Info("retrying failed blocks", "pending", pending)

	recovered := 0
	// Drain at most the starting count; blocks failing again are re-queued by
	// the ingester and picked up on the next run rather than looping here.
	for i := 0; i < pending; i++ {
		if ctx.Err() != nil {
			break
		}
		number, found, err := a.retryQueue.Pop(ctx)
		if err != nil {
			a.log.Error("failed to pop retry queue", "error", err)
			os.Exit(1)
		}
		if !found {
			break
		}

		raw, err := a.source.GetBlock(ctx, number, true)
		if err != nil {
			a.log.Warn("block fetch failed, re-queueing", "number", number, "error", err)
			if err := a.retryQueue.Push(ctx, number); err != nil {
				a.log.Error("failed to re-queue block", "number", number, "error", err)
			}
			continue
		}
		n, err := a.ingester.IngestBlocks(ctx, []map[string]any{raw})
		if err != nil {
			a.log.Error("retry ingestion failed", "number", number, "error", err)
			continue
		}
		recovered += n
	}

	a.log.Info("retry pass complete", "recovered", recovered, "attempted", pending)
}
