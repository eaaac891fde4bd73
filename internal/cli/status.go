package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status for the selected network",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfgPath, networkName, isDebug)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	status, err := a.controller.SyncStatus(ctx)
	if err != nil {
		a.log.Error("failed to compute sync status", "error", err)
		os.Exit(1)
	}

	latest := "-"
	if status.LatestIndexed != nil {
		latest = fmt.Sprintf("%d", *status.LatestIndexed)
	}
	synced := "behind"
	if status.Synced {
		synced = "synced"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	fmt.Fprintln(w, "NETWORK\tLATEST INDEXED\tCHAIN HEAD\tBEHIND\tPROGRESS\tSTATE")
	fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f%%\t%s\n",
		a.network.Name, latest, status.ChainHead, status.BlocksBehind, status.SyncPercentage, synced)
	w.Flush()

	if a.retryQueue != nil {
		if count, err := a.retryQueue.Count(ctx); err == nil && count > 0 {
			fmt.Printf("\n%d block(s) queued for retry (run: openscan retry-failed)\n", count)
		}
	}
}
