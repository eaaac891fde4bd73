// Package cli wires configuration, storage, and the sync pipeline behind the
// openscan commands.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	syncctl "github.com/AugustoL/openscan/internal/indexing/sync"
)

var (
	cfgPath     string
	networkName string
	isDebug     bool

	numBlocks    uint64
	startBlock   uint64
	endBlock     uint64
	syncAfter    bool
	syncOnly     bool
	pollInterval time.Duration
	syncMode     string
)

var rootCmd = &cobra.Command{
	Use:   "openscan",
	Short: "OpenScan blockchain indexer",
	Long:  `OpenScan indexes blocks, transactions, receipts, and event logs from EVM-compatible chains into PostgreSQL.`,
	Run:   runIndex,
}

func Execute() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&networkName, "network", "", "network to index (defaults to config default_network)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")

	rootCmd.Flags().Uint64Var(&numBlocks, "blocks", 0, "number of latest blocks to index (defaults to config sync.blocks_to_index)")
	rootCmd.Flags().Uint64Var(&startBlock, "start-block", 0, "start from specific block number (overrides --blocks)")
	rootCmd.Flags().Uint64Var(&endBlock, "end-block", 0, "end at specific block number (requires --start-block)")
	rootCmd.Flags().BoolVar(&syncAfter, "sync", false, "keep running and sync new blocks after initial indexing")
	rootCmd.Flags().BoolVar(&syncOnly, "sync-only", false, "only run continuous sync (skip initial indexing)")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "interval between checks for new blocks (defaults to config sync.poll_interval)")
	rootCmd.Flags().StringVar(&syncMode, "mode", string(syncctl.ModeContinue), "what to do with existing data: continue or reindex")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runIndex(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	mode, err := syncctl.ParseMode(syncMode)
	if err != nil {
		slog.Error("invalid flag", "error", err)
		os.Exit(1)
	}

	a, err := newApp(ctx, cfgPath, networkName, isDebug)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	if pollInterval > 0 {
		a.controller.WithPollInterval(pollInterval)
	}
	blocks := numBlocks
	if blocks == 0 {
		blocks = a.cfg.Sync.BlocksToIndex
	}

	if !syncOnly {
		if err := runInitialIndexing(ctx, a, cmd, mode, blocks); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			a.log.Error("initial indexing failed", "error", err)
			os.Exit(1)
		}
	}

	if syncOnly || syncAfter {
		if err := a.controller.Run(ctx); err != nil {
			a.log.Error("sync service terminated", "error", err)
			os.Exit(1)
		}
	}
}

// runInitialIndexing picks the range the same way the flags describe it: an
// explicit [start, end] range, start to head, or the latest N blocks.
func runInitialIndexing(ctx context.Context, a *app, cmd *cobra.Command, mode syncctl.Mode, blocks uint64) error {
	switch {
	case cmd.Flags().Changed("start-block") && cmd.Flags().Changed("end-block"):
		a.log.Info("indexing block range", "from", startBlock, "to", endBlock)
		n, err := a.controller.FillGap(ctx, startBlock, endBlock)
		if err != nil {
			return err
		}
		a.log.Info("initial indexing complete", "indexed", n)
	case cmd.Flags().Changed("start-block"):
		head, err := a.source.LatestBlockNumber(ctx)
		if err != nil {
			return err
		}
		a.log.Info("indexing block range", "from", startBlock, "to", head)
		n, err := a.controller.FillGap(ctx, startBlock, head)
		if err != nil {
			return err
		}
		a.log.Info("initial indexing complete", "indexed", n)
	default:
		n, err := a.controller.InitialSync(ctx, mode, blocks)
		if err != nil {
			return err
		}
		a.log.Info("initial indexing complete", "indexed", n)
	}
	return nil
}
