// Package sync drives the catch-up loop: it compares the local watermark with
// the chain head and feeds missing block ranges through the ingestor, in
// chunks so a long gap stays cancellable.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/indexing/ingest"
	"github.com/AugustoL/openscan/internal/indexing/metrics"
	"github.com/AugustoL/openscan/internal/infra/rpc"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

const (
	// DefaultPollInterval matches Ethereum's block cadence.
	DefaultPollInterval = 12 * time.Second

	chunkSize            = 10
	maxConsecutiveErrors = 5
)

// ErrNeverSynced is returned when polling is attempted before any block has
// been indexed for the chain. Run an initial sync first.
var ErrNeverSynced = errors.New("no blocks indexed yet, run initial sync first")

// ErrTooManyFailures terminates the perpetual loop after
// maxConsecutiveErrors polls in a row have failed.
var ErrTooManyFailures = errors.New("too many consecutive sync failures")

// Mode selects how InitialSync treats previously indexed data.
type Mode string

const (
	// ModeContinue keeps the existing watermark untouched.
	ModeContinue Mode = "continue"
	// ModeReindex re-ingests the latest N blocks regardless of the watermark.
	ModeReindex Mode = "reindex"
)

// ParseMode validates a mode flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeContinue, ModeReindex:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid sync mode %q (want %q or %q)", s, ModeContinue, ModeReindex)
	}
}

// Status is the sync progress snapshot served by the query API and the status
// command.
type Status struct {
	Synced         bool    `json:"synced"`
	LatestIndexed  *uint64 `json:"latest_indexed_block"`
	ChainHead      uint64  `json:"current_blockchain_block"`
	BlocksBehind   uint64  `json:"blocks_behind"`
	SyncPercentage float64 `json:"sync_percentage"`
}

// Controller owns the sync loop state for one chain.
type Controller struct {
	source       rpc.Source
	store        storage.Store
	ingester     *ingest.Ingester
	network      domain.Network
	pollInterval time.Duration
	log          *slog.Logger
}

// New creates a controller polling at DefaultPollInterval.
func New(source rpc.Source, store storage.Store, ingester *ingest.Ingester, network domain.Network, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		source:       source,
		store:        store,
		ingester:     ingester,
		network:      network,
		pollInterval: DefaultPollInterval,
		log:          log.With("chain", network.Name),
	}
}

// WithPollInterval overrides the poll interval. Non-positive values keep the
// default.
func (c *Controller) WithPollInterval(d time.Duration) *Controller {
	if d > 0 {
		c.pollInterval = d
	}
	return c
}

// LatestIndexedBlock returns the local watermark; ok is false when nothing
// has been indexed for the chain.
func (c *Controller) LatestIndexedBlock(ctx context.Context) (uint64, bool, error) {
	return c.store.Blocks().MaxNumber(ctx, c.network.ChainID)
}

// FillGap ingests blocks [from, to]. Gaps wider than one chunk are fetched in
// chunkSize pieces with cancellation checked between chunks, so a long
// backfill stops promptly on shutdown. Returns the number of blocks committed.
func (c *Controller) FillGap(ctx context.Context, from, to uint64) (int, error) {
	if from > to {
		return 0, nil
	}
	gap := to - from + 1
	if gap <= chunkSize {
		return c.fillChunk(ctx, from, to)
	}

	c.log.Info("large gap detected, syncing in chunks", "from", from, "to", to, "gap", gap)
	total := 0
	for start := from; start <= to; start += chunkSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := start + chunkSize - 1
		if end > to {
			end = to
		}
		n, err := c.fillChunk(ctx, start, end)
		total += n
		if err != nil {
			return total, err
		}
		c.log.Info("sync progress", "indexed", total, "gap", gap)
	}
	return total, nil
}

func (c *Controller) fillChunk(ctx context.Context, from, to uint64) (int, error) {
	raws, err := c.source.FetchBlockRange(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("fetch blocks %d-%d: %w", from, to, err)
	}
	return c.ingester.IngestBlocks(ctx, raws)
}

// PollOnce checks the chain head and ingests anything past the watermark.
// Requires a prior initial sync.
func (c *Controller) PollOnce(ctx context.Context) (int, error) {
	latest, ok, err := c.LatestIndexedBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest indexed block: %w", err)
	}
	if !ok {
		return 0, ErrNeverSynced
	}

	head, err := c.source.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain head: %w", err)
	}
	metrics.ChainHead.WithLabelValues(c.network.Name).Set(float64(head))
	metrics.IndexedBlock.WithLabelValues(c.network.Name).Set(float64(latest))

	if head <= latest {
		metrics.BlocksBehind.WithLabelValues(c.network.Name).Set(0)
		c.log.Debug("up to date", "head", head)
		return 0, nil
	}
	metrics.BlocksBehind.WithLabelValues(c.network.Name).Set(float64(head - latest))
	c.log.Info("new blocks detected", "head", head, "latest_indexed", latest, "behind", head-latest)

	return c.FillGap(ctx, latest+1, head)
}

// Run polls at the configured interval until the context is cancelled or
// maxConsecutiveErrors polls fail back to back. A successful poll resets the
// error counter. Returns nil on cancellation.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("starting continuous sync", "poll_interval", c.pollInterval)
	consecutiveErrors := 0

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("sync service stopped")
			return nil
		case <-timer.C:
		}

		_, err := c.PollOnce(ctx)
		switch {
		case errors.Is(err, ErrNeverSynced):
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			c.log.Info("sync service stopped")
			return nil
		case err != nil:
			consecutiveErrors++
			c.log.Error("sync poll failed", "error", err,
				"consecutive_errors", consecutiveErrors, "max", maxConsecutiveErrors)
			if consecutiveErrors >= maxConsecutiveErrors {
				return fmt.Errorf("%w: %d in a row, last: %v", ErrTooManyFailures, consecutiveErrors, err)
			}
		default:
			consecutiveErrors = 0
		}

		timer.Reset(c.pollInterval)
	}
}

// InitialSync establishes the watermark. On a fresh store it ingests the
// latest numBlocks. When data already exists, ModeContinue leaves it alone and
// ModeReindex re-ingests the latest numBlocks (a no-op for rows already
// present, by insert idempotence).
func (c *Controller) InitialSync(ctx context.Context, mode Mode, numBlocks uint64) (int, error) {
	latest, ok, err := c.LatestIndexedBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest indexed block: %w", err)
	}
	if !ok {
		c.log.Info("no existing data, indexing latest blocks", "count", numBlocks)
		return c.ingester.IngestLatest(ctx, numBlocks)
	}
	if mode == ModeReindex {
		c.log.Info("re-indexing latest blocks", "count", numBlocks, "latest_indexed", latest)
		return c.ingester.IngestLatest(ctx, numBlocks)
	}
	c.log.Info("continuing from latest indexed block", "latest_indexed", latest)
	return 0, nil
}

// SyncStatus computes the progress snapshot against the live chain head.
func (c *Controller) SyncStatus(ctx context.Context) (*Status, error) {
	head, err := c.source.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain head: %w", err)
	}

	latest, ok, err := c.LatestIndexedBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest indexed block: %w", err)
	}
	if !ok {
		return &Status{
			Synced:       false,
			ChainHead:    head,
			BlocksBehind: head,
		}, nil
	}

	var behind uint64
	if head > latest {
		behind = head - latest
	}
	var pct float64
	if head > 0 {
		pct = math.Round(float64(latest)/float64(head)*100*100) / 100
	}
	return &Status{
		Synced:         behind == 0,
		LatestIndexed:  &latest,
		ChainHead:      head,
		BlocksBehind:   behind,
		SyncPercentage: pct,
	}, nil
}
