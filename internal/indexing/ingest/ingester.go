// Package ingest turns raw block payloads into committed storage rows. One
// block maps to one storage unit of work: either the whole block's rows commit
// or none do, and re-ingesting a present block is a no-op success.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/indexing/metrics"
	"github.com/AugustoL/openscan/internal/infra/rpc"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

// RetryQueue receives block numbers whose ingestion unit rolled back. A nil
// queue disables retry tracking.
type RetryQueue interface {
	Push(ctx context.Context, number uint64) error
}

// Result summarizes what one block's ingestion wrote.
type Result struct {
	BlockNumber     uint64
	BlockInserted   bool
	MissingBodies   bool
	TxIndexed       int
	ReceiptsIndexed int
	LogsIndexed     int
	ReceiptFailures int
}

// Ingester writes normalized chain data through the record store.
type Ingester struct {
	source  rpc.Source
	store   storage.Store
	retry   RetryQueue
	network domain.Network
	log     *slog.Logger
}

// New creates an ingester for one chain.
func New(source rpc.Source, store storage.Store, network domain.Network, log *slog.Logger) *Ingester {
	if log == nil {
		log = slog.Default()
	}
	return &Ingester{
		source:  source,
		store:   store,
		network: network,
		log:     log.With("chain", network.Name),
	}
}

// WithRetryQueue attaches an optional failed-block queue.
func (in *Ingester) WithRetryQueue(q RetryQueue) *Ingester {
	in.retry = q
	return in
}

// IngestBlock writes one block and its transactions, receipts, and logs into
// the given unit of work. The caller owns commit and rollback.
//
// Receipts are fetched per transaction; a failed fetch skips that
// transaction's receipt and logs without aborting the block. Logs are written
// only when the receipt row was freshly inserted, so a re-run never duplicates
// them.
func (in *Ingester) IngestBlock(ctx context.Context, uow storage.UnitOfWork, raw map[string]any) (*Result, error) {
	block, err := parseBlock(raw, in.network.ChainID)
	if err != nil {
		return nil, fmt.Errorf("parse block: %w", err)
	}
	res := &Result{BlockNumber: block.Number}

	res.BlockInserted, err = uow.InsertBlock(ctx, block)
	if err != nil {
		return res, fmt.Errorf("insert block %d: %w", block.Number, err)
	}
	if !res.BlockInserted {
		in.log.Debug("block already indexed, skipping", "number", block.Number)
	}

	rawTxs, _ := raw["transactions"].([]any)
	if len(rawTxs) == 0 {
		return res, nil
	}
	if _, ok := rawTxs[0].(map[string]any); !ok {
		// Hash-only payload: keep the header, skip transaction indexing.
		in.log.Warn("block fetched without transaction bodies, transactions not indexed",
			"number", block.Number, "tx_count", len(rawTxs))
		res.MissingBodies = true
		return res, nil
	}

	for i, rawTx := range rawTxs {
		txMap, ok := rawTx.(map[string]any)
		if !ok {
			return res, fmt.Errorf("block %d: transaction %d is not an object", block.Number, i)
		}
		tx, err := parseTransaction(txMap, in.network.ChainID)
		if err != nil {
			return res, fmt.Errorf("block %d: parse transaction %d: %w", block.Number, i, err)
		}
		if _, err := uow.InsertTransaction(ctx, tx); err != nil {
			return res, fmt.Errorf("insert transaction %s: %w", tx.Hash, err)
		}
		res.TxIndexed++

		if err := in.ingestReceipt(ctx, uow, tx.Hash, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ingestReceipt fetches, parses, and stores one transaction's receipt and its
// logs. Fetch failures are tolerated; storage failures abort the block.
func (in *Ingester) ingestReceipt(ctx context.Context, uow storage.UnitOfWork, txHash string, res *Result) error {
	rawReceipt, err := in.source.GetReceipt(ctx, txHash)
	if err != nil {
		metrics.ReceiptFetchErrors.WithLabelValues(in.network.Name).Inc()
		in.log.Warn("receipt fetch failed, skipping", "tx", txHash, "error", err)
		res.ReceiptFailures++
		return nil
	}

	receipt, err := parseReceipt(rawReceipt)
	if err != nil {
		return fmt.Errorf("parse receipt %s: %w", txHash, err)
	}
	inserted, err := uow.InsertReceipt(ctx, receipt)
	if err != nil {
		return fmt.Errorf("insert receipt %s: %w", txHash, err)
	}
	if !inserted {
		// Receipt already present; its logs were written alongside it.
		return nil
	}
	res.ReceiptsIndexed++

	rawLogs, _ := rawReceipt["logs"].([]any)
	if len(rawLogs) == 0 {
		return nil
	}
	logs, err := parseLogs(rawLogs)
	if err != nil {
		return fmt.Errorf("parse logs for %s: %w", txHash, err)
	}
	if err := uow.InsertLogs(ctx, logs); err != nil {
		return fmt.Errorf("insert logs for %s: %w", txHash, err)
	}
	res.LogsIndexed += len(logs)
	return nil
}

// IngestBlocks ingests a batch, one unit of work per block. A failed block is
// rolled back and the batch continues; the committed count is returned.
// NetworkStats is refreshed exactly once after the batch.
func (in *Ingester) IngestBlocks(ctx context.Context, raws []map[string]any) (int, error) {
	committed := 0
	for _, raw := range raws {
		res, err := in.ingestOne(ctx, raw)
		if err != nil {
			metrics.BlockIngestErrors.WithLabelValues(in.network.Name).Inc()
			number, _ := blockNumberHint(raw)
			in.log.Error("block ingestion failed, continuing batch",
				"number", number, "error", err)
			in.pushRetry(ctx, raw)
			continue
		}
		committed++
		metrics.BlocksIndexed.WithLabelValues(in.network.Name).Inc()
		metrics.TransactionsIndexed.WithLabelValues(in.network.Name).Add(float64(res.TxIndexed))
		metrics.LogsIndexed.WithLabelValues(in.network.Name).Add(float64(res.LogsIndexed))
		in.log.Info("indexed block",
			"number", res.BlockNumber,
			"txs", res.TxIndexed,
			"receipts", res.ReceiptsIndexed,
			"logs", res.LogsIndexed)
	}

	if err := in.RefreshStats(ctx); err != nil {
		in.log.Warn("network stats refresh failed", "error", err)
	}
	return committed, nil
}

func (in *Ingester) ingestOne(ctx context.Context, raw map[string]any) (*Result, error) {
	uow, err := in.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}
	res, err := in.IngestBlock(ctx, uow, raw)
	if err != nil {
		uow.Rollback()
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		uow.Rollback()
		return nil, fmt.Errorf("commit block %d: %w", res.BlockNumber, err)
	}
	return res, nil
}

func (in *Ingester) pushRetry(ctx context.Context, raw map[string]any) {
	if in.retry == nil {
		return
	}
	number, ok := blockNumberHint(raw)
	if !ok {
		return
	}
	if err := in.retry.Push(ctx, number); err != nil {
		in.log.Warn("failed to queue block for retry", "number", number, "error", err)
	}
}

// IngestLatest fetches and ingests the most recent count blocks.
func (in *Ingester) IngestLatest(ctx context.Context, count uint64) (int, error) {
	in.log.Info("fetching latest blocks", "count", count)
	raws, err := in.source.FetchLatestBlocks(ctx, count)
	if err != nil {
		return 0, fmt.Errorf("fetch latest blocks: %w", err)
	}
	return in.IngestBlocks(ctx, raws)
}

// RefreshStats queries the node and upserts the chain's NetworkStats row.
func (in *Ingester) RefreshStats(ctx context.Context) error {
	head, err := in.source.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block number: %w", err)
	}
	gasPrice, err := in.source.GasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}
	syncing, err := in.source.IsSyncing(ctx)
	if err != nil {
		return fmt.Errorf("syncing state: %w", err)
	}

	metrics.ChainHead.WithLabelValues(in.network.Name).Set(float64(head))

	return in.store.Stats().Upsert(ctx, &domain.NetworkStats{
		ChainID:            in.network.ChainID,
		CurrentBlockNumber: head,
		CurrentGasPrice:    gasPrice.String(),
		IsSyncing:          syncing,
		LastUpdated:        time.Now().Unix(),
	})
}

// blockNumberHint best-effort extracts the block number from a raw payload
// for error reporting and retry queueing.
func blockNumberHint(raw map[string]any) (uint64, bool) {
	n, err := fieldUint(raw, "number")
	if err != nil {
		return 0, false
	}
	return n, true
}
