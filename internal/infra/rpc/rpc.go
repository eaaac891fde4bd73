// Package rpc provides the JSON-RPC client for EVM-compatible nodes. The node
// is the sole source of truth for chain data: nothing is derived locally, data
// is only re-requested on failure.
package rpc

import (
	"context"
	"math/big"
)

// Source is the chain RPC capability consumed by the ingestion and sync
// layers. Raw block and receipt payloads are surfaced as decoded JSON objects;
// normalization happens at the ingestion boundary.
type Source interface {
	// LatestBlockNumber returns the chain head block number.
	LatestBlockNumber(ctx context.Context) (uint64, error)

	// GetBlock fetches one block. With includeBodies the payload embeds full
	// transaction objects instead of transaction hashes.
	GetBlock(ctx context.Context, number uint64, includeBodies bool) (map[string]any, error)

	// GetReceipt fetches the execution receipt for one transaction.
	GetReceipt(ctx context.Context, txHash string) (map[string]any, error)

	// GasPrice returns the current gas price in wei.
	GasPrice(ctx context.Context) (*big.Int, error)

	// IsSyncing reports whether the node itself is still syncing.
	IsSyncing(ctx context.Context) (bool, error)

	// FetchBlockRange fetches blocks [start, end] with full transaction
	// bodies. Individual fetch failures are logged and skipped.
	FetchBlockRange(ctx context.Context, start, end uint64) ([]map[string]any, error)

	// FetchLatestBlocks fetches the most recent count blocks with bodies.
	FetchLatestBlocks(ctx context.Context, count uint64) ([]map[string]any, error)
}
