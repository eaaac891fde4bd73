// Package storage defines the persistence boundary: idempotent upsert
// operations keyed by natural chain identifiers, a per-block transactional
// unit, and the read paths used by the sync controller and the query API.
package storage

import (
	"context"
	"errors"

	"github.com/AugustoL/openscan/internal/core/domain"
)

// ErrNotFound is returned by read operations when no row matches.
var ErrNotFound = errors.New("storage: not found")

// Store is the full persistence capability. Writes for one block go through a
// UnitOfWork so a crash mid-block leaves at most one partially written block.
type Store interface {
	// Begin opens a transactional unit for one block's writes.
	Begin(ctx context.Context) (UnitOfWork, error)

	Blocks() BlockRepository
	Transactions() TransactionRepository
	Receipts() ReceiptRepository
	Logs() LogRepository
	Stats() StatsRepository

	Close() error
}

// UnitOfWork bundles one block's writes into a single database transaction.
// Insert operations skip rows that already exist and report whether a row was
// written, so re-running ingestion over present keys is a no-op success.
type UnitOfWork interface {
	// InsertBlock writes the block unless a row with the same number exists.
	InsertBlock(ctx context.Context, b *domain.Block) (inserted bool, err error)

	// InsertTransaction writes the transaction unless its hash exists.
	InsertTransaction(ctx context.Context, t *domain.Transaction) (inserted bool, err error)

	// InsertReceipt writes the receipt unless one exists for the transaction.
	// The skipped return gates log insertion: logs are only written together
	// with a fresh receipt.
	InsertReceipt(ctx context.Context, r *domain.Receipt) (inserted bool, err error)

	// InsertLogs appends the receipt's logs.
	InsertLogs(ctx context.Context, logs []*domain.Log) error

	Commit() error

	// Rollback aborts the unit. Safe to call after Commit.
	Rollback() error
}

// BlockRepository is the block read path.
type BlockRepository interface {
	// MaxNumber returns the highest indexed block number for the chain; ok is
	// false when the chain has never been synced.
	MaxNumber(ctx context.Context, chainID uint64) (number uint64, ok bool, err error)

	GetByNumber(ctx context.Context, chainID, number uint64) (*domain.Block, error)
	GetByHash(ctx context.Context, chainID uint64, hash string) (*domain.Block, error)

	// Latest returns up to limit blocks in descending number order.
	Latest(ctx context.Context, chainID uint64, limit int) ([]*domain.Block, error)
}

// AddressTxFilter narrows TransactionRepository.ListByAddress.
type AddressTxFilter struct {
	Address   string
	Direction string // "sent", "received", or "" for both
	FromBlock *uint64
	ToBlock   *uint64
	Ascending bool
	Offset    int
	Limit     int
}

// TransactionRepository is the transaction read path.
type TransactionRepository interface {
	GetByHash(ctx context.Context, hash string) (*domain.Transaction, error)
	ListByBlock(ctx context.Context, blockNumber uint64) ([]*domain.Transaction, error)
	CountByBlock(ctx context.Context, blockNumber uint64) (int, error)
	ListByAddress(ctx context.Context, f AddressTxFilter) ([]*domain.Transaction, error)
}

// ReceiptRepository is the receipt read path.
type ReceiptRepository interface {
	GetByTransaction(ctx context.Context, txHash string) (*domain.Receipt, error)
}

// LogFilter narrows LogRepository.List, mirroring eth_getLogs semantics over
// indexed data.
type LogFilter struct {
	Address   *string
	Topic0    *string
	Topic1    *string
	Topic2    *string
	Topic3    *string
	FromBlock *uint64
	ToBlock   *uint64
	Offset    int
	Limit     int
}

// LogRepository is the event log read path.
type LogRepository interface {
	List(ctx context.Context, f LogFilter) ([]*domain.Log, error)
	ListByTransaction(ctx context.Context, txHash string) ([]*domain.Log, error)
}

// StatsRepository reads and upserts the per-chain network snapshot.
type StatsRepository interface {
	Get(ctx context.Context, chainID uint64) (*domain.NetworkStats, error)
	Upsert(ctx context.Context, s *domain.NetworkStats) error
}
