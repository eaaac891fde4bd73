package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

const blockColumns = `
	number, hash, parent_hash, timestamp, miner, difficulty, total_difficulty,
	size, nonce, gas_limit, gas_used, base_fee_per_gas, state_root,
	transactions_root, receipts_root, extra_data, logs_bloom, sha3_uncles,
	mix_hash, chain_id
`

// BlockRepo implements storage.BlockRepository using PostgreSQL.
type BlockRepo struct {
	db *DB
}

// NewBlockRepo creates a new PostgreSQL block repository.
func NewBlockRepo(db *DB) *BlockRepo {
	return &BlockRepo{db: db}
}

// MaxNumber returns the local watermark for the chain.
func (r *BlockRepo) MaxNumber(ctx context.Context, chainID uint64) (uint64, bool, error) {
	var number uint64
	query := `SELECT number FROM blocks WHERE chain_id = $1 ORDER BY number DESC LIMIT 1`
	err := r.db.GetContext(ctx, &number, query, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get max block number: %w", err)
	}
	return number, true, nil
}

// GetByNumber retrieves a block by number.
func (r *BlockRepo) GetByNumber(ctx context.Context, chainID, number uint64) (*domain.Block, error) {
	var b domain.Block
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE chain_id = $1 AND number = $2`
	err := r.db.GetContext(ctx, &b, query, chainID, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return &b, nil
}

// GetByHash retrieves a block by hash.
func (r *BlockRepo) GetByHash(ctx context.Context, chainID uint64, hash string) (*domain.Block, error) {
	var b domain.Block
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE chain_id = $1 AND hash = $2`
	err := r.db.GetContext(ctx, &b, query, chainID, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return &b, nil
}

// Latest returns up to limit blocks in descending number order.
func (r *BlockRepo) Latest(ctx context.Context, chainID uint64, limit int) ([]*domain.Block, error) {
	var blocks []*domain.Block
	query := `SELECT ` + blockColumns + ` FROM blocks
		WHERE chain_id = $1 ORDER BY number DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &blocks, query, chainID, limit); err != nil {
		return nil, fmt.Errorf("failed to list latest blocks: %w", err)
	}
	return blocks, nil
}
