package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

// StatsRepo implements storage.StatsRepository using PostgreSQL.
type StatsRepo struct {
	db *DB
}

// NewStatsRepo creates a new PostgreSQL network stats repository.
func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Get retrieves the network snapshot for one chain.
func (r *StatsRepo) Get(ctx context.Context, chainID uint64) (*domain.NetworkStats, error) {
	var s domain.NetworkStats
	query := `
		SELECT chain_id, current_block_number, current_gas_price, is_syncing, last_updated
		FROM network_stats
		WHERE chain_id = $1
	`
	err := r.db.GetContext(ctx, &s, query, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get network stats: %w", err)
	}
	return &s, nil
}

// Upsert writes the snapshot, replacing any previous row for the chain.
func (r *StatsRepo) Upsert(ctx context.Context, s *domain.NetworkStats) error {
	query := `
		INSERT INTO network_stats (chain_id, current_block_number, current_gas_price, is_syncing, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain_id) DO UPDATE SET
			current_block_number = EXCLUDED.current_block_number,
			current_gas_price = EXCLUDED.current_gas_price,
			is_syncing = EXCLUDED.is_syncing,
			last_updated = EXCLUDED.last_updated
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ChainID, s.CurrentBlockNumber, s.CurrentGasPrice, s.IsSyncing, s.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert network stats: %w", err)
	}
	return nil
}
