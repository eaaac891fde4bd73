package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

const txColumns = `
	hash, block_number, block_hash, transaction_index, from_address,
	to_address, value, input_data, nonce, gas, gas_price, max_fee_per_gas,
	max_priority_fee_per_gas, type, chain_id, v, r, s
`

// TxRepo implements storage.TransactionRepository using PostgreSQL.
type TxRepo struct {
	db *DB
}

// NewTxRepo creates a new PostgreSQL transaction repository.
func NewTxRepo(db *DB) *TxRepo {
	return &TxRepo{db: db}
}

// GetByHash retrieves a transaction by hash.
func (r *TxRepo) GetByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	var t domain.Transaction
	query := `SELECT ` + txColumns + ` FROM transactions WHERE hash = $1`
	err := r.db.GetContext(ctx, &t, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

// ListByBlock retrieves all transactions in one block, ordered by index.
func (r *TxRepo) ListByBlock(ctx context.Context, blockNumber uint64) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE block_number = $1 ORDER BY transaction_index ASC`
	if err := r.db.SelectContext(ctx, &txs, query, blockNumber); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// CountByBlock counts transactions in one block.
func (r *TxRepo) CountByBlock(ctx context.Context, blockNumber uint64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM transactions WHERE block_number = $1`
	if err := r.db.GetContext(ctx, &count, query, blockNumber); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// ListByAddress retrieves transactions involving an address, with direction,
// block-range, pagination and sort filters.
func (r *TxRepo) ListByAddress(ctx context.Context, f storage.AddressTxFilter) ([]*domain.Transaction, error) {
	addr := strings.ToLower(f.Address)

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch f.Direction {
	case "sent":
		conds = append(conds, "LOWER(from_address) = "+arg(addr))
	case "received":
		conds = append(conds, "LOWER(to_address) = "+arg(addr))
	default:
		p := arg(addr)
		conds = append(conds, "(LOWER(from_address) = "+p+" OR LOWER(to_address) = "+p+")")
	}
	if f.FromBlock != nil {
		conds = append(conds, "block_number >= "+arg(*f.FromBlock))
	}
	if f.ToBlock != nil {
		conds = append(conds, "block_number <= "+arg(*f.ToBlock))
	}

	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + txColumns + ` FROM transactions WHERE ` +
		strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY block_number %s, transaction_index %s OFFSET %s LIMIT %s",
			order, order, arg(f.Offset), arg(limit))

	var txs []*domain.Transaction
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions by address: %w", err)
	}
	return txs, nil
}
