package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

// ReceiptRepo implements storage.ReceiptRepository using PostgreSQL.
type ReceiptRepo struct {
	db *DB
}

// NewReceiptRepo creates a new PostgreSQL receipt repository.
func NewReceiptRepo(db *DB) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

// GetByTransaction retrieves the receipt for one transaction.
func (r *ReceiptRepo) GetByTransaction(ctx context.Context, txHash string) (*domain.Receipt, error) {
	var rec domain.Receipt
	query := `
		SELECT transaction_hash, block_number, block_hash, transaction_index,
			from_address, to_address, contract_address, cumulative_gas_used,
			gas_used, effective_gas_price, status, type, logs_bloom
		FROM transaction_receipts
		WHERE transaction_hash = $1
	`
	err := r.db.GetContext(ctx, &rec, query, txHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return &rec, nil
}
