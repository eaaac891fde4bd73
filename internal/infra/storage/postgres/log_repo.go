package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

const logColumns = `
	id, transaction_hash, log_index, block_number, block_hash,
	transaction_index, address, data, topic0, topic1, topic2, topic3, removed
`

// LogRepo implements storage.LogRepository using PostgreSQL.
type LogRepo struct {
	db *DB
}

// NewLogRepo creates a new PostgreSQL log repository.
func NewLogRepo(db *DB) *LogRepo {
	return &LogRepo{db: db}
}

// List retrieves event logs matching the filter, ordered by block then log
// index.
func (r *LogRepo) List(ctx context.Context, f storage.LogFilter) ([]*domain.Log, error) {
	conds := []string{"TRUE"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Address != nil {
		conds = append(conds, "LOWER(address) = "+arg(strings.ToLower(*f.Address)))
	}
	for col, topic := range map[string]*string{
		"topic0": f.Topic0, "topic1": f.Topic1, "topic2": f.Topic2, "topic3": f.Topic3,
	} {
		if topic != nil {
			conds = append(conds, col+" = "+arg(strings.ToLower(*topic)))
		}
	}
	if f.FromBlock != nil {
		conds = append(conds, "block_number >= "+arg(*f.FromBlock))
	}
	if f.ToBlock != nil {
		conds = append(conds, "block_number <= "+arg(*f.ToBlock))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + logColumns + ` FROM logs WHERE ` +
		strings.Join(conds, " AND ") +
		" ORDER BY block_number ASC, log_index ASC OFFSET " + arg(f.Offset) +
		" LIMIT " + arg(limit)

	var logs []*domain.Log
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return logs, nil
}

// ListByTransaction retrieves all logs emitted by one transaction.
func (r *LogRepo) ListByTransaction(ctx context.Context, txHash string) ([]*domain.Log, error) {
	var logs []*domain.Log
	query := `SELECT ` + logColumns + ` FROM logs
		WHERE transaction_hash = $1 ORDER BY log_index ASC`
	if err := r.db.SelectContext(ctx, &logs, query, txHash); err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return logs, nil
}
