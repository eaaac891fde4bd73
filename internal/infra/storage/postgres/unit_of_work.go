package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/AugustoL/openscan/internal/core/domain"
)

// UnitOfWork bundles one block's writes into a single database transaction.
// Every insert uses ON CONFLICT DO NOTHING keyed by the entity's natural chain
// identifier, so replaying an already-ingested block is a no-op.
type UnitOfWork struct {
	tx *sqlx.Tx
}

func newUnitOfWork(ctx context.Context, db *DB) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call after Commit.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

// InsertBlock writes the block unless a row with the same number exists.
func (u *UnitOfWork) InsertBlock(ctx context.Context, b *domain.Block) (bool, error) {
	query := `
		INSERT INTO blocks (
			number, hash, parent_hash, timestamp, miner, difficulty,
			total_difficulty, size, nonce, gas_limit, gas_used,
			base_fee_per_gas, state_root, transactions_root, receipts_root,
			extra_data, logs_bloom, sha3_uncles, mix_hash, chain_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (number) DO NOTHING
	`
	res, err := u.tx.ExecContext(ctx, query,
		b.Number, b.Hash, b.ParentHash, b.Timestamp, b.Miner, b.Difficulty,
		b.TotalDifficulty, b.Size, b.Nonce, b.GasLimit, b.GasUsed,
		b.BaseFeePerGas, b.StateRoot, b.TransactionsRoot, b.ReceiptsRoot,
		b.ExtraData, b.LogsBloom, b.Sha3Uncles, b.MixHash, b.ChainID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert block %d: %w", b.Number, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertTransaction writes the transaction unless its hash exists.
func (u *UnitOfWork) InsertTransaction(ctx context.Context, t *domain.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (
			hash, block_number, block_hash, transaction_index, from_address,
			to_address, value, input_data, nonce, gas, gas_price,
			max_fee_per_gas, max_priority_fee_per_gas, type, chain_id, v, r, s
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (hash) DO NOTHING
	`
	res, err := u.tx.ExecContext(ctx, query,
		t.Hash, t.BlockNumber, t.BlockHash, t.TransactionIndex, t.FromAddress,
		t.ToAddress, t.Value, t.InputData, t.Nonce, t.Gas, t.GasPrice,
		t.MaxFeePerGas, t.MaxPriorityFeePerGas, t.Type, t.ChainID, t.V, t.R, t.S,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction %s: %w", t.Hash, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertReceipt writes the receipt unless one exists for the transaction.
func (u *UnitOfWork) InsertReceipt(ctx context.Context, r *domain.Receipt) (bool, error) {
	query := `
		INSERT INTO transaction_receipts (
			transaction_hash, block_number, block_hash, transaction_index,
			from_address, to_address, contract_address, cumulative_gas_used,
			gas_used, effective_gas_price, status, type, logs_bloom
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (transaction_hash) DO NOTHING
	`
	res, err := u.tx.ExecContext(ctx, query,
		r.TransactionHash, r.BlockNumber, r.BlockHash, r.TransactionIndex,
		r.FromAddress, r.ToAddress, r.ContractAddress, r.CumulativeGasUsed,
		r.GasUsed, r.EffectiveGasPrice, r.Status, r.Type, r.LogsBloom,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert receipt %s: %w", r.TransactionHash, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertLogs appends the receipt's logs. Logs carry a synthetic serial key, so
// the caller gates this on the receipt being freshly inserted.
func (u *UnitOfWork) InsertLogs(ctx context.Context, logs []*domain.Log) error {
	if len(logs) == 0 {
		return nil
	}
	query := `
		INSERT INTO logs (
			transaction_hash, log_index, block_number, block_hash,
			transaction_index, address, data, topic0, topic1, topic2, topic3,
			removed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	stmt, err := u.tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range logs {
		_, err := stmt.ExecContext(ctx,
			l.TransactionHash, l.LogIndex, l.BlockNumber, l.BlockHash,
			l.TransactionIndex, l.Address, l.Data, l.Topic0, l.Topic1,
			l.Topic2, l.Topic3, l.Removed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert log %s/%d: %w", l.TransactionHash, l.LogIndex, err)
		}
	}
	return nil
}
