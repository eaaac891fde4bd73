// Package memory provides an in-memory storage.Store used by tests and
// database-less runs. Unit-of-work writes are staged and only become visible
// on Commit, mirroring the transactional isolation of the PostgreSQL store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

type Store struct {
	mu       sync.RWMutex
	blocks   map[uint64]*domain.Block       // by number
	txs      map[string]*domain.Transaction // by hash
	receipts map[string]*domain.Receipt     // by tx hash
	logs     []*domain.Log
	stats    map[uint64]*domain.NetworkStats // by chain id
	nextLog  uint64
}

func NewStore() *Store {
	return &Store{
		blocks:   make(map[uint64]*domain.Block),
		txs:      make(map[string]*domain.Transaction),
		receipts: make(map[string]*domain.Receipt),
		stats:    make(map[uint64]*domain.NetworkStats),
		nextLog:  1,
	}
}

func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	return &unitOfWork{store: s}, nil
}

func (s *Store) Blocks() storage.BlockRepository             { return (*blockRepo)(s) }
func (s *Store) Transactions() storage.TransactionRepository { return (*txRepo)(s) }
func (s *Store) Receipts() storage.ReceiptRepository         { return (*receiptRepo)(s) }
func (s *Store) Logs() storage.LogRepository                 { return (*logRepo)(s) }
func (s *Store) Stats() storage.StatsRepository              { return (*statsRepo)(s) }

func (s *Store) Close() error { return nil }

// -----------------------------------------------------------------------------
// Unit of work
// -----------------------------------------------------------------------------

type unitOfWork struct {
	store    *Store
	done     bool
	blocks   []*domain.Block
	txs      []*domain.Transaction
	receipts []*domain.Receipt
	logs     []*domain.Log
}

func (u *unitOfWork) InsertBlock(ctx context.Context, b *domain.Block) (bool, error) {
	u.store.mu.RLock()
	_, exists := u.store.blocks[b.Number]
	u.store.mu.RUnlock()
	if exists || u.stagedBlock(b.Number) {
		return false, nil
	}
	cp := *b
	u.blocks = append(u.blocks, &cp)
	return true, nil
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, t *domain.Transaction) (bool, error) {
	u.store.mu.RLock()
	_, exists := u.store.txs[t.Hash]
	u.store.mu.RUnlock()
	if exists || u.stagedTx(t.Hash) {
		return false, nil
	}
	cp := *t
	u.txs = append(u.txs, &cp)
	return true, nil
}

func (u *unitOfWork) InsertReceipt(ctx context.Context, r *domain.Receipt) (bool, error) {
	u.store.mu.RLock()
	_, exists := u.store.receipts[r.TransactionHash]
	u.store.mu.RUnlock()
	if exists || u.stagedReceipt(r.TransactionHash) {
		return false, nil
	}
	cp := *r
	u.receipts = append(u.receipts, &cp)
	return true, nil
}

func (u *unitOfWork) InsertLogs(ctx context.Context, logs []*domain.Log) error {
	for _, l := range logs {
		cp := *l
		u.logs = append(u.logs, &cp)
	}
	return nil
}

func (u *unitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for _, b := range u.blocks {
		u.store.blocks[b.Number] = b
	}
	for _, t := range u.txs {
		u.store.txs[t.Hash] = t
	}
	for _, r := range u.receipts {
		u.store.receipts[r.TransactionHash] = r
	}
	for _, l := range u.logs {
		l.ID = u.store.nextLog
		u.store.nextLog++
		u.store.logs = append(u.store.logs, l)
	}
	return nil
}

func (u *unitOfWork) Rollback() error {
	u.done = true
	u.blocks, u.txs, u.receipts, u.logs = nil, nil, nil, nil
	return nil
}

func (u *unitOfWork) stagedBlock(number uint64) bool {
	for _, b := range u.blocks {
		if b.Number == number {
			return true
		}
	}
	return false
}

func (u *unitOfWork) stagedTx(hash string) bool {
	for _, t := range u.txs {
		if t.Hash == hash {
			return true
		}
	}
	return false
}

func (u *unitOfWork) stagedReceipt(hash string) bool {
	for _, r := range u.receipts {
		if r.TransactionHash == hash {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Read repositories
// -----------------------------------------------------------------------------

type blockRepo Store

func (r *blockRepo) MaxNumber(ctx context.Context, chainID uint64) (uint64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var max uint64
	found := false
	for _, b := range r.blocks {
		if b.ChainID == chainID && (!found || b.Number > max) {
			max = b.Number
			found = true
		}
	}
	return max, found, nil
}

func (r *blockRepo) GetByNumber(ctx context.Context, chainID, number uint64) (*domain.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blocks[number]
	if !ok || b.ChainID != chainID {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *blockRepo) GetByHash(ctx context.Context, chainID uint64, hash string) (*domain.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.blocks {
		if b.ChainID == chainID && b.Hash == hash {
			cp := *b
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *blockRepo) Latest(ctx context.Context, chainID uint64, limit int) ([]*domain.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var blocks []*domain.Block
	for _, b := range r.blocks {
		if b.ChainID == chainID {
			cp := *b
			blocks = append(blocks, &cp)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Number > blocks[j].Number })
	if limit > 0 && len(blocks) > limit {
		blocks = blocks[:limit]
	}
	return blocks, nil
}

type txRepo Store

func (r *txRepo) GetByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.txs[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *txRepo) ListByBlock(ctx context.Context, blockNumber uint64) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var txs []*domain.Transaction
	for _, t := range r.txs {
		if t.BlockNumber == blockNumber {
			cp := *t
			txs = append(txs, &cp)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].TransactionIndex < txs[j].TransactionIndex
	})
	return txs, nil
}

func (r *txRepo) CountByBlock(ctx context.Context, blockNumber uint64) (int, error) {
	txs, err := r.ListByBlock(ctx, blockNumber)
	return len(txs), err
}

func (r *txRepo) ListByAddress(ctx context.Context, f storage.AddressTxFilter) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr := strings.ToLower(f.Address)
	var txs []*domain.Transaction
	for _, t := range r.txs {
		sent := strings.EqualFold(t.FromAddress, addr)
		received := t.ToAddress != nil && strings.EqualFold(*t.ToAddress, addr)
		switch f.Direction {
		case "sent":
			if !sent {
				continue
			}
		case "received":
			if !received {
				continue
			}
		default:
			if !sent && !received {
				continue
			}
		}
		if f.FromBlock != nil && t.BlockNumber < *f.FromBlock {
			continue
		}
		if f.ToBlock != nil && t.BlockNumber > *f.ToBlock {
			continue
		}
		cp := *t
		txs = append(txs, &cp)
	}
	sort.Slice(txs, func(i, j int) bool {
		if f.Ascending {
			return txs[i].BlockNumber < txs[j].BlockNumber
		}
		return txs[i].BlockNumber > txs[j].BlockNumber
	})
	if f.Offset > 0 {
		if f.Offset >= len(txs) {
			return nil, nil
		}
		txs = txs[f.Offset:]
	}
	if f.Limit > 0 && len(txs) > f.Limit {
		txs = txs[:f.Limit]
	}
	return txs, nil
}

type receiptRepo Store

func (r *receiptRepo) GetByTransaction(ctx context.Context, txHash string) (*domain.Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.receipts[txHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

type logRepo Store

func (r *logRepo) List(ctx context.Context, f storage.LogFilter) ([]*domain.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matchTopic := func(want *string, got *string) bool {
		if want == nil {
			return true
		}
		return got != nil && strings.EqualFold(*want, *got)
	}
	var logs []*domain.Log
	for _, l := range r.logs {
		if f.Address != nil && !strings.EqualFold(*f.Address, l.Address) {
			continue
		}
		if !matchTopic(f.Topic0, l.Topic0) || !matchTopic(f.Topic1, l.Topic1) ||
			!matchTopic(f.Topic2, l.Topic2) || !matchTopic(f.Topic3, l.Topic3) {
			continue
		}
		if f.FromBlock != nil && l.BlockNumber < *f.FromBlock {
			continue
		}
		if f.ToBlock != nil && l.BlockNumber > *f.ToBlock {
			continue
		}
		cp := *l
		logs = append(logs, &cp)
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})
	if f.Offset > 0 {
		if f.Offset >= len(logs) {
			return nil, nil
		}
		logs = logs[f.Offset:]
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (r *logRepo) ListByTransaction(ctx context.Context, txHash string) ([]*domain.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var logs []*domain.Log
	for _, l := range r.logs {
		if l.TransactionHash == txHash {
			cp := *l
			logs = append(logs, &cp)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].LogIndex < logs[j].LogIndex })
	return logs, nil
}

type statsRepo Store

func (r *statsRepo) Get(ctx context.Context, chainID uint64) (*domain.NetworkStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[chainID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *statsRepo) Upsert(ctx context.Context, s *domain.NetworkStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.stats[s.ChainID] = &cp
	return nil
}
