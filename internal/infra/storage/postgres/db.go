package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/AugustoL/openscan/internal/indexing/metrics"
	"github.com/AugustoL/openscan/internal/infra/storage"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DB wraps the PostgreSQL connection pool.
type DB struct {
	*sqlx.DB
}

// NewDB opens a connection pool and verifies connectivity.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate applies pending goose migrations from dir.
func (db *DB) Migrate(dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db.DB.DB, dir); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

// StartMetricsCollector starts a background goroutine sampling pool usage.
func (db *DB) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				if stats.MaxOpenConnections > 0 {
					usage := float64(stats.OpenConnections) /
						float64(stats.MaxOpenConnections) * 100
					metrics.DBConnectionPoolUsage.Set(usage)
				}
			}
		}
	}()
}

// Store implements storage.Store over PostgreSQL.
type Store struct {
	db       *DB
	blocks   *BlockRepo
	txs      *TxRepo
	receipts *ReceiptRepo
	logs     *LogRepo
	stats    *StatsRepo
}

// NewStore creates the repository set over one connection pool.
func NewStore(db *DB) *Store {
	return &Store{
		db:       db,
		blocks:   NewBlockRepo(db),
		txs:      NewTxRepo(db),
		receipts: NewReceiptRepo(db),
		logs:     NewLogRepo(db),
		stats:    NewStatsRepo(db),
	}
}

func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	return newUnitOfWork(ctx, s.db)
}

func (s *Store) Blocks() storage.BlockRepository            { return s.blocks }
func (s *Store) Transactions() storage.TransactionRepository { return s.txs }
func (s *Store) Receipts() storage.ReceiptRepository        { return s.receipts }
func (s *Store) Logs() storage.LogRepository                { return s.logs }
func (s *Store) Stats() storage.StatsRepository             { return s.stats }

func (s *Store) Close() error { return s.db.Close() }
