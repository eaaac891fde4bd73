package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/AugustoL/openscan/internal/core/config"
	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/indexing/ingest"
	syncctl "github.com/AugustoL/openscan/internal/indexing/sync"
	redisclient "github.com/AugustoL/openscan/internal/infra/redis"
	"github.com/AugustoL/openscan/internal/infra/rpc"
	"github.com/AugustoL/openscan/internal/infra/storage"
	"github.com/AugustoL/openscan/internal/infra/storage/memory"
	"github.com/AugustoL/openscan/internal/infra/storage/postgres"
)

// app bundles the wired components behind every command.
type app struct {
	cfg        *config.AppConfig
	network    domain.Network
	source     *rpc.Client
	store      storage.Store
	db         *postgres.DB
	redis      *redisclient.Client
	retryQueue *redisclient.RetryQueue
	ingester   *ingest.Ingester
	controller *syncctl.Controller
	log        *slog.Logger
}

func initLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || cfg.Level == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	}
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// newApp loads config, connects storage and the node, and wires the ingestion
// pipeline for the selected network.
func newApp(ctx context.Context, cfgPath, networkName string, debug bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := initLogger(cfg.Logging, debug)

	if networkName == "" {
		networkName = cfg.DefaultNetwork
	}
	netCfg, ok := cfg.Network(networkName)
	if !ok {
		return nil, fmt.Errorf("network %q not present in config", networkName)
	}
	network := domain.Network{Name: netCfg.Name, ChainID: netCfg.ChainID}
	if known, err := domain.NetworkByName(netCfg.Name); err == nil {
		network.Explorer = known.Explorer
	}
	if netCfg.RPCURL == "" {
		return nil, fmt.Errorf("network %q has no rpc_url", networkName)
	}

	a := &app{
		cfg:     cfg,
		network: network,
		source:  rpc.NewClient(network.ChainID, netCfg.RPCURL),
		log:     log,
	}

	if cfg.Database.URL == "" {
		log.Warn("no database configured, using in-memory storage (data is not persisted)")
		a.store = memory.NewStore()
	} else {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		db.StartMetricsCollector(ctx)
		a.db = db
		a.store = postgres.NewStore(db)
	}

	a.ingester = ingest.New(a.source, a.store, network, log)
	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = rc
		a.retryQueue = redisclient.NewRetryQueue(rc, network.ChainID)
		a.ingester.WithRetryQueue(a.retryQueue)
	}
	a.controller = syncctl.New(a.source, a.store, a.ingester, network, log).
		WithPollInterval(cfg.Sync.PollInterval)

	log.Info("initialized", "network", network.Name, "chain_id", network.ChainID)
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
