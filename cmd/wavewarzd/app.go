package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/battlestore"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/catalog"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/config"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/db"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/ledger"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/logger"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/metrics"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/pricing"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/runlock"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/runlog"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/stats"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/syncer"
)

// app holds the components shared by the CLI commands.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	db      *db.DB
	battles *battlestore.Store
	runs    *runlog.Store
	engine  *stats.Engine
	metrics *metrics.Metrics
	redis   redis.UniversalClient
	syncer  *syncer.Syncer

	closers []func()
}

// openApp loads the configuration and opens the battle cache. Commands that
// only read the cache need nothing else.
func openApp(home string) (*app, error) {
	cfg, err := config.Resolve(home, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	log := logger.Init(cfg)

	database, err := db.OpenFileDB(filepath.Join(home, "data"), cfg.DatabaseFile, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open battle cache: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		db:      database,
		battles: battlestore.NewStore(database.Client(), log),
		runs:    runlog.NewStore(database.Client(), log),
		metrics: metrics.New(),
	}
	a.closers = append(a.closers, func() { _ = database.Close() })

	var prices pricing.Source = pricing.Static(cfg.SolPriceUSD)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
		prices = pricing.WithFallback(pricing.NewRedisSource(a.redis, ""), prices, log)
	}
	a.engine = stats.NewEngine(a.battles, prices, log)
	return a, nil
}

// connectSources validates the sync configuration, connects to the catalog
// and the ledger RPC and builds the syncer.
func (a *app) connectSources(ctx context.Context) error {
	if err := config.Validate(&a.cfg); err != nil {
		return err
	}

	source, err := catalog.NewPostgresSource(ctx, a.cfg.CatalogDatabaseURL, a.cfg.CatalogTable, a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, source.Close)

	rpcClient, err := ledger.NewRPCClient(ctx, a.cfg.SolanaRPCURLs, a.cfg.RPCRequestTimeout(), a.log)
	if err != nil {
		return err
	}
	reader, err := ledger.NewReader(rpcClient, ledger.ReaderConfig{
		ProgramID:    solana.MustPublicKeyFromBase58(a.cfg.ProgramID),
		MaxBatchSize: a.cfg.LedgerMaxBatchSize,
		MaxParallel:  a.cfg.LedgerMaxParallel,
	}, a.log)
	if err != nil {
		return err
	}

	var lock runlock.Lock = runlock.NewLocal()
	if a.redis != nil {
		shared := runlock.NewRedis(a.redis, runlock.DefaultKey, a.cfg.RunLockTTL(), a.log)
		if err := shared.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach redis for the run lock: %w", err)
		}
		lock = shared
	}

	a.syncer = syncer.New(syncer.Deps{
		Catalog:    source,
		Ledger:     reader,
		Cache:      a.battles,
		Runs:       a.runs,
		Aggregates: a.engine,
		Lock:       lock,
		Metrics:    a.metrics,
	}, syncer.Config{
		DefaultLimit:     a.cfg.DefaultSyncLimit,
		IncrementalLimit: a.cfg.IncrementalSyncLimit,
		MaxLimit:         a.cfg.MaxSyncLimit,
		StepTimeout:      a.cfg.StepTimeout(),
	}, a.log)
	return nil
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
