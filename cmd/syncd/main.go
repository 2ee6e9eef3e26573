package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/solver-middleware/pkg/config"
	"github.com/chainsafe/solver-middleware/pkg/ethereum"
	"github.com/chainsafe/solver-middleware/pkg/explorer"
	"github.com/chainsafe/solver-middleware/pkg/gas"
	"github.com/chainsafe/solver-middleware/pkg/orderfill"
	"github.com/chainsafe/solver-middleware/pkg/pgutil"
	"github.com/chainsafe/solver-middleware/pkg/prices"
	"github.com/chainsafe/solver-middleware/pkg/syncdb"
	"github.com/chainsafe/solver-middleware/pkg/syncer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := syncdb.CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	store := syncdb.NewStore(db)

	syncClients := make([]syncer.ChainClient, 0, len(cfg.Chains))
	gasClients := make([]gas.ChainClient, 0, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		client, err := ethereum.Dial(ctx, chain, logger)
		if err != nil {
			return err
		}
		syncClients = append(syncClients, client)
		gasClients = append(gasClients, client)
	}

	orders := orderfill.NewClient(cfg.OrderFill, logger)
	oracle := prices.NewHTTPOracle(cfg.Prices.OracleURL, cfg.Prices.APIKey)
	priceCache := prices.NewCache(store, oracle, cfg.Prices.TTL, cfg.Prices.Tokens, logger)

	engine := syncer.NewEngine(syncClients, orders, store, logger)
	tracker := gas.NewTracker(gasClients, explorer.NewClient(), priceCache, store,
		common.HexToAddress(cfg.Solver.Address), logger)

	go runScheduler(ctx, cfg.Sync.Interval, engine, tracker, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           newRouter(cfg, store, engine, tracker, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// runScheduler runs both pipelines immediately and then on every tick. A
// still-running pipeline simply declines the next tick via its single-flight
// guard.
func runScheduler(ctx context.Context, interval time.Duration, engine *syncer.Engine, tracker *gas.Tracker, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce := func() {
		switch err := engine.Run(ctx); {
		case errors.Is(err, syncer.ErrSyncInProgress):
			logger.Debug("settlement sync still running, skipping tick")
		case err != nil:
			logger.Error("settlement sync run failed", zap.Error(err))
		}
		switch err := tracker.Run(ctx); {
		case errors.Is(err, gas.ErrTrackingInProgress):
			logger.Debug("gas tracking still running, skipping tick")
		case err != nil:
			logger.Error("gas tracking run failed", zap.Error(err))
		}
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
