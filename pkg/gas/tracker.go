// Package gas tracks the solver's native-token balance and cumulative
// deposits on every configured chain.
package gas

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/solver-middleware/internal/metrics"
	"github.com/chainsafe/solver-middleware/pkg/config"
	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
)

// ErrTrackingInProgress is returned when a run is requested while another
// run holds the single-flight guard.
var ErrTrackingInProgress = errors.New("gas tracking already in progress")

// ChainClient is the per-chain RPC surface the tracker needs, satisfied by
// ethereum.Client.
type ChainClient interface {
	Chain() config.ChainConfig
	LatestBlock(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
}

// Explorer sums native deposits to an address over a block range.
type Explorer interface {
	IncomingValue(ctx context.Context, apiURL, apiKey, address string, startBlock, endBlock uint64) (*big.Int, error)
}

// PriceSource provides USD prices per native-token group.
type PriceSource interface {
	EnsureFresh(ctx context.Context) error
	Price(group string) (float64, error)
}

// Store is the persistence surface the tracker needs, satisfied by
// syncdb.Store.
type Store interface {
	GetGasSnapshot(ctx context.Context, chainID int64) (*dao.GasSnapshotDao, error)
	UpsertGasSnapshot(ctx context.Context, snapshot *dao.GasSnapshotDao) error
}

// Tracker refreshes per-chain gas snapshots. Deposit totals accumulate
// incrementally: each run scans only the blocks past the previous snapshot's
// checkpoint.
type Tracker struct {
	clients  []ChainClient
	explorer Explorer
	prices   PriceSource
	store    Store
	solver   common.Address
	logger   *zap.Logger

	syncing atomic.Bool
}

func NewTracker(clients []ChainClient, explorer Explorer, prices PriceSource, store Store, solver common.Address, logger *zap.Logger) *Tracker {
	return &Tracker{
		clients:  clients,
		explorer: explorer,
		prices:   prices,
		store:    store,
		solver:   solver,
		logger:   logger,
	}
}

// IsSyncing reports whether a run is currently executing.
func (t *Tracker) IsSyncing() bool {
	return t.syncing.Load()
}

// Run executes one gas tracking pass across all chains. It returns
// ErrTrackingInProgress when another run is active, and otherwise the joined
// per-chain errors.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.syncing.CompareAndSwap(false, true) {
		return ErrTrackingInProgress
	}
	defer t.syncing.Store(false)

	logger := t.logger.With(zap.String("run_id", uuid.NewString()))
	start := time.Now()
	logger.Info("starting gas tracking")

	// stale cached prices still serve if the refresh fails
	if err := t.prices.EnsureFresh(ctx); err != nil {
		logger.Warn("price refresh failed, using cached prices", zap.Error(err))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, client := range t.clients {
		wg.Add(1)
		go func(client ChainClient) {
			defer wg.Done()
			if err := t.trackChain(ctx, logger, client); err != nil {
				metrics.ChainErrors.WithLabelValues(client.Chain().Name, "gas").Inc()
				logger.Error("gas tracking failed",
					zap.String("chain", client.Chain().Name),
					zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", client.Chain().Name, err))
				mu.Unlock()
			}
		}(client)
	}
	wg.Wait()

	elapsed := time.Since(start)
	metrics.SyncDuration.WithLabelValues("gas").Observe(elapsed.Seconds())

	if len(errs) > 0 {
		metrics.SyncRunsTotal.WithLabelValues("gas", "failure").Inc()
		return errors.Join(errs...)
	}
	metrics.SyncRunsTotal.WithLabelValues("gas", "success").Inc()
	logger.Info("gas tracking complete", zap.Duration("elapsed", elapsed))
	return nil
}

func (t *Tracker) trackChain(ctx context.Context, logger *zap.Logger, client ChainClient) error {
	chain := client.Chain()
	logger = logger.With(zap.String("chain", chain.Name))

	head, err := client.LatestBlock(ctx)
	if err != nil {
		return err
	}

	balance, err := client.Balance(ctx, t.solver)
	if err != nil {
		return err
	}

	prev, err := t.store.GetGasSnapshot(ctx, chain.ChainID)
	if err != nil {
		return err
	}

	prevTotal := new(big.Int)
	var startBlock uint64
	var prevCheckpoint int64
	if prev != nil {
		total, ok := new(big.Int).SetString(prev.TotalDeposited, 10)
		if !ok {
			return fmt.Errorf("corrupt deposit total %q in snapshot", prev.TotalDeposited)
		}
		prevTotal = total
		startBlock = uint64(prev.LastSyncBlock) + 1
		prevCheckpoint = prev.LastSyncBlock
	} else {
		startBlock = chain.DeploymentBlock
		if chain.DeploymentBlock > 0 {
			prevCheckpoint = int64(chain.DeploymentBlock) - 1
		}
	}

	total := prevTotal
	checkpoint := int64(head)
	incoming, err := t.explorer.IncomingValue(ctx, chain.ExplorerURL, chain.ExplorerAPIKey, t.solver.Hex(), startBlock, head)
	if err != nil {
		// keep the old checkpoint so the missed range is scanned next run
		logger.Warn("deposit scan failed, carrying forward previous total",
			zap.Uint64("start_block", startBlock),
			zap.Uint64("head", head),
			zap.Error(err))
		checkpoint = prevCheckpoint
	} else {
		total = new(big.Int).Add(prevTotal, incoming)
	}

	price, err := t.prices.Price(chain.PriceGroup)
	if err != nil {
		return fmt.Errorf("no usable price for %s: %w", chain.PriceGroup, err)
	}
	rate := decimal.NewFromFloat(price)
	balanceUSD := decimal.NewFromBigInt(balance, -18).Mul(rate)
	totalUSD := decimal.NewFromBigInt(total, -18).Mul(rate)

	now := time.Now().UTC()
	snapshot := &dao.GasSnapshotDao{
		ChainID:           chain.ChainID,
		ChainName:         chain.Name,
		SolverAddress:     t.solver.Hex(),
		CurrentBalance:    balance.String(),
		CurrentBalanceUSD: balanceUSD.StringFixed(8),
		TotalDeposited:    total.String(),
		TotalDepositedUSD: totalUSD.StringFixed(8),
		LastSyncBlock:     checkpoint,
		LastSyncTime:      now,
		LastUpdateTime:    now,
	}
	if err := t.store.UpsertGasSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist gas snapshot: %w", err)
	}

	usd, _ := balanceUSD.Float64()
	metrics.GasBalanceUSD.WithLabelValues(chain.Name).Set(usd)

	logger.Debug("gas snapshot updated",
		zap.String("balance", balance.String()),
		zap.String("total_deposited", total.String()),
		zap.Int64("checkpoint", checkpoint))
	return nil
}
