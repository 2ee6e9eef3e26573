// Package syncer reconciles order fills from the settlement hub against
// gateway settlement events on each chain and maintains per-chain sync
// watermarks.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/solver-middleware/internal/metrics"
	"github.com/chainsafe/solver-middleware/pkg/config"
	"github.com/chainsafe/solver-middleware/pkg/ethereum"
	"github.com/chainsafe/solver-middleware/pkg/orderfill"
	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
)

// ErrSyncInProgress is returned when a run is requested while another run
// holds the single-flight guard.
var ErrSyncInProgress = errors.New("settlement sync already in progress")

// reconcileBatchSize bounds concurrent settlementDetails reads per chain.
const reconcileBatchSize = 10

// ChainClient is the per-chain RPC surface the engine needs, satisfied by
// ethereum.Client.
type ChainClient interface {
	Chain() config.ChainConfig
	LatestBlock(ctx context.Context) (uint64, error)
	BlockTime(ctx context.Context, blockNumber uint64) (time.Time, error)
	FetchSettlementLogs(ctx context.Context, fromBlock, head uint64) ([]types.Log, error)
	SettlementDetails(ctx context.Context, orderID common.Hash, blockNumber *big.Int) (*ethereum.SettlementDetails, error)
}

// OrderSource yields the full set of orders filled by the solver.
type OrderSource interface {
	FetchOrders(ctx context.Context) ([]orderfill.Order, error)
}

// Store is the persistence surface the engine needs, satisfied by
// syncdb.Store.
type Store interface {
	CompletedOrderIDs(ctx context.Context, chainID int64) ([]string, error)
	UpsertSettlement(ctx context.Context, settlement *dao.SettlementDao) error
	UpsertChainSyncState(ctx context.Context, state *dao.ChainSyncStateDao) error
}

// Engine runs the settlement reconciliation pipeline across all configured
// chains. At most one run executes at a time; chains are synced concurrently
// and one chain's failure does not stop the others.
type Engine struct {
	clients map[int64]ChainClient
	orders  OrderSource
	store   Store
	logger  *zap.Logger

	syncing atomic.Bool
}

func NewEngine(clients []ChainClient, orders OrderSource, store Store, logger *zap.Logger) *Engine {
	byID := make(map[int64]ChainClient, len(clients))
	for _, client := range clients {
		byID[client.Chain().ChainID] = client
	}
	return &Engine{
		clients: byID,
		orders:  orders,
		store:   store,
		logger:  logger,
	}
}

// IsSyncing reports whether a run is currently executing.
func (e *Engine) IsSyncing() bool {
	return e.syncing.Load()
}

// Run executes one settlement sync pass. It returns ErrSyncInProgress when
// another run is active, and otherwise the joined per-chain errors.
func (e *Engine) Run(ctx context.Context) error {
	if !e.syncing.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer e.syncing.Store(false)

	logger := e.logger.With(zap.String("run_id", uuid.NewString()))
	start := time.Now()
	logger.Info("starting settlement sync")

	orders, err := e.orders.FetchOrders(ctx)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("settlement", "failure").Inc()
		return fmt.Errorf("failed to fetch order fills: %w", err)
	}

	byChain := make(map[int64][]orderfill.Order)
	for _, ord := range orders {
		byChain[int64(ord.SourceDomain)] = append(byChain[int64(ord.SourceDomain)], ord)
	}
	for chainID, chainOrders := range byChain {
		if _, ok := e.clients[chainID]; !ok {
			logger.Warn("no chain configured for source domain, orders ignored",
				zap.Int64("chain_id", chainID),
				zap.Int("orders", len(chainOrders)))
		}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for chainID, client := range e.clients {
		wg.Add(1)
		go func(client ChainClient, orders []orderfill.Order) {
			defer wg.Done()
			if err := e.syncChain(ctx, logger, client, orders); err != nil {
				metrics.ChainErrors.WithLabelValues(client.Chain().Name, "settlement").Inc()
				logger.Error("chain sync failed",
					zap.String("chain", client.Chain().Name),
					zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", client.Chain().Name, err))
				mu.Unlock()
			}
		}(client, byChain[chainID])
	}
	wg.Wait()

	elapsed := time.Since(start)
	metrics.SyncDuration.WithLabelValues("settlement").Observe(elapsed.Seconds())

	if len(errs) > 0 {
		metrics.SyncRunsTotal.WithLabelValues("settlement", "failure").Inc()
		return errors.Join(errs...)
	}
	metrics.SyncRunsTotal.WithLabelValues("settlement", "success").Inc()
	logger.Info("settlement sync complete",
		zap.Int("orders", len(orders)),
		zap.Duration("elapsed", elapsed))
	return nil
}

func (e *Engine) syncChain(ctx context.Context, logger *zap.Logger, client ChainClient, orders []orderfill.Order) error {
	chain := client.Chain()
	logger = logger.With(zap.String("chain", chain.Name))

	if len(orders) == 0 {
		logger.Debug("no filled orders for chain")
		return nil
	}

	completed, err := e.store.CompletedOrderIDs(ctx, chain.ChainID)
	if err != nil {
		return fmt.Errorf("failed to load completed settlements: %w", err)
	}
	done := make(map[string]struct{}, len(completed))
	for _, id := range completed {
		done[normalizeOrderID(id)] = struct{}{}
	}

	var pending []string
	for _, ord := range orders {
		id := normalizeOrderID(ord.OrderID)
		if _, ok := done[id]; !ok {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		// nothing new to reconcile, leave the watermark untouched
		logger.Debug("all filled orders already reconciled")
		return nil
	}

	head, err := client.LatestBlock(ctx)
	if err != nil {
		return err
	}

	logs, err := client.FetchSettlementLogs(ctx, chain.DeploymentBlock, head)
	if err != nil {
		return err
	}
	settledEvents := make(map[string]types.Log, len(logs))
	for _, evt := range logs {
		if len(evt.Topics) < 2 {
			continue
		}
		settledEvents[normalizeOrderID(evt.Topics[1].Hex())] = evt
	}

	outcomes := e.reconcileBatch(ctx, client, pending, settledEvents, head, logger)
	tally := tallyOutcomes(outcomes)
	for _, outcome := range outcomes {
		metrics.OrdersProcessed.WithLabelValues(chain.Name, outcome.Result.String()).Inc()
		if outcome.Result == ResultFailed {
			logger.Warn("order reconciliation failed",
				zap.String("order_id", outcome.OrderID),
				zap.Error(outcome.Err))
		}
	}

	// the watermark advances to the head seen by this pass even when some
	// orders failed; failed orders remain pending and are retried next run
	now := time.Now().UTC()
	if err := e.store.UpsertChainSyncState(ctx, &dao.ChainSyncStateDao{
		ChainID:        chain.ChainID,
		ChainName:      chain.Name,
		LastSyncBlock:  int64(head),
		LastSyncTime:   now,
		LastUpdateTime: now,
	}); err != nil {
		return fmt.Errorf("failed to update sync watermark: %w", err)
	}
	metrics.LastSyncBlock.WithLabelValues(chain.Name).Set(float64(head))

	logger.Info("chain sync complete",
		zap.Uint64("head", head),
		zap.Int("settled", tally.Settled),
		zap.Int("skipped", tally.Skipped),
		zap.Int("failed", tally.Failed))
	return nil
}

// reconcileBatch resolves pending orders against the indexed settlement
// events, at most reconcileBatchSize at a time. Orders without a settlement
// event are skipped without a contract call.
func (e *Engine) reconcileBatch(ctx context.Context, client ChainClient, pending []string, settledEvents map[string]types.Log, head uint64, logger *zap.Logger) []Outcome {
	outcomes := make([]Outcome, len(pending))
	sem := make(chan struct{}, reconcileBatchSize)
	var wg sync.WaitGroup

	for i, orderID := range pending {
		var evt *types.Log
		if settled, ok := settledEvents[orderID]; ok {
			evt = &settled
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, orderID string, evt *types.Log) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = e.reconcileOrder(ctx, client, orderID, evt, head, logger)
		}(i, orderID, evt)
	}
	wg.Wait()
	return outcomes
}
