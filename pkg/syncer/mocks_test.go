package syncer

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainsafe/solver-middleware/pkg/config"
	"github.com/chainsafe/solver-middleware/pkg/ethereum"
	"github.com/chainsafe/solver-middleware/pkg/orderfill"
	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
)

type mockChainClient struct {
	chain config.ChainConfig

	latestBlockFunc       func(ctx context.Context) (uint64, error)
	blockTimeFunc         func(ctx context.Context, blockNumber uint64) (time.Time, error)
	fetchLogsFunc         func(ctx context.Context, fromBlock, head uint64) ([]types.Log, error)
	settlementDetailsFunc func(ctx context.Context, orderID common.Hash, blockNumber *big.Int) (*ethereum.SettlementDetails, error)
}

func (m *mockChainClient) Chain() config.ChainConfig {
	return m.chain
}

func (m *mockChainClient) LatestBlock(ctx context.Context) (uint64, error) {
	return m.latestBlockFunc(ctx)
}

func (m *mockChainClient) BlockTime(ctx context.Context, blockNumber uint64) (time.Time, error) {
	return m.blockTimeFunc(ctx, blockNumber)
}

func (m *mockChainClient) FetchSettlementLogs(ctx context.Context, fromBlock, head uint64) ([]types.Log, error) {
	return m.fetchLogsFunc(ctx, fromBlock, head)
}

func (m *mockChainClient) SettlementDetails(ctx context.Context, orderID common.Hash, blockNumber *big.Int) (*ethereum.SettlementDetails, error) {
	return m.settlementDetailsFunc(ctx, orderID, blockNumber)
}

type mockOrderSource struct {
	fetchOrdersFunc func(ctx context.Context) ([]orderfill.Order, error)
}

func (m *mockOrderSource) FetchOrders(ctx context.Context) ([]orderfill.Order, error) {
	return m.fetchOrdersFunc(ctx)
}

// mockSyncStore records writes; chains sync concurrently, so access is
// serialized.
type mockSyncStore struct {
	completedFunc func(ctx context.Context, chainID int64) ([]string, error)

	mu          sync.Mutex
	settlements []dao.SettlementDao
	syncStates  []dao.ChainSyncStateDao

	upsertSettlementErr error
	upsertSyncStateErr  error
}

func (m *mockSyncStore) CompletedOrderIDs(ctx context.Context, chainID int64) ([]string, error) {
	if m.completedFunc != nil {
		return m.completedFunc(ctx, chainID)
	}
	return nil, nil
}

func (m *mockSyncStore) UpsertSettlement(_ context.Context, settlement *dao.SettlementDao) error {
	if m.upsertSettlementErr != nil {
		return m.upsertSettlementErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements = append(m.settlements, *settlement)
	return nil
}

func (m *mockSyncStore) UpsertChainSyncState(_ context.Context, state *dao.ChainSyncStateDao) error {
	if m.upsertSyncStateErr != nil {
		return m.upsertSyncStateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncStates = append(m.syncStates, *state)
	return nil
}

func (m *mockSyncStore) recordedSettlements() []dao.SettlementDao {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dao.SettlementDao(nil), m.settlements...)
}

func (m *mockSyncStore) recordedSyncStates() []dao.ChainSyncStateDao {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dao.ChainSyncStateDao(nil), m.syncStates...)
}

func settledLog(orderID string, blockNumber uint64) types.Log {
	return types.Log{
		Topics:      []common.Hash{ethereum.OrderSettledTopic, common.HexToHash(orderID)},
		BlockNumber: blockNumber,
	}
}

func settledEvent(orderID string, blockNumber uint64) *types.Log {
	evt := settledLog(orderID, blockNumber)
	return &evt
}
