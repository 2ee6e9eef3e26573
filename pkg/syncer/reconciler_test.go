package syncer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/solver-middleware/pkg/ethereum"
)

func newReconcileEngine(client ChainClient, store Store) *Engine {
	return NewEngine([]ChainClient{client}, nil, store, zap.NewNop())
}

func TestReconcileOrderPinsHeadBlock(t *testing.T) {
	var pinned *big.Int
	client := happyChainClient(arbitrumConfig(), 5000, nil, nil)
	client.settlementDetailsFunc = func(_ context.Context, orderID common.Hash, blockNumber *big.Int) (*ethereum.SettlementDetails, error) {
		assert.Equal(t, common.HexToHash(orderA), orderID)
		pinned = blockNumber
		return &ethereum.SettlementDetails{Nonce: big.NewInt(1), Amount: big.NewInt(3000)}, nil
	}

	store := &mockSyncStore{}
	engine := newReconcileEngine(client, store)

	outcome := engine.reconcileOrder(context.Background(), client, orderA, settledEvent(orderA, 1200), 5000, zap.NewNop())
	assert.Equal(t, ResultSettled, outcome.Result)
	require.NotNil(t, pinned)
	assert.Equal(t, uint64(5000), pinned.Uint64())

	settlements := store.recordedSettlements()
	require.Len(t, settlements, 1)
	assert.Equal(t, "3000", settlements[0].Amount)
	assert.Equal(t, "3", settlements[0].Profit)
}

func TestReconcileOrderNegativeAmountUsesAbsoluteValue(t *testing.T) {
	client := happyChainClient(arbitrumConfig(), 5000, nil, big.NewInt(-7_000_000))
	store := &mockSyncStore{}
	engine := newReconcileEngine(client, store)

	outcome := engine.reconcileOrder(context.Background(), client, orderA, settledEvent(orderA, 1200), 5000, zap.NewNop())
	assert.Equal(t, ResultSettled, outcome.Result)

	settlements := store.recordedSettlements()
	require.Len(t, settlements, 1)
	assert.Equal(t, "7000000", settlements[0].Amount)
	assert.Equal(t, "7000", settlements[0].Profit)
}

func TestReconcileOrderZeroAmountSkipped(t *testing.T) {
	client := happyChainClient(arbitrumConfig(), 5000, nil, big.NewInt(0))
	store := &mockSyncStore{}
	engine := newReconcileEngine(client, store)

	outcome := engine.reconcileOrder(context.Background(), client, orderA, settledEvent(orderA, 1200), 5000, zap.NewNop())
	assert.Equal(t, ResultSkipped, outcome.Result)
	assert.Empty(t, store.recordedSettlements())
}

func TestReconcileOrderRetriesBatchSizeTooLargeAtLatest(t *testing.T) {
	var blocks []*big.Int
	client := happyChainClient(arbitrumConfig(), 5000, nil, nil)
	client.settlementDetailsFunc = func(_ context.Context, _ common.Hash, blockNumber *big.Int) (*ethereum.SettlementDetails, error) {
		blocks = append(blocks, blockNumber)
		if len(blocks) == 1 {
			return nil, errors.New("batch size too large")
		}
		return &ethereum.SettlementDetails{Nonce: big.NewInt(1), Amount: big.NewInt(4000)}, nil
	}

	store := &mockSyncStore{}
	engine := newReconcileEngine(client, store)

	start := time.Now()
	outcome := engine.reconcileOrder(context.Background(), client, orderA, settledEvent(orderA, 1200), 5000, zap.NewNop())
	assert.Equal(t, ResultSettled, outcome.Result)

	// first attempt pinned, retry at latest after backing off
	require.Len(t, blocks, 2)
	assert.Equal(t, uint64(5000), blocks[0].Uint64())
	assert.Nil(t, blocks[1])
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestReconcileOrderDetailsFailure(t *testing.T) {
	client := happyChainClient(arbitrumConfig(), 5000, nil, nil)
	client.settlementDetailsFunc = func(_ context.Context, _ common.Hash, _ *big.Int) (*ethereum.SettlementDetails, error) {
		return nil, errors.New("execution reverted")
	}

	store := &mockSyncStore{}
	engine := newReconcileEngine(client, store)

	outcome := engine.reconcileOrder(context.Background(), client, orderA, settledEvent(orderA, 1200), 5000, zap.NewNop())
	assert.Equal(t, ResultFailed, outcome.Result)
	require.Error(t, outcome.Err)
	assert.Empty(t, store.recordedSettlements())
}

func TestReconcileOrderStoreFailure(t *testing.T) {
	client := happyChainClient(arbitrumConfig(), 5000, nil, big.NewInt(100))
	store := &mockSyncStore{upsertSettlementErr: errors.New("db down")}
	engine := newReconcileEngine(client, store)

	outcome := engine.reconcileOrder(context.Background(), client, orderA, settledEvent(orderA, 1200), 5000, zap.NewNop())
	assert.Equal(t, ResultFailed, outcome.Result)
	assert.ErrorContains(t, outcome.Err, "db down")
}

func TestReconcileOrderMissingEventSkippedAfterDetails(t *testing.T) {
	client := happyChainClient(arbitrumConfig(), 5000, nil, big.NewInt(100))
	store := &mockSyncStore{}
	engine := newReconcileEngine(client, store)

	outcome := engine.reconcileOrder(context.Background(), client, orderA, nil, 5000, zap.NewNop())
	assert.Equal(t, ResultSkipped, outcome.Result)
	assert.Empty(t, store.recordedSettlements())
}

func TestReconcileOrderMissingEventDetailsFailureStillFails(t *testing.T) {
	// the contract read comes before the event check, so its failure wins
	client := happyChainClient(arbitrumConfig(), 5000, nil, nil)
	client.settlementDetailsFunc = func(_ context.Context, _ common.Hash, _ *big.Int) (*ethereum.SettlementDetails, error) {
		return nil, errors.New("execution reverted")
	}
	store := &mockSyncStore{}
	engine := newReconcileEngine(client, store)

	outcome := engine.reconcileOrder(context.Background(), client, orderA, nil, 5000, zap.NewNop())
	assert.Equal(t, ResultFailed, outcome.Result)
	require.Error(t, outcome.Err)
}

func TestNormalizeOrderID(t *testing.T) {
	assert.Equal(t,
		"0x00000000000000000000000000000000000000000000000000000000000000aa",
		normalizeOrderID("0xAA"))
	assert.Equal(t,
		"0x00000000000000000000000000000000000000000000000000000000000000aa",
		normalizeOrderID("0x00000000000000000000000000000000000000000000000000000000000000AA"))
}
