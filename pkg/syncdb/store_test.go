package syncdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/solver-middleware/pkg/pgutil"
	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("CI") == "" {
		if _, err := os.Stat("/var/run/docker.sock"); err != nil {
			t.Skip("docker is not available, skipping testcontainers test")
		}
	}

	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	require.NoError(t, CreateSchema(context.Background(), db))
	return NewStore(db)
}

func TestStoreSettlements(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	settlement := &dao.SettlementDao{
		OrderID:     "0x00000000000000000000000000000000000000000000000000000000000000aa",
		ChainID:     42161,
		ChainName:   "arbitrum",
		Amount:      "1000000000000000000",
		Profit:      "1000000000000000",
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		BlockNumber: 1234,
		Status:      dao.SettlementStatusCompleted,
	}
	require.NoError(t, store.UpsertSettlement(ctx, settlement))

	// Upserting the same key again updates in place rather than duplicating
	settlement.Amount = "2000000000000000000"
	settlement.Profit = "2000000000000000"
	require.NoError(t, store.UpsertSettlement(ctx, settlement))

	settlements, err := store.ListSettlements(ctx, 42161, 0)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	assert.Equal(t, "2000000000000000000", settlements[0].Amount)
	assert.Equal(t, "2000000000000000", settlements[0].Profit)
	assert.Equal(t, dao.SettlementStatusCompleted, settlements[0].Status)

	// Same order id on a different chain is a distinct row
	other := *settlement
	other.ChainID = 8453
	other.ChainName = "base"
	require.NoError(t, store.UpsertSettlement(ctx, &other))

	all, err := store.ListSettlements(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStoreCompletedOrderIDs(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	rows := []dao.SettlementDao{
		{
			OrderID:     "0x0000000000000000000000000000000000000000000000000000000000000001",
			ChainID:     1,
			ChainName:   "ethereum",
			Amount:      "1",
			Profit:      "0",
			Timestamp:   time.Now().UTC(),
			BlockNumber: 1,
			Status:      dao.SettlementStatusCompleted,
		},
		{
			OrderID:     "0x0000000000000000000000000000000000000000000000000000000000000002",
			ChainID:     1,
			ChainName:   "ethereum",
			Amount:      "1",
			Profit:      "0",
			Timestamp:   time.Now().UTC(),
			BlockNumber: 2,
			Status:      dao.SettlementStatusPending,
		},
		{
			OrderID:     "0x0000000000000000000000000000000000000000000000000000000000000003",
			ChainID:     137,
			ChainName:   "polygon",
			Amount:      "1",
			Profit:      "0",
			Timestamp:   time.Now().UTC(),
			BlockNumber: 3,
			Status:      dao.SettlementStatusCompleted,
		},
	}
	for i := range rows {
		require.NoError(t, store.UpsertSettlement(ctx, &rows[i]))
	}

	ids, err := store.CompletedOrderIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x0000000000000000000000000000000000000000000000000000000000000001"}, ids)
}

func TestStoreChainSyncState(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	missing, err := store.GetChainSyncState(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	state := &dao.ChainSyncStateDao{
		ChainID:        42161,
		ChainName:      "arbitrum",
		LastSyncBlock:  5000,
		LastSyncTime:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastUpdateTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.UpsertChainSyncState(ctx, state))

	state.LastSyncBlock = 6000
	state.LastUpdateTime = time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertChainSyncState(ctx, state))

	got, err := store.GetChainSyncState(ctx, 42161)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(6000), got.LastSyncBlock)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), got.LastUpdateTime.UTC())

	states, err := store.ListChainSyncStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestStoreGasSnapshots(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	missing, err := store.GetGasSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	snapshot := &dao.GasSnapshotDao{
		ChainID:           1,
		ChainName:         "ethereum",
		SolverAddress:     "0x1111111111111111111111111111111111111111",
		CurrentBalance:    "5000000000000000000",
		CurrentBalanceUSD: "12500.50000000",
		TotalDeposited:    "10000000000000000000",
		TotalDepositedUSD: "25001.00000000",
		LastSyncBlock:     700,
		LastSyncTime:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastUpdateTime:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.UpsertGasSnapshot(ctx, snapshot))

	snapshot.CurrentBalance = "4000000000000000000"
	snapshot.TotalDepositedUSD = "26000.00000000"
	snapshot.LastSyncBlock = 800
	require.NoError(t, store.UpsertGasSnapshot(ctx, snapshot))

	got, err := store.GetGasSnapshot(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "4000000000000000000", got.CurrentBalance)
	assert.Equal(t, "26000.00000000", got.TotalDepositedUSD)
	assert.Equal(t, int64(800), got.LastSyncBlock)

	snapshots, err := store.ListGasSnapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
}

func TestStoreTokenPrices(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	price := &dao.TokenPriceDao{
		PriceGroup:  "ETH",
		PriceUSD:    2500.25,
		LastFetched: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.UpsertTokenPrice(ctx, price))

	price.PriceUSD = 2600.75
	require.NoError(t, store.UpsertTokenPrice(ctx, price))

	prices, err := store.ListTokenPrices(ctx)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 2600.75, prices[0].PriceUSD)
}
