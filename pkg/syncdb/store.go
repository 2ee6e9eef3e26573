// Package syncdb persists settlement, sync-watermark, gas and price state
// in PostgreSQL via bun.
package syncdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
)

type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// UpsertSettlement inserts or replaces a settlement keyed by
// (order_id, chain_id). Re-running a sync over the same range is a no-op
// apart from refreshed column values.
func (s *Store) UpsertSettlement(ctx context.Context, settlement *dao.SettlementDao) error {
	_, err := s.db.NewInsert().
		Model(settlement).
		On("CONFLICT (order_id, chain_id) DO UPDATE").
		Set("chain_name = EXCLUDED.chain_name").
		Set("amount = EXCLUDED.amount").
		Set("profit = EXCLUDED.profit").
		Set("timestamp = EXCLUDED.timestamp").
		Set("block_number = EXCLUDED.block_number").
		Set("status = EXCLUDED.status").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert settlement %s on chain %d: %w", settlement.OrderID, settlement.ChainID, err)
	}
	return nil
}

// CompletedOrderIDs returns the order IDs of all COMPLETED settlements on a
// chain, as stored (normalized lowercase hex).
func (s *Store) CompletedOrderIDs(ctx context.Context, chainID int64) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*dao.SettlementDao)(nil)).
		Column("order_id").
		Where("chain_id = ?", chainID).
		Where("status = ?", dao.SettlementStatusCompleted).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed order ids for chain %d: %w", chainID, err)
	}
	return ids, nil
}

// ListSettlements returns settlements ordered by timestamp descending,
// optionally filtered by chain. A limit of 0 means no limit.
func (s *Store) ListSettlements(ctx context.Context, chainID int64, limit int) ([]dao.SettlementDao, error) {
	var settlements []dao.SettlementDao
	q := s.db.NewSelect().
		Model(&settlements).
		Order("timestamp DESC")
	if chainID != 0 {
		q = q.Where("chain_id = ?", chainID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, nil
}

func (s *Store) UpsertChainSyncState(ctx context.Context, state *dao.ChainSyncStateDao) error {
	_, err := s.db.NewInsert().
		Model(state).
		On("CONFLICT (chain_id) DO UPDATE").
		Set("chain_name = EXCLUDED.chain_name").
		Set("last_sync_block = EXCLUDED.last_sync_block").
		Set("last_sync_time = EXCLUDED.last_sync_time").
		Set("last_update_time = EXCLUDED.last_update_time").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert sync state for chain %d: %w", state.ChainID, err)
	}
	return nil
}

// GetChainSyncState returns nil without error when the chain has never been
// synced.
func (s *Store) GetChainSyncState(ctx context.Context, chainID int64) (*dao.ChainSyncStateDao, error) {
	state := new(dao.ChainSyncStateDao)
	err := s.db.NewSelect().
		Model(state).
		Where("chain_id = ?", chainID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state for chain %d: %w", chainID, err)
	}
	return state, nil
}

func (s *Store) ListChainSyncStates(ctx context.Context) ([]dao.ChainSyncStateDao, error) {
	var states []dao.ChainSyncStateDao
	err := s.db.NewSelect().
		Model(&states).
		Order("chain_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync states: %w", err)
	}
	return states, nil
}

func (s *Store) UpsertGasSnapshot(ctx context.Context, snapshot *dao.GasSnapshotDao) error {
	_, err := s.db.NewInsert().
		Model(snapshot).
		On("CONFLICT (chain_id) DO UPDATE").
		Set("chain_name = EXCLUDED.chain_name").
		Set("solver_address = EXCLUDED.solver_address").
		Set("current_balance = EXCLUDED.current_balance").
		Set("current_balance_usd = EXCLUDED.current_balance_usd").
		Set("total_deposited = EXCLUDED.total_deposited").
		Set("total_deposited_usd = EXCLUDED.total_deposited_usd").
		Set("last_sync_block = EXCLUDED.last_sync_block").
		Set("last_sync_time = EXCLUDED.last_sync_time").
		Set("last_update_time = EXCLUDED.last_update_time").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert gas snapshot for chain %d: %w", snapshot.ChainID, err)
	}
	return nil
}

// GetGasSnapshot returns nil without error when the chain has no snapshot
// yet.
func (s *Store) GetGasSnapshot(ctx context.Context, chainID int64) (*dao.GasSnapshotDao, error) {
	snapshot := new(dao.GasSnapshotDao)
	err := s.db.NewSelect().
		Model(snapshot).
		Where("chain_id = ?", chainID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gas snapshot for chain %d: %w", chainID, err)
	}
	return snapshot, nil
}

func (s *Store) ListGasSnapshots(ctx context.Context) ([]dao.GasSnapshotDao, error) {
	var snapshots []dao.GasSnapshotDao
	err := s.db.NewSelect().
		Model(&snapshots).
		Order("chain_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list gas snapshots: %w", err)
	}
	return snapshots, nil
}

func (s *Store) UpsertTokenPrice(ctx context.Context, price *dao.TokenPriceDao) error {
	_, err := s.db.NewInsert().
		Model(price).
		On("CONFLICT (price_group) DO UPDATE").
		Set("price_usd = EXCLUDED.price_usd").
		Set("last_fetched = EXCLUDED.last_fetched").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert token price for %s: %w", price.PriceGroup, err)
	}
	return nil
}

func (s *Store) ListTokenPrices(ctx context.Context) ([]dao.TokenPriceDao, error) {
	var prices []dao.TokenPriceDao
	err := s.db.NewSelect().
		Model(&prices).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list token prices: %w", err)
	}
	return prices, nil
}
