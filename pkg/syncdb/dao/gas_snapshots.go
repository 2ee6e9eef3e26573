package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// GasSnapshotDao is the persisted gas position of the solver on one chain.
// Balance and deposit totals are wei strings; the USD figures are derived at
// write time from the cached native-token price.
type GasSnapshotDao struct {
	bun.BaseModel `bun:"table:gas_snapshots"`

	ChainID           int64     `json:"chain_id" bun:"chain_id,pk"`
	ChainName         string    `json:"chain_name" bun:"chain_name,notnull"`
	SolverAddress     string    `json:"solver_address" bun:"solver_address,notnull,type:varchar(42)"`
	CurrentBalance    string    `json:"current_balance" bun:"current_balance,notnull,type:numeric(78,0)"`
	CurrentBalanceUSD string    `json:"current_balance_usd" bun:"current_balance_usd,notnull,type:numeric(32,8)"`
	TotalDeposited    string    `json:"total_deposited" bun:"total_deposited,notnull,type:numeric(78,0)"`
	TotalDepositedUSD string    `json:"total_deposited_usd" bun:"total_deposited_usd,notnull,type:numeric(32,8)"`
	LastSyncBlock     int64     `json:"last_sync_block" bun:"last_sync_block,notnull"`
	LastSyncTime      time.Time `json:"last_sync_time" bun:"last_sync_time,notnull"`
	LastUpdateTime    time.Time `json:"last_update_time" bun:"last_update_time,notnull"`
}
