package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// ChainSyncStateDao records the settlement sync watermark for one chain.
type ChainSyncStateDao struct {
	bun.BaseModel `bun:"table:chain_sync_state"`

	ChainID        int64     `json:"chain_id" bun:"chain_id,pk"`
	ChainName      string    `json:"chain_name" bun:"chain_name,notnull"`
	LastSyncBlock  int64     `json:"last_sync_block" bun:"last_sync_block,notnull"`
	LastSyncTime   time.Time `json:"last_sync_time" bun:"last_sync_time,notnull"`
	LastUpdateTime time.Time `json:"last_update_time" bun:"last_update_time,notnull"`
}
