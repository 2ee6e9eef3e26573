package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// SettlementStatus is the lifecycle state of a settlement record.
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusCompleted SettlementStatus = "COMPLETED"
	SettlementStatusFailed    SettlementStatus = "FAILED"
)

// SettlementDao maps directly to the 'settlements' table in PostgreSQL.
// A settlement is uniquely identified by (order_id, chain_id); amounts are
// stored in the chain's smallest unit.
type SettlementDao struct {
	bun.BaseModel `bun:"table:settlements"`

	OrderID     string           `json:"order_id" bun:"order_id,pk,type:varchar(66)"`
	ChainID     int64            `json:"chain_id" bun:"chain_id,pk"`
	ChainName   string           `json:"chain_name" bun:"chain_name,notnull"`
	Amount      string           `json:"amount" bun:"amount,notnull,type:numeric(78,0)"`
	Profit      string           `json:"profit" bun:"profit,notnull,type:numeric(78,0)"`
	Timestamp   time.Time        `json:"timestamp" bun:"timestamp,notnull"`
	BlockNumber int64            `json:"block_number" bun:"block_number,notnull"`
	Status      SettlementStatus `json:"status" bun:"status,notnull,type:varchar(16)"`
}
