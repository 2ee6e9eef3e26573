package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// TokenPriceDao caches the last known USD price of a native-token group
// so a restart does not begin from an all-zero price table.
type TokenPriceDao struct {
	bun.BaseModel `bun:"table:token_prices"`

	PriceGroup  string    `json:"price_group" bun:"price_group,pk,type:varchar(16)"`
	PriceUSD    float64   `json:"price_usd" bun:"price_usd,notnull"`
	LastFetched time.Time `json:"last_fetched" bun:"last_fetched,notnull"`
}
