package syncdb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/solver-middleware/pkg/syncdb/dao"
)

// CreateSchema creates all tables if they do not exist.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*dao.SettlementDao)(nil),
		(*dao.ChainSyncStateDao)(nil),
		(*dao.GasSnapshotDao)(nil),
		(*dao.TokenPriceDao)(nil),
	}
	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}
