package db

import (
	"context"
	"fmt"

	"ms-watchmarket/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema creates the tables straight from the models. Production
// databases are migrated with the SQL files under migrations/; this is for
// local runs and tests.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range []interface{}{
		(*models.User)(nil),
		(*models.Order)(nil),
		(*models.ReturnRequest)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*models.Order)(nil)).
		Index("orders_seller_status_idx").
		IfNotExists().
		Column("seller_id", "status").
		Exec(ctx)
	return err
}
