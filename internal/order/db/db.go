package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-watchmarket/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// orderColumns are the columns a transition may touch. Identity, snapshot and
// created_at are written once by CreateOrder.
var orderColumns = []string{
	"status", "payment_status", "shipping_status",
	"paid_at", "payment_intent_id",
	"tracking_number", "carrier", "shipped_at", "estimated_delivery", "delivered_at",
	"authentication_ref",
	"return_window_start", "return_type", "return_shipping_paid_by",
	"version", "updated_at",
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	return err
}

// GetOrderByID loads an order together with its return request, if any.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Return").
		Where("?TableAlias.order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	dropEmptyReturn(&order)
	return &order, nil
}

// dropEmptyReturn clears a has-one join that matched no row.
func dropEmptyReturn(o *models.Order) {
	if o.Return != nil && o.Return.ID == "" {
		o.Return = nil
	}
}

// ListOrdersByUser returns the orders where userID is on the given side, newest first.
func (d *DB) ListOrdersByUser(ctx context.Context, userID string, side models.Party, status models.OrderStatus) ([]models.Order, error) {
	column := "buyer_id"
	if side == models.PartySeller {
		column = "seller_id"
	}

	orders := []models.Order{}
	q := d.Bun.NewSelect().
		Model(&orders).
		Relation("Return").
		Where("?TableAlias.? = ?", bun.Ident(column), userID).
		OrderExpr("?TableAlias.created_at DESC")
	if status != "" {
		q = q.Where("?TableAlias.status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	for i := range orders {
		dropEmptyReturn(&orders[i])
	}
	return orders, nil
}

// SaveOrder writes order if the stored version still equals expectedVersion,
// together with its return request, in one transaction. On success
// order.Version is advanced.
func (d *DB) SaveOrder(ctx context.Context, order *models.Order, expectedVersion int64) error {
	next := *order
	next.Version = expectedVersion + 1

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(&next).
			Column(orderColumns...).
			Where("order_id = ?", next.ID).
			Where("version = ?", expectedVersion).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			exists, err := tx.NewSelect().Model((*models.Order)(nil)).Where("order_id = ?", next.ID).Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return models.NotFound("order", next.ID)
			}
			return fmt.Errorf("order %s at version %d: %w", next.ID, expectedVersion, models.ErrConcurrentUpdate)
		}

		if next.Return != nil {
			if err := upsertReturn(ctx, tx, next.Return); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.Version = next.Version
	return nil
}

func upsertReturn(ctx context.Context, tx bun.Tx, r *models.ReturnRequest) error {
	_, err := tx.NewInsert().
		Model(r).
		On("CONFLICT (return_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("shipping_paid_by = EXCLUDED.shipping_paid_by").
		Set("label_url = EXCLUDED.label_url").
		Set("tracking_number = EXCLUDED.tracking_number").
		Set("decision_note = EXCLUDED.decision_note").
		Set("decided_at = EXCLUDED.decided_at").
		Exec(ctx)
	return err
}

// GetReturnByID fetches a return request on its own.
func (d *DB) GetReturnByID(ctx context.Context, id string) (*models.ReturnRequest, error) {
	var r models.ReturnRequest
	err := d.Bun.NewSelect().Model(&r).Where("return_id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("return request", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// StatusCount is one row of a seller's order breakdown.
type StatusCount struct {
	Status models.OrderStatus `bun:"status" json:"status"`
	Count  int                `bun:"count" json:"count"`
}

// CountOrdersByStatus groups a seller's orders by status.
func (d *DB) CountOrdersByStatus(ctx context.Context, sellerID string) ([]StatusCount, error) {
	counts := []StatusCount{}
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Where("seller_id = ?", sellerID).
		Group("status").
		Order("status").
		Scan(ctx, &counts)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ListSellerSales returns the seller's orders whose payment completed at or
// after since, oldest payment first. Refunded and cancelled sales are left out.
func (d *DB) ListSellerSales(ctx context.Context, sellerID string, since time.Time) ([]models.Order, error) {
	orders := []models.Order{}
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("seller_id = ?", sellerID).
		Where("payment_status = ?", models.PaymentCompleted).
		Where("status != ?", models.StatusCancelled).
		Where("paid_at >= ?", since).
		Order("paid_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ---------------- USERS ----------------

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().Model(&user).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := d.Bun.NewInsert().Model(user).Exec(ctx)
	return err
}
