package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// Fulfillment moves orders through their delivery lifecycle. Shoppers never
// reach it; it backs the fulfillment service.
type Fulfillment struct {
	orders  Repository
	auditor Auditor
	logger  *zap.Logger
}

func NewFulfillment(orders Repository, auditor Auditor, logger *zap.Logger) *Fulfillment {
	return &Fulfillment{orders: orders, auditor: auditor, logger: logger}
}

func (f *Fulfillment) Get(ctx context.Context, id string) (models.Order, error) {
	return f.orders.Get(ctx, id)
}

func (f *Fulfillment) List(ctx context.Context, userID string) ([]models.Order, error) {
	return f.orders.ListByUser(ctx, userID)
}

// UpdateStatus applies one lifecycle transition. Prices, items and the
// address of the order are never touched.
func (f *Fulfillment) UpdateStatus(ctx context.Context, id string, next models.OrderStatus) (models.Order, error) {
	const op = "order.UpdateStatus"
	if !next.Valid() {
		return models.Order{}, errs.Validationf(op, "status", "unknown order status %q", next)
	}

	current, err := f.orders.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if !current.Status.CanTransitionTo(next) {
		return models.Order{}, errs.Conflict(op, fmt.Errorf("order %s cannot move from %s to %s", id, current.Status, next))
	}

	updated, err := f.orders.UpdateStatus(ctx, id, current.Status, next)
	if err != nil {
		return models.Order{}, err
	}

	f.logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)))

	if f.auditor != nil {
		if err := f.auditor.Record(ctx, "update_order_status", id, map[string]any{
			"from": string(current.Status),
			"to":   string(next),
		}); err != nil {
			f.logger.Warn("Failed to write audit log", zap.String("order_id", id), zap.Error(err))
		}
	}
	return updated, nil
}

// RecordPlaced writes the audit entry for an order announced on the event
// bus.
func (f *Fulfillment) RecordPlaced(ctx context.Context, o models.Order) error {
	if f.auditor == nil {
		return nil
	}
	return f.auditor.Record(ctx, "order_received", o.ID, map[string]any{
		"user_id": o.UserID,
		"items":   len(o.Items),
		"total":   o.Total.StringFixed(2),
	})
}
