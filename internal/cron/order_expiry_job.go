package cron

import (
	"context"
	"fmt"

	"github.com/kamishop/kamishop-backend/pkg/logger"
)

const expiryBatchSize = 500

// overdueExpirer is the order-service surface the expiry job consumes.
type overdueExpirer interface {
	ExpireOverdue(ctx context.Context, batchSize int) (int, error)
}

// OrderExpiryJobParams configure the payment-window sweep.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders overdueExpirer
}

// NewOrderExpiryJob builds the cron job that closes overdue payment windows.
// Buyers hitting an overdue order expire it lazily; this sweep catches the
// orders nobody ever looked at again.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	return &orderExpiryJob{logg: params.Logger, orders: params.Orders}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders overdueExpirer
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	total := 0
	for {
		expired, err := j.orders.ExpireOverdue(ctx, expiryBatchSize)
		if err != nil {
			return fmt.Errorf("expire overdue orders: %w", err)
		}
		total += expired
		if expired < expiryBatchSize {
			break
		}
	}

	ctx = j.logg.WithField(ctx, "expired", total)
	j.logg.Info(ctx, "overdue orders swept")
	return nil
}
