package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/kamishop/kamishop-backend/internal/stats"
	"github.com/kamishop/kamishop-backend/pkg/bigquery"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/feishu"
	"github.com/kamishop/kamishop-backend/pkg/logger"
)

const dispatchTimeout = 30 * time.Second

// Mailer is the delivery surface the dispatcher needs from pkg/mail.
type Mailer interface {
	Enabled() bool
	SendCardDelivery(order *models.Order, product *models.Product, cards []models.Card) error
}

// CardSender posts interactive cards to the operator channel.
type CardSender interface {
	Enabled() bool
	SendCard(ctx context.Context, card feishu.Card) error
}

// SaleSink streams settled sales to the analytics warehouse.
type SaleSink interface {
	InsertSaleEvents(ctx context.Context, events []bigquery.SaleEvent) error
}

// Dispatcher fans settlement events out to email, the operator channel and
// the analytics sink. Every delivery is best-effort: failures are logged and
// never propagate back to the caller.
type Dispatcher struct {
	mailer        Mailer
	feishu        CardSender
	sink          SaleSink
	siteURL       string
	lowStockLimit int
	logg          *logger.Logger
}

// NewDispatcher constructs the dispatcher. mailer, sender and sink may each
// be nil when the channel is not configured. lowStockLimit flips the order
// alert to a warning once the product's remaining cards drop to it.
func NewDispatcher(mailer Mailer, sender CardSender, sink SaleSink, siteURL string, lowStockLimit int, logg *logger.Logger) (*Dispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		mailer:        mailer,
		feishu:        sender,
		sink:          sink,
		siteURL:       siteURL,
		lowStockLimit: lowStockLimit,
		logg:          logg,
	}, nil
}

// OrderCompleted delivers the purchased cards to the buyer and alerts the
// operator channel. Runs in the background.
func (d *Dispatcher) OrderCompleted(ctx context.Context, order *models.Order, product *models.Product, cards []models.Card, remainingStock int) {
	if order == nil {
		return
	}
	go d.deliverCompleted(ctx, order, product, cards, remainingStock)
}

func (d *Dispatcher) deliverCompleted(ctx context.Context, order *models.Order, product *models.Product, cards []models.Card, remainingStock int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()
	ctx = d.logg.WithOrderID(ctx, order.ID.String())

	var errs error

	if d.mailer != nil && d.mailer.Enabled() {
		if err := d.mailer.SendCardDelivery(order, product, cards); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mail: %w", err))
		}
	}

	if d.feishu != nil && d.feishu.Enabled() {
		if err := d.feishu.SendCard(ctx, orderAlertCard(order, product, d.siteURL, remainingStock, d.lowStockLimit)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("feishu: %w", err))
		}
	}

	if d.sink != nil {
		if err := d.sink.InsertSaleEvents(ctx, []bigquery.SaleEvent{saleEvent(order, product)}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("analytics: %w", err))
		}
	}

	if errs != nil {
		d.logg.Error(ctx, "order notifications partially failed", errs)
		return
	}
	d.logg.Info(ctx, "order notifications dispatched")
}

// AllocationFailed alerts the operator channel that a paid order could not be
// fulfilled. Runs in the background.
func (d *Dispatcher) AllocationFailed(ctx context.Context, order *models.Order, product *models.Product) {
	if order == nil || d.feishu == nil || !d.feishu.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		defer cancel()
		ctx = d.logg.WithOrderID(ctx, order.ID.String())

		if err := d.feishu.SendCard(ctx, allocationFailedCard(order, product)); err != nil {
			d.logg.Error(ctx, "allocation alert failed", err)
		}
	}()
}

// DailyReport posts the aggregated sales report to the operator channel.
// Unlike the settlement hooks this is synchronous: the cron job owns the
// schedule and wants the error.
func (d *Dispatcher) DailyReport(ctx context.Context, report stats.DailyReport) error {
	if d.feishu == nil || !d.feishu.Enabled() {
		d.logg.Info(ctx, "daily report skipped, operator channel not configured")
		return nil
	}
	return d.feishu.SendCard(ctx, dailyReportCard(report))
}

func saleEvent(order *models.Order, product *models.Product) bigquery.SaleEvent {
	event := bigquery.SaleEvent{
		OrderID:     order.ID.String(),
		OutTradeNo:  order.OutTradeNo,
		ProductID:   order.ProductID.String(),
		Quantity:    order.Quantity,
		TotalAmount: order.TotalAmount.StringFixed(2),
	}
	if product != nil {
		event.ProductName = product.Name
	}
	if order.PaidAt != nil {
		event.PaidAt = *order.PaidAt
	}
	return event
}
