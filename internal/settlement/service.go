package settlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kamishop/kamishop-backend/internal/allocation"
	"github.com/kamishop/kamishop-backend/internal/orders"
	"github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
	"github.com/kamishop/kamishop-backend/pkg/logger"
	"github.com/kamishop/kamishop-backend/pkg/metrics"
	"github.com/kamishop/kamishop-backend/pkg/wechat"
)

// Settlement triggers, used as metric labels.
const (
	TriggerCallback = "callback"
	TriggerPoll     = "poll"
	TriggerSimulate = "simulate"
)

// Notifier receives post-settlement events. Implementations are best-effort
// and must never fail the settlement.
type Notifier interface {
	OrderCompleted(ctx context.Context, order *models.Order, product *models.Product, cards []models.Card, remainingStock int)
	AllocationFailed(ctx context.Context, order *models.Order, product *models.Product)
}

// EventMarker deduplicates gateway events. Advisory only: the order row lock
// is the real idempotency barrier.
type EventMarker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Service settles orders. All three entry paths converge on the same
// row-locked settle step, so replays and races collapse to no-ops.
type Service interface {
	HandleCallback(ctx context.Context, req *http.Request) (*models.Order, error)
	Reconcile(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Simulate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	ordersRepo *orders.Repository
	engine     *allocation.Engine
	dbClient   *db.Client
	gateway    wechat.Gateway
	notifier   Notifier
	marker     EventMarker
	markerTTL  time.Duration
	testMode   bool
	metrics    *metrics.StoreMetrics
	logg       *logger.Logger
}

// NewService constructs the settlement service.
func NewService(
	ordersRepo *orders.Repository,
	engine *allocation.Engine,
	dbClient *db.Client,
	gateway wechat.Gateway,
	notifier Notifier,
	marker EventMarker,
	markerTTL time.Duration,
	testMode bool,
	storeMetrics *metrics.StoreMetrics,
	logg *logger.Logger,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("allocation engine required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if !testMode && gateway == nil {
		return nil, fmt.Errorf("payment gateway required outside test mode")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	return &service{
		ordersRepo: ordersRepo,
		engine:     engine,
		dbClient:   dbClient,
		gateway:    gateway,
		notifier:   notifier,
		marker:     marker,
		markerTTL:  markerTTL,
		testMode:   testMode,
		metrics:    storeMetrics,
		logg:       logg,
	}, nil
}

// HandleCallback verifies a gateway notification and settles the referenced
// order. Returns the order so the transport layer can acknowledge.
func (s *service) HandleCallback(ctx context.Context, req *http.Request) (*models.Order, error) {
	event, err := s.gateway.VerifyNotify(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithTradeNo(ctx, event.OutTradeNo)
	if !event.State.Paid() {
		s.logg.Info(ctx, "ignoring non-success payment event")
		return s.ordersRepo.FindByOutTradeNo(ctx, event.OutTradeNo)
	}

	if s.marker != nil && event.TransactionID != "" {
		key := s.marker.IdempotencyKey("wechat-event", event.TransactionID)
		fresh, err := s.marker.SetNX(ctx, key, event.OutTradeNo, s.markerTTL)
		if err != nil {
			s.logg.Error(ctx, "event marker unavailable", err)
		} else if !fresh {
			s.logg.Info(ctx, "duplicate payment event")
			return s.ordersRepo.FindByOutTradeNo(ctx, event.OutTradeNo)
		}
	}

	paidAt := time.Now().UTC()
	if event.SuccessTime != nil {
		paidAt = event.SuccessTime.UTC()
	}
	return s.settle(ctx, TriggerCallback, event.OutTradeNo, event.TransactionID, paidAt)
}

// Reconcile queries the gateway for the order's live state and settles it if
// the money already arrived. Used by the buyer's status poll as the safety
// net for lost callbacks.
func (s *service) Reconcile(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != enums.PaymentStatusUnpaid {
		return order, nil
	}

	state, err := s.gateway.QueryOrder(ctx, order.OutTradeNo)
	if err != nil {
		return nil, err
	}
	if !state.State.Paid() {
		return order, nil
	}

	return s.settle(ctx, TriggerPoll, order.OutTradeNo, state.TransactionID, time.Now().UTC())
}

// Simulate settles an order without any gateway involvement. Only available
// in test mode.
func (s *service) Simulate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if !s.testMode {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment simulation is disabled")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != enums.PaymentStatusUnpaid {
		return order, nil
	}

	return s.settle(ctx, TriggerSimulate, order.OutTradeNo, "TEST_"+order.OutTradeNo, time.Now().UTC())
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

// settle records the payment and claims cards under the order's row lock.
// Already-paid orders return unchanged, so every entry path is idempotent.
// When the claim comes up short the order is cancelled and no payment is
// recorded, keeping paid orders in lockstep with sold cards.
func (s *service) settle(ctx context.Context, trigger, outTradeNo, transactionID string, paidAt time.Time) (*models.Order, error) {
	var (
		settled   *models.Order
		claimed   []models.Card
		stockOut  bool
		remaining int
	)

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)

		order, err := repo.FindByOutTradeNoForUpdate(ctx, outTradeNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
		}

		if order.PaymentStatus == enums.PaymentStatusPaid {
			settled = order
			return nil
		}

		cards, err := s.engine.Claim(ctx, tx, order.ProductID, order.ID, order.Quantity)
		switch {
		case err == nil:
			order.Status = enums.OrderStatusCompleted
			order.PaymentStatus = enums.PaymentStatusPaid
			order.TransactionID = &transactionID
			order.PaidAt = &paidAt
			claimed = cards
			if remaining, err = s.engine.Remaining(ctx, tx, order.ProductID); err != nil {
				return err
			}
		case isOutOfStock(err):
			// payment stays unrecorded so paid always means fulfilled
			order.Status = enums.OrderStatusCancelled
			stockOut = true
		default:
			return err
		}

		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist settlement")
		}
		settled = order
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncSettlement(trigger, "error")
		}
		return nil, err
	}

	s.afterSettle(ctx, trigger, settled, claimed, stockOut, remaining)
	return settled, nil
}

// afterSettle emits metrics, logs and notifications once the transaction
// committed. Nothing here can undo the settlement.
func (s *service) afterSettle(ctx context.Context, trigger string, order *models.Order, claimed []models.Card, stockOut bool, remaining int) {
	if order == nil {
		return
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	ctx = s.logg.WithTradeNo(ctx, order.OutTradeNo)

	product := order.Product
	if product == nil {
		if loaded, err := s.ordersRepo.FindByID(ctx, order.ID); err == nil {
			product = loaded.Product
			order.Product = product
		}
	}

	switch {
	case stockOut:
		s.logg.Warn(ctx, "settlement without stock, order cancelled for refund")
		if s.metrics != nil {
			s.metrics.IncSettlement(trigger, "stock_out")
			if product != nil {
				s.metrics.IncAllocationFailure(product.Slug)
			}
		}
		if s.notifier != nil {
			s.notifier.AllocationFailed(context.WithoutCancel(ctx), order, product)
		}

	case len(claimed) > 0:
		s.logg.Info(ctx, "order settled")
		if s.metrics != nil {
			s.metrics.IncSettlement(trigger, "completed")
			if product != nil {
				s.metrics.SetRemainingStock(product.Slug, remaining)
			}
		}
		if s.notifier != nil {
			s.notifier.OrderCompleted(context.WithoutCancel(ctx), order, product, claimed, remaining)
		}

	default:
		// replayed event on an already-settled order
		if s.metrics != nil {
			s.metrics.IncSettlement(trigger, "noop")
		}
	}
}

func isOutOfStock(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeOutOfStock
}
