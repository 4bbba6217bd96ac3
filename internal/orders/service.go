package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kamishop/kamishop-backend/internal/catalog"
	"github.com/kamishop/kamishop-backend/pkg/config"
	"github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
	"github.com/kamishop/kamishop-backend/pkg/logger"
	"github.com/kamishop/kamishop-backend/pkg/metrics"
	"github.com/kamishop/kamishop-backend/pkg/wechat"
)

// testModeQRCode is shown instead of a real payment QR when test mode is on.
const testModeQRCode = "test://paid"

// Settler resolves an order's payment state against the gateway. It is
// implemented by the settlement service; both methods return the refreshed order.
type Settler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Simulate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// Service exposes order creation and buyer-facing reads.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusDTO, error)
	ExpireOverdue(ctx context.Context, batchSize int) (int, error)
}

// CreateOrderInput holds the validated payload to create an order.
type CreateOrderInput struct {
	ProductID uuid.UUID `validate:"required"`
	Email     string    `validate:"required,email"`
	Quantity  int       `validate:"required,min=1"`
}

// OrderDTO is the buyer's view of an order.
type OrderDTO struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Email         string          `json:"email"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	OutTradeNo    string          `json:"out_trade_no"`
	QRCodeURL     *string         `json:"qr_code_url,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Cards         []string        `json:"cards,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StatusDTO is the lightweight payment-poll response.
type StatusDTO struct {
	ID            uuid.UUID  `json:"id"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	Paid          bool       `json:"paid"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type service struct {
	repo        *Repository
	catalogSvc  catalog.Service
	catalogRepo *catalog.Repository
	dbClient    *db.Client
	gateway     wechat.Gateway
	settler     Settler
	cfg         config.OrdersConfig
	testMode    bool
	metrics     *metrics.StoreMetrics
	logg        *logger.Logger
	validate    *validator.Validate
}

// NewService constructs the order service.
func NewService(
	repo *Repository,
	catalogSvc catalog.Service,
	catalogRepo *catalog.Repository,
	dbClient *db.Client,
	gateway wechat.Gateway,
	settler Settler,
	cfg config.OrdersConfig,
	testMode bool,
	storeMetrics *metrics.StoreMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if !testMode && gateway == nil {
		return nil, fmt.Errorf("payment gateway required outside test mode")
	}
	if settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	return &service{
		repo:        repo,
		catalogSvc:  catalogSvc,
		catalogRepo: catalogRepo,
		dbClient:    dbClient,
		gateway:     gateway,
		settler:     settler,
		cfg:         cfg,
		testMode:    testMode,
		metrics:     storeMetrics,
		logg:        logg,
		validate:    validator.New(),
	}, nil
}

// CreateOrder snapshots the resolved price, opens the payment window and
// requests a payment QR code. Stock is only prechecked here; the binding
// claim happens at settlement.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order payload")
	}
	if input.Quantity > s.cfg.MaxQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity exceeds the per-order limit of %d", s.cfg.MaxQuantity))
	}

	product, quote, err := s.catalogSvc.QuoteProduct(ctx, input.ProductID, input.Quantity)
	if err != nil {
		return nil, err
	}

	remaining, err := s.catalogRepo.CountUnsold(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count product stock")
	}
	if remaining < int64(input.Quantity) {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.ExpireAfter)
	order := &models.Order{
		ID:            uuid.New(),
		ProductID:     product.ID,
		Email:         input.Email,
		Quantity:      input.Quantity,
		UnitPrice:     quote.UnitPrice,
		TotalAmount:   quote.Total,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		OutTradeNo:    wechat.GenerateOutTradeNo(),
		ExpiresAt:     &expiresAt,
	}

	qrCode, err := s.requestQRCode(ctx, order, product)
	if err != nil {
		return nil, err
	}
	order.QRCodeURL = &qrCode

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
	}

	if s.metrics != nil {
		s.metrics.IncOrderCreated(product.Slug)
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	ctx = s.logg.WithTradeNo(ctx, order.OutTradeNo)
	s.logg.Info(ctx, "order created")

	order.Product = product
	dto := toOrderDTO(order, nil)
	return &dto, nil
}

func (s *service) requestQRCode(ctx context.Context, order *models.Order, product *models.Product) (string, error) {
	if s.testMode {
		return testModeQRCode, nil
	}
	return s.gateway.CreateNativeOrder(ctx, wechat.PrepayParams{
		OutTradeNo:  order.OutTradeNo,
		Description: product.Name,
		Amount:      order.TotalAmount,
		ExpiresAt:   *order.ExpiresAt,
	})
}

// GetOrder returns the order detail; card contents appear once the order completed.
func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadFresh(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var cards []string
	if order.Status == enums.OrderStatusCompleted && order.PaymentStatus == enums.PaymentStatusPaid {
		rows, err := s.catalogRepo.CardsByOrder(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order cards")
		}
		for _, row := range rows {
			cards = append(cards, row.Content)
		}
	}

	dto := toOrderDTO(order, cards)
	return &dto, nil
}

// GetStatus resolves the current payment state, consulting the gateway while
// the order is still open.
func (s *service) GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusDTO, error) {
	order, err := s.loadFresh(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &StatusDTO{
		ID:            order.ID,
		Status:        order.Status.String(),
		PaymentStatus: order.PaymentStatus.String(),
		Paid:          order.PaymentStatus == enums.PaymentStatusPaid,
		ExpiresAt:     order.ExpiresAt,
	}, nil
}

// loadFresh loads the order and, while it is still open, first applies lazy
// expiry and then asks the settler to reconcile against the gateway. Expired
// orders come back as an error so callers tell the buyer to reorder.
func (s *service) loadFresh(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	if order.PaymentStatus == enums.PaymentStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeOrderExpired, "order has expired")
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusUnpaid {
		return order, nil
	}

	if order.Expired(time.Now().UTC()) {
		if err := s.expireOrder(ctx, order.ID); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeOrderExpired, "order has expired")
	}

	refreshed, err := s.resolvePayment(ctx, orderID)
	if err != nil {
		// answer the poll from stored state when the gateway is down
		s.logg.Error(ctx, "payment reconcile failed", err)
		return order, nil
	}
	if refreshed.Product == nil {
		refreshed.Product = order.Product
	}
	return refreshed, nil
}

func (s *service) resolvePayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.testMode {
		return s.settler.Simulate(ctx, orderID)
	}
	return s.settler.Reconcile(ctx, orderID)
}

// expireOrder closes the payment window under a row lock; a settlement racing
// in first wins and the expiry becomes a no-op.
func (s *service) expireOrder(ctx context.Context, orderID uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusUnpaid {
			return nil
		}
		if !order.Expired(time.Now().UTC()) {
			return nil
		}

		order.Status = enums.OrderStatusCancelled
		order.PaymentStatus = enums.PaymentStatusExpired
		if err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
			return err
		}

		expireCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(expireCtx, "order expired")
		return nil
	})
}

// ExpireOverdue sweeps open orders whose payment window closed. Used by the
// cron worker; each order is expired in its own transaction.
func (s *service) ExpireOverdue(ctx context.Context, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = 100
	}

	rows, err := s.repo.ListExpiredPending(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list overdue orders")
	}

	expired := 0
	for _, row := range rows {
		if err := s.expireOrder(ctx, row.ID); err != nil {
			s.logg.Error(ctx, "expire order failed", err)
			continue
		}
		expired++
	}
	return expired, nil
}

func toOrderDTO(order *models.Order, cards []string) OrderDTO {
	dto := OrderDTO{
		ID:            order.ID,
		ProductID:     order.ProductID,
		Email:         order.Email,
		Quantity:      order.Quantity,
		UnitPrice:     order.UnitPrice,
		TotalAmount:   order.TotalAmount,
		Status:        order.Status.String(),
		PaymentStatus: order.PaymentStatus.String(),
		OutTradeNo:    order.OutTradeNo,
		QRCodeURL:     order.QRCodeURL,
		ExpiresAt:     order.ExpiresAt,
		PaidAt:        order.PaidAt,
		Cards:         cards,
		CreatedAt:     order.CreatedAt,
	}
	if order.Product != nil {
		dto.ProductName = order.Product.Name
	}
	return dto
}
