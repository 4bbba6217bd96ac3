package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

func TestCreateOrderSnapshotsTierPrice(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	product := seedProduct(t, env.db, "12.00", 10)
	tiers := []models.PricingTier{
		{ID: uuid.New(), ProductID: product.ID, MinQuantity: 1, MaxQuantity: func() *int { v := 5; return &v }(), UnitPrice: decimal.RequireFromString("10.00")},
		{ID: uuid.New(), ProductID: product.ID, MinQuantity: 6, UnitPrice: decimal.RequireFromString("8.00"), DisplayOrder: 1},
	}
	if err := env.db.Create(&tiers).Error; err != nil {
		t.Fatalf("seed tiers: %v", err)
	}

	dto, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  6,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if !dto.UnitPrice.Equal(decimal.RequireFromString("8.00")) {
		t.Errorf("unit = %s, want 8.00", dto.UnitPrice)
	}
	if !dto.TotalAmount.Equal(decimal.RequireFromString("48.00")) {
		t.Errorf("total = %s, want 48.00", dto.TotalAmount)
	}
	if dto.Status != "pending" || dto.PaymentStatus != "unpaid" {
		t.Errorf("fresh order state = %s/%s", dto.Status, dto.PaymentStatus)
	}
	if dto.QRCodeURL == nil || *dto.QRCodeURL == "" {
		t.Error("expected a QR code URL")
	}
	if env.gateway.prepays != 1 {
		t.Errorf("gateway prepays = %d, want 1", env.gateway.prepays)
	}

	stored, err := env.repo.FindByID(ctx, dto.ID)
	if err != nil {
		t.Fatalf("load stored order: %v", err)
	}
	if stored.ExpiresAt == nil || !stored.ExpiresAt.After(time.Now()) {
		t.Error("expected a future expiry window")
	}
	if stored.OutTradeNo == "" {
		t.Error("expected a trade number")
	}
}

func TestCreateOrderOutOfStock(t *testing.T) {
	env := newTestEnv(t, false)

	product := seedProduct(t, env.db, "5.00", 2)

	_, err := env.svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  3,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.gateway.prepays != 0 {
		t.Error("no prepay should happen for an out-of-stock order")
	}
}

func TestCreateOrderQuantityCap(t *testing.T) {
	env := newTestEnv(t, false)
	product := seedProduct(t, env.db, "5.00", 50)

	_, err := env.svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  11,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateOrderRejectsBadEmail(t *testing.T) {
	env := newTestEnv(t, false)
	product := seedProduct(t, env.db, "5.00", 5)

	_, err := env.svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID: product.ID,
		Email:     "not-an-email",
		Quantity:  1,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateOrderTestModeSkipsGateway(t *testing.T) {
	env := newTestEnv(t, true)
	product := seedProduct(t, env.db, "5.00", 5)

	dto, err := env.svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if dto.QRCodeURL == nil || *dto.QRCodeURL != testModeQRCode {
		t.Errorf("test mode QR = %v, want %s", dto.QRCodeURL, testModeQRCode)
	}
	if env.gateway.prepays != 0 {
		t.Error("gateway must not be called in test mode")
	}
}

func TestGetStatusAppliesLazyExpiry(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	product := seedProduct(t, env.db, "5.00", 5)
	past := time.Now().UTC().Add(-time.Minute)
	order := &models.Order{
		ID:            uuid.New(),
		ProductID:     product.ID,
		Email:         "buyer@example.com",
		Quantity:      1,
		UnitPrice:     decimal.RequireFromString("5.00"),
		TotalAmount:   decimal.RequireFromString("5.00"),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		OutTradeNo:    "ORDER_1700000000_DEAD0001",
		ExpiresAt:     &past,
	}
	if err := env.repo.Create(ctx, order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	_, err := env.svc.GetStatus(ctx, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOrderExpired {
		t.Fatalf("error = %v, want order-expired", err)
	}
	if env.settler.reconciles != 0 {
		t.Error("expired order must not hit the gateway")
	}

	stored, err := env.repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if stored.Status != enums.OrderStatusCancelled || stored.PaymentStatus != enums.PaymentStatusExpired {
		t.Fatalf("state = %s/%s, want cancelled/expired", stored.Status, stored.PaymentStatus)
	}

	// a later view of the closed order gets the same answer
	if _, err := env.svc.GetOrder(ctx, order.ID); pkgerrors.As(err) == nil ||
		pkgerrors.As(err).Code() != pkgerrors.CodeOrderExpired {
		t.Fatalf("GetOrder after expiry = %v, want order-expired", err)
	}
}

func TestGetStatusReconcilesOpenOrders(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	product := seedProduct(t, env.db, "5.00", 5)
	dto, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := env.svc.GetStatus(ctx, dto.ID); err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if env.settler.reconciles != 1 {
		t.Errorf("reconciles = %d, want 1", env.settler.reconciles)
	}
	if env.settler.simulates != 0 {
		t.Errorf("simulates = %d, want 0", env.settler.simulates)
	}
}

func TestGetStatusSimulatesInTestMode(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	product := seedProduct(t, env.db, "5.00", 5)
	dto, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := env.svc.GetStatus(ctx, dto.ID); err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if env.settler.simulates != 1 {
		t.Errorf("simulates = %d, want 1", env.settler.simulates)
	}
}

func TestGetOrderIncludesCardsOnceCompleted(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	product := seedProduct(t, env.db, "5.00", 3)
	paidAt := time.Now().UTC()
	order := &models.Order{
		ID:            uuid.New(),
		ProductID:     product.ID,
		Email:         "buyer@example.com",
		Quantity:      2,
		UnitPrice:     decimal.RequireFromString("5.00"),
		TotalAmount:   decimal.RequireFromString("10.00"),
		Status:        enums.OrderStatusCompleted,
		PaymentStatus: enums.PaymentStatusPaid,
		OutTradeNo:    "ORDER_1700000000_BEEF0001",
		PaidAt:        &paidAt,
	}
	if err := env.repo.Create(ctx, order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := env.db.Model(&models.Card{}).
		Where("product_id = ?", product.ID).
		Limit(2).
		Updates(map[string]any{"status": enums.CardStatusSold, "order_id": order.ID}).Error; err != nil {
		t.Fatalf("assign cards: %v", err)
	}

	dto, err := env.svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(dto.Cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(dto.Cards))
	}
}

func TestExpireOverdueSweepsBatch(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	product := seedProduct(t, env.db, "5.00", 5)
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	for i, expiry := range []*time.Time{&past, &past, &future} {
		order := &models.Order{
			ID:            uuid.New(),
			ProductID:     product.ID,
			Email:         "buyer@example.com",
			Quantity:      1,
			UnitPrice:     decimal.RequireFromString("5.00"),
			TotalAmount:   decimal.RequireFromString("5.00"),
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusUnpaid,
			OutTradeNo:    uuid.NewString()[:20],
			ExpiresAt:     expiry,
		}
		if err := env.repo.Create(ctx, order); err != nil {
			t.Fatalf("seed order %d: %v", i, err)
		}
	}

	expired, err := env.svc.ExpireOverdue(ctx, 10)
	if err != nil {
		t.Fatalf("ExpireOverdue: %v", err)
	}
	if expired != 2 {
		t.Fatalf("expired = %d, want 2", expired)
	}

	var stillOpen int64
	if err := env.db.Model(&models.Order{}).
		Where("status = ?", enums.OrderStatusPending).
		Count(&stillOpen).Error; err != nil {
		t.Fatalf("count open: %v", err)
	}
	if stillOpen != 1 {
		t.Fatalf("open orders = %d, want 1", stillOpen)
	}
}
