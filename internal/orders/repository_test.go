package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
	"github.com/kamishop/kamishop-backend/pkg/wechat"
)

func seedOrder(t *testing.T, repo *Repository, productID uuid.UUID, mutate func(*models.Order)) *models.Order {
	t.Helper()

	expires := time.Now().Add(30 * time.Minute).UTC()
	order := &models.Order{
		ID:            uuid.New(),
		ProductID:     productID,
		Email:         "buyer@example.com",
		Quantity:      1,
		UnitPrice:     decimal.RequireFromString("10.00"),
		TotalAmount:   decimal.RequireFromString("10.00"),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		OutTradeNo:    wechat.GenerateOutTradeNo(),
		ExpiresAt:     &expires,
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestRepositoryFindByOutTradeNoPreloadsProduct(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, "10.00", 0)
	order := seedOrder(t, repo, product.ID, nil)

	found, err := repo.FindByOutTradeNo(context.Background(), order.OutTradeNo)
	require.NoError(t, err)

	assert.Equal(t, order.ID, found.ID)
	require.NotNil(t, found.Product)
	assert.Equal(t, product.Name, found.Product.Name)
}

func TestRepositoryListExpiredPending(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, "10.00", 0)

	past := time.Now().Add(-time.Hour).UTC()
	overdue := seedOrder(t, repo, product.ID, func(o *models.Order) { o.ExpiresAt = &past })
	seedOrder(t, repo, product.ID, nil) // still inside the window
	seedOrder(t, repo, product.ID, func(o *models.Order) {
		o.ExpiresAt = &past
		o.Status = enums.OrderStatusCompleted
		o.PaymentStatus = enums.PaymentStatusPaid
	})

	expired, err := repo.ListExpiredPending(context.Background(), time.Now().UTC(), 10)
	require.NoError(t, err)

	require.Len(t, expired, 1)
	assert.Equal(t, overdue.ID, expired[0].ID)
}

func TestRepositoryListExpiredPendingHonorsLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, "10.00", 0)

	past := time.Now().Add(-time.Hour).UTC()
	for i := 0; i < 5; i++ {
		seedOrder(t, repo, product.ID, func(o *models.Order) { o.ExpiresAt = &past })
	}

	expired, err := repo.ListExpiredPending(context.Background(), time.Now().UTC(), 3)
	require.NoError(t, err)
	assert.Len(t, expired, 3)
}

func TestRepositoryCountSettledBetween(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, "10.00", 0)

	window := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	inWindow := window.Add(4 * time.Hour)
	outside := window.Add(-time.Hour)

	seedOrder(t, repo, product.ID, func(o *models.Order) {
		o.Status = enums.OrderStatusCompleted
		o.PaymentStatus = enums.PaymentStatusPaid
		o.PaidAt = &inWindow
	})
	seedOrder(t, repo, product.ID, func(o *models.Order) {
		o.Status = enums.OrderStatusCompleted
		o.PaymentStatus = enums.PaymentStatusPaid
		o.PaidAt = &outside
	})
	seedOrder(t, repo, product.ID, nil) // unpaid

	count, err := repo.CountSettledBetween(context.Background(), window, window.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepositorySavePersistsStatusAxes(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, "10.00", 0)
	order := seedOrder(t, repo, product.ID, nil)

	paidAt := time.Now().UTC()
	order.Status = enums.OrderStatusCancelled
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaidAt = &paidAt
	require.NoError(t, repo.Save(context.Background(), order))

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)

	// The two axes move independently: cancelled fulfillment with money held.
	assert.Equal(t, enums.OrderStatusCancelled, found.Status)
	assert.Equal(t, enums.PaymentStatusPaid, found.PaymentStatus)
	require.NotNil(t, found.PaidAt)
}
