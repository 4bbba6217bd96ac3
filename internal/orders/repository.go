package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
)

// Repository provides order persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new order row.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads an order with its product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Product").
		First(&order, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByOutTradeNo loads an order by its merchant trade number.
func (r *Repository) FindByOutTradeNo(ctx context.Context, outTradeNo string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Product").
		First(&order, "out_trade_no = ?", outTradeNo).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate loads and row-locks an order. Callers must be inside a
// transaction; the lock is held until that transaction ends.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := pkgdb.LockForUpdate(r.db.WithContext(ctx)).
		First(&order, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByOutTradeNoForUpdate loads and row-locks an order by trade number.
func (r *Repository) FindByOutTradeNoForUpdate(ctx context.Context, outTradeNo string) (*models.Order, error) {
	var order models.Order
	err := pkgdb.LockForUpdate(r.db.WithContext(ctx)).
		First(&order, "out_trade_no = ?", outTradeNo).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Save persists all fields of an existing order.
func (r *Repository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// ListExpiredPending returns pending unpaid orders whose payment window closed
// before the cutoff, oldest first.
func (r *Repository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND expires_at IS NOT NULL AND expires_at < ?",
			enums.OrderStatusPending, enums.PaymentStatusUnpaid, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	return rows, err
}

// CountSettledBetween returns paid orders whose settlement landed inside the window.
func (r *Repository) CountSettledBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_status = ? AND paid_at >= ? AND paid_at < ?", enums.PaymentStatusPaid, from, to).
		Count(&count).
		Error
	return count, err
}
