package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kamishop/kamishop-backend/pkg/enums"
)

// Order records a purchase intent and its settlement outcome. The two status
// axes are independent: Status tracks fulfillment, PaymentStatus tracks money.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	Email         string              `gorm:"column:email;not null"`
	Quantity      int                 `gorm:"column:quantity;not null;default:1"`
	UnitPrice     decimal.Decimal     `gorm:"column:unit_price;type:numeric(10,2);not null"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Status        enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'unpaid'"`
	OutTradeNo    string              `gorm:"column:out_trade_no;not null;uniqueIndex"`
	TransactionID *string             `gorm:"column:transaction_id"`
	QRCodeURL     *string             `gorm:"column:qr_code_url"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	ExpiresAt     *time.Time          `gorm:"column:expires_at"`
	Product       *Product            `gorm:"foreignKey:ProductID"`
	Cards         []Card              `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the order's payment window elapsed at the given instant.
func (o Order) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}
