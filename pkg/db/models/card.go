package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kamishop/kamishop-backend/pkg/enums"
)

// Card is one sellable unit of secret content (activation code, license key,
// download link). A card is sold exactly once; OrderID is set atomically with
// the status flip and never cleared afterwards.
type Card struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index:idx_cards_product_status"`
	Content   string           `gorm:"column:content;not null"`
	Status    enums.CardStatus `gorm:"column:status;not null;default:'unsold';index:idx_cards_product_status"`
	OrderID   *uuid.UUID       `gorm:"column:order_id;type:uuid;index"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}
