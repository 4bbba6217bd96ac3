package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable digital good backed by pre-provisioned cards.
// IDs are assigned in code so the schema carries no column defaults that
// only one database dialect understands.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Slug        string          `gorm:"column:slug;not null;uniqueIndex"`
	Description string          `gorm:"column:description;not null;default:''"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Tags        []string        `gorm:"column:tags;type:jsonb;serializer:json"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	Tiers       []PricingTier   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Cards       []Card          `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
