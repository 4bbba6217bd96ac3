package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.PricingTier{}, &models.Card{}); err != nil {
		t.Fatalf("migrate catalog tables: %v", err)
	}
	return db
}

func mustCreateProduct(t *testing.T, db *gorm.DB, price string) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		Name:     "Test Card Pack",
		Slug:     "test-card-pack-" + uuid.NewString()[:8],
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func mustImportCards(t *testing.T, db *gorm.DB, productID uuid.UUID, count int) []models.Card {
	t.Helper()
	cards := make([]models.Card, 0, count)
	for i := 0; i < count; i++ {
		cards = append(cards, models.Card{
			ID:        uuid.New(),
			ProductID: productID,
			Content:   "CODE-" + uuid.NewString()[:8],
			Status:    enums.CardStatusUnsold,
		})
	}
	if err := db.Create(&cards).Error; err != nil {
		t.Fatalf("seed cards: %v", err)
	}
	return cards
}
