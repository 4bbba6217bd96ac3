package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

func TestCountUnsoldIgnoresSoldCards(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateProduct(t, db, "10.00")
	cards := mustImportCards(t, db, product.ID, 5)

	orderID := uuid.New()
	if err := db.Model(&cards[0]).Updates(map[string]any{
		"status":   enums.CardStatusSold,
		"order_id": orderID,
	}).Error; err != nil {
		t.Fatalf("mark card sold: %v", err)
	}

	count, err := repo.CountUnsold(ctx, product.ID)
	if err != nil {
		t.Fatalf("CountUnsold: %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
}

func TestStockCountsReportsZeroForEmptyProducts(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	stocked := mustCreateProduct(t, db, "10.00")
	empty := mustCreateProduct(t, db, "5.00")
	mustImportCards(t, db, stocked.ID, 3)

	counts, err := repo.StockCounts(ctx, []uuid.UUID{stocked.ID, empty.ID})
	if err != nil {
		t.Fatalf("StockCounts: %v", err)
	}
	if counts[stocked.ID] != 3 {
		t.Errorf("stocked count = %d, want 3", counts[stocked.ID])
	}
	if counts[empty.ID] != 0 {
		t.Errorf("empty count = %d, want 0", counts[empty.ID])
	}
}

func TestImportCardsCreatesUnsoldRows(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateProduct(t, db, "10.00")

	created, err := repo.ImportCards(ctx, product.ID, []string{"AAA-111", "BBB-222"})
	if err != nil {
		t.Fatalf("ImportCards: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d cards, want 2", len(created))
	}
	for _, card := range created {
		if card.Status != enums.CardStatusUnsold {
			t.Errorf("card %s status = %s, want unsold", card.ID, card.Status)
		}
		if card.OrderID != nil {
			t.Errorf("card %s should have no order", card.ID)
		}
	}

	count, err := repo.CountUnsold(ctx, product.ID)
	if err != nil {
		t.Fatalf("CountUnsold: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestCreateProductDuplicateSlugConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := &models.Product{
		ID:       uuid.New(),
		Name:     "Starter Pack",
		Slug:     "starter-pack",
		Price:    decimal.RequireFromString("5.00"),
		IsActive: true,
	}
	if _, err := repo.CreateProduct(ctx, first); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	dup := &models.Product{
		ID:       uuid.New(),
		Name:     "Starter Pack Again",
		Slug:     "starter-pack",
		Price:    decimal.RequireFromString("6.00"),
		IsActive: true,
	}
	_, err := repo.CreateProduct(ctx, dup)
	if err == nil {
		t.Fatal("expected duplicate slug to fail")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCreateProductAssignsIDsAndStoresTags(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := &models.Product{
		Name:     "Season Pass",
		Slug:     "season-pass",
		Price:    decimal.RequireFromString("30.00"),
		Tags:     []string{"featured", "season"},
		IsActive: true,
		Tiers: []models.PricingTier{
			{MinQuantity: 1, UnitPrice: decimal.RequireFromString("30.00")},
		},
	}
	created, err := repo.CreateProduct(ctx, product)
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("product id not assigned")
	}
	if len(created.Tiers) != 1 || created.Tiers[0].ID == uuid.Nil {
		t.Fatalf("tier id not assigned: %+v", created.Tiers)
	}

	var loaded models.Product
	if err := db.Preload("Tiers").First(&loaded, "id = ?", created.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if len(loaded.Tags) != 2 || loaded.Tags[0] != "featured" {
		t.Fatalf("tags = %v, want [featured season]", loaded.Tags)
	}
	if loaded.Tiers[0].ProductID != created.ID {
		t.Errorf("tier product id = %s, want %s", loaded.Tiers[0].ProductID, created.ID)
	}
}
