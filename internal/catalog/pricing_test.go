package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kamishop/kamishop-backend/pkg/db/models"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

func intPtr(v int) *int { return &v }

func tieredProduct() *models.Product {
	return &models.Product{
		ID:    uuid.New(),
		Name:  "Gift Card",
		Price: decimal.RequireFromString("12.00"),
		Tiers: []models.PricingTier{
			{ID: uuid.New(), MinQuantity: 1, MaxQuantity: intPtr(5), UnitPrice: decimal.RequireFromString("10.00")},
			{ID: uuid.New(), MinQuantity: 6, MaxQuantity: nil, UnitPrice: decimal.RequireFromString("8.00")},
		},
	}
}

func TestResolvePriceTierBoundaries(t *testing.T) {
	product := tieredProduct()

	cases := []struct {
		quantity  int
		wantUnit  string
		wantTotal string
	}{
		{1, "10.00", "10.00"},
		{5, "10.00", "50.00"},
		{6, "8.00", "48.00"},
		{100, "8.00", "800.00"},
	}

	for _, tc := range cases {
		quote, err := ResolvePrice(product, tc.quantity)
		if err != nil {
			t.Fatalf("quantity %d: %v", tc.quantity, err)
		}
		if !quote.UnitPrice.Equal(decimal.RequireFromString(tc.wantUnit)) {
			t.Errorf("quantity %d: unit = %s, want %s", tc.quantity, quote.UnitPrice, tc.wantUnit)
		}
		if !quote.Total.Equal(decimal.RequireFromString(tc.wantTotal)) {
			t.Errorf("quantity %d: total = %s, want %s", tc.quantity, quote.Total, tc.wantTotal)
		}
		if quote.TierID == nil {
			t.Errorf("quantity %d: expected a matching tier", tc.quantity)
		}
	}
}

func TestResolvePriceFallsBackToFlatPrice(t *testing.T) {
	product := &models.Product{
		ID:    uuid.New(),
		Price: decimal.RequireFromString("12.00"),
	}

	quote, err := ResolvePrice(product, 3)
	if err != nil {
		t.Fatalf("ResolvePrice: %v", err)
	}
	if !quote.UnitPrice.Equal(decimal.RequireFromString("12.00")) {
		t.Errorf("unit = %s, want 12.00", quote.UnitPrice)
	}
	if quote.TierID != nil {
		t.Error("expected no tier for flat price")
	}
}

func TestResolvePriceFirstMatchWinsOnOverlap(t *testing.T) {
	product := &models.Product{
		ID:    uuid.New(),
		Price: decimal.RequireFromString("12.00"),
		Tiers: []models.PricingTier{
			{ID: uuid.New(), MinQuantity: 1, MaxQuantity: intPtr(10), UnitPrice: decimal.RequireFromString("9.00")},
			{ID: uuid.New(), MinQuantity: 5, MaxQuantity: intPtr(10), UnitPrice: decimal.RequireFromString("7.00")},
		},
	}

	quote, err := ResolvePrice(product, 7)
	if err != nil {
		t.Fatalf("ResolvePrice: %v", err)
	}
	if !quote.UnitPrice.Equal(decimal.RequireFromString("9.00")) {
		t.Errorf("overlapping tiers: unit = %s, want first match 9.00", quote.UnitPrice)
	}
}

func TestResolvePriceGapFallsThrough(t *testing.T) {
	product := &models.Product{
		ID:    uuid.New(),
		Price: decimal.RequireFromString("12.00"),
		Tiers: []models.PricingTier{
			{ID: uuid.New(), MinQuantity: 10, MaxQuantity: nil, UnitPrice: decimal.RequireFromString("5.00")},
		},
	}

	quote, err := ResolvePrice(product, 2)
	if err != nil {
		t.Fatalf("ResolvePrice: %v", err)
	}
	if !quote.UnitPrice.Equal(decimal.RequireFromString("12.00")) {
		t.Errorf("quantity below all tiers: unit = %s, want flat 12.00", quote.UnitPrice)
	}
}

func TestResolvePriceRejectsZeroQuantity(t *testing.T) {
	_, err := ResolvePrice(tieredProduct(), 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}
