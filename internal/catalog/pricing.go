package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/kamishop/kamishop-backend/pkg/db/models"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

// Quote is the resolved price for a product at a specific quantity.
type Quote struct {
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	TierID    *string
}

// ResolvePrice picks the unit price for the requested quantity. Tiers are
// scanned in (display_order, min_quantity) order and the first tier covering
// the quantity wins; with no covering tier the product's flat price applies.
func ResolvePrice(product *models.Product, quantity int) (Quote, error) {
	if product == nil {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}
	if quantity < 1 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	unit := product.Price
	var tierID *string
	for i := range product.Tiers {
		if product.Tiers[i].Covers(quantity) {
			unit = product.Tiers[i].UnitPrice
			id := product.Tiers[i].ID.String()
			tierID = &id
			break
		}
	}

	return Quote{
		UnitPrice: unit,
		Total:     unit.Mul(decimal.NewFromInt(int64(quantity))),
		TierID:    tierID,
	}, nil
}
