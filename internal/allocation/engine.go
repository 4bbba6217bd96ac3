package allocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

// Engine claims unsold cards for paid orders. Claims are all-or-nothing: an
// order either receives its full quantity or no cards change state.
type Engine struct{}

// NewEngine constructs the allocation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Claim marks quantity unsold cards of the product as sold to the order.
// It must run inside the caller's transaction; candidate rows are locked
// with SKIP LOCKED so concurrent settlements never block on each other.
func (e *Engine) Claim(ctx context.Context, tx *gorm.DB, productID, orderID uuid.UUID, quantity int) ([]models.Card, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "allocation requires a transaction")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var cards []models.Card
	err := pkgdb.LockSkipLocked(tx.WithContext(ctx)).
		Where("product_id = ? AND status = ?", productID, enums.CardStatusUnsold).
		Order("created_at ASC").
		Limit(quantity).
		Find(&cards).
		Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "select claimable cards")
	}

	if len(cards) < quantity {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock,
			fmt.Sprintf("product has %d cards left, %d requested", len(cards), quantity))
	}

	ids := make([]uuid.UUID, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
	}

	res := tx.WithContext(ctx).
		Model(&models.Card{}).
		Where("id IN ? AND status = ?", ids, enums.CardStatusUnsold).
		Updates(map[string]any{
			"status":   enums.CardStatusSold,
			"order_id": orderID,
		})
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "mark cards sold")
	}
	if res.RowsAffected != int64(quantity) {
		// another transaction won a subset of the rows between select and update
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "card claim lost a concurrent race")
	}

	for i := range cards {
		cards[i].Status = enums.CardStatusSold
		id := orderID
		cards[i].OrderID = &id
	}
	return cards, nil
}

// Remaining counts the product's unsold cards through the given handle,
// typically the settlement transaction right after a claim.
func (e *Engine) Remaining(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Card{}).
		Where("product_id = ? AND status = ?", productID, enums.CardStatusUnsold).
		Count(&count).
		Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count remaining cards")
	}
	return int(count), nil
}
