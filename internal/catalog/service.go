package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kamishop/kamishop-backend/pkg/db/models"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

// Service exposes storefront catalog reads and card inventory management.
type Service interface {
	ListProducts(ctx context.Context) ([]ProductDTO, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	QuoteProduct(ctx context.Context, productID uuid.UUID, quantity int) (*models.Product, Quote, error)
	ImportCards(ctx context.Context, productID uuid.UUID, contents []string) (int, error)
}

// ProductDTO is the storefront view of a product.
type ProductDTO struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	Tags           []string        `json:"tags"`
	RemainingStock int64           `json:"remaining_stock"`
	Tiers          []TierDTO       `json:"tiers,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TierDTO is one quantity price break.
type TierDTO struct {
	MinQuantity int             `json:"min_quantity"`
	MaxQuantity *int            `json:"max_quantity,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type service struct {
	repo *Repository
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// ListProducts returns active products with remaining stock counts.
func (s *service) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.ID)
	}
	counts, err := s.repo.StockCounts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count product stock")
	}

	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, toProductDTO(&rows[i], counts[rows[i].ID]))
	}
	return dtos, nil
}

// GetProduct returns one product with stock, active or not.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByIDWithTiers(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	remaining, err := s.repo.CountUnsold(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count product stock")
	}

	dto := toProductDTO(product, remaining)
	return &dto, nil
}

// QuoteProduct resolves the unit price for the quantity against the product's tiers.
func (s *service) QuoteProduct(ctx context.Context, productID uuid.UUID, quantity int) (*models.Product, Quote, error) {
	product, err := s.repo.FindByIDWithTiers(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Quote{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, Quote{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, Quote{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	quote, err := ResolvePrice(product, quantity)
	if err != nil {
		return nil, Quote{}, err
	}
	return product, quote, nil
}

// ImportCards appends unsold cards to the product and returns the insert count.
func (s *service) ImportCards(ctx context.Context, productID uuid.UUID, contents []string) (int, error) {
	cleaned := make([]string, 0, len(contents))
	for _, content := range contents {
		if trimmed := strings.TrimSpace(content); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "no card contents provided")
	}

	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	created, err := s.repo.ImportCards(ctx, productID, cleaned)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "import cards")
	}
	return len(created), nil
}

func toProductDTO(product *models.Product, remaining int64) ProductDTO {
	tiers := make([]TierDTO, 0, len(product.Tiers))
	for _, tier := range product.Tiers {
		tiers = append(tiers, TierDTO{
			MinQuantity: tier.MinQuantity,
			MaxQuantity: tier.MaxQuantity,
			UnitPrice:   tier.UnitPrice,
		})
	}
	return ProductDTO{
		ID:             product.ID,
		Name:           product.Name,
		Slug:           product.Slug,
		Description:    product.Description,
		Price:          product.Price,
		Tags:           product.Tags,
		RemainingStock: remaining,
		Tiers:          tiers,
		CreatedAt:      product.CreatedAt,
	}
}
