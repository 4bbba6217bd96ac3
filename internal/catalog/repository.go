package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/enums"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

// Repository wires together product and card persistence helpers.
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

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDWithTiers loads the product with its pricing tiers in resolution order.
func (r *Repository) FindByIDWithTiers(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC, min_quantity ASC")
		}).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug loads an active product by its slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC, min_quantity ASC")
		}).
		First(&product, "slug = ?", slug).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActive lists storefront-visible products with their pricing tiers.
func (r *Repository) ListActive(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC, min_quantity ASC")
		}).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// CreateProduct inserts a new product row with any nested tiers. IDs are
// assigned here; the schema has no column defaults.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	for i := range product.Tiers {
		if product.Tiers[i].ID == uuid.Nil {
			product.Tiers[i].ID = uuid.New()
		}
		product.Tiers[i].ProductID = product.ID
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_products_slug") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug already taken")
		}
		return nil, err
	}
	return product, nil
}

// CountUnsold returns the number of available cards for a product.
func (r *Repository) CountUnsold(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Card{}).
		Where("product_id = ? AND status = ?", productID, enums.CardStatusUnsold).
		Count(&count).
		Error
	return count, err
}

// StockCounts returns remaining-card counts keyed by product id.
func (r *Repository) StockCounts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(productIDs))
	if len(productIDs) == 0 {
		return counts, nil
	}

	type stockRow struct {
		ProductID uuid.UUID
		Remaining int64
	}
	var rows []stockRow
	err := r.db.WithContext(ctx).
		Model(&models.Card{}).
		Select("product_id, COUNT(*) AS remaining").
		Where("product_id IN ? AND status = ?", productIDs, enums.CardStatusUnsold).
		Group("product_id").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ProductID] = row.Remaining
	}
	for _, id := range productIDs {
		if _, ok := counts[id]; !ok {
			counts[id] = 0
		}
	}
	return counts, nil
}

// ImportCards bulk-inserts unsold cards for the product.
func (r *Repository) ImportCards(ctx context.Context, productID uuid.UUID, contents []string) ([]models.Card, error) {
	if len(contents) == 0 {
		return nil, nil
	}

	cards := make([]models.Card, 0, len(contents))
	for _, content := range contents {
		cards = append(cards, models.Card{
			ID:        uuid.New(),
			ProductID: productID,
			Content:   content,
			Status:    enums.CardStatusUnsold,
		})
	}
	if err := r.db.WithContext(ctx).Create(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// CardsByOrder returns the cards allocated to an order.
func (r *Repository) CardsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Card, error) {
	var cards []models.Card
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&cards).
		Error
	return cards, err
}
