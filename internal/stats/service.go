package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kamishop/kamishop-backend/pkg/enums"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
)

// DailyReport is the aggregated sales summary for one day.
type DailyReport struct {
	Date         time.Time
	OrderCount   int64
	Revenue      decimal.Decimal
	ProductSales []ProductSales
	LowStock     []LowStockProduct
}

// ProductSales is one product's share of the daily report.
type ProductSales struct {
	ProductName string
	Quantity    int64
	Revenue     decimal.Decimal
}

// LowStockProduct flags a product running out of cards.
type LowStockProduct struct {
	ProductName string
	Remaining   int64
}

// Service aggregates settlement activity for reporting.
type Service struct {
	db                 *gorm.DB
	stockWarnThreshold int64
}

// NewService constructs the stats service.
func NewService(db *gorm.DB, stockWarnThreshold int) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if stockWarnThreshold < 0 {
		stockWarnThreshold = 0
	}
	return &Service{db: db, stockWarnThreshold: int64(stockWarnThreshold)}, nil
}

// BuildDailyReport aggregates paid orders for the day containing the given
// instant (UTC midnight to midnight) plus current low-stock warnings.
func (s *Service) BuildDailyReport(ctx context.Context, day time.Time) (*DailyReport, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	report := &DailyReport{Date: from, Revenue: decimal.Zero}

	type totalsRow struct {
		OrderCount int64
		Revenue    decimal.Decimal
	}
	var totals totalsRow
	err := s.db.WithContext(ctx).
		Table("orders").
		Select("COUNT(*) AS order_count, COALESCE(SUM(total_amount), 0) AS revenue").
		Where("payment_status = ? AND paid_at >= ? AND paid_at < ?", enums.PaymentStatusPaid, from, to).
		Scan(&totals).
		Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate daily totals")
	}
	report.OrderCount = totals.OrderCount
	report.Revenue = totals.Revenue

	type productRow struct {
		ProductName string
		Quantity    int64
		Revenue     decimal.Decimal
	}
	var productRows []productRow
	err = s.db.WithContext(ctx).
		Table("orders").
		Select("products.name AS product_name, COALESCE(SUM(orders.quantity), 0) AS quantity, COALESCE(SUM(orders.total_amount), 0) AS revenue").
		Joins("JOIN products ON products.id = orders.product_id").
		Where("orders.payment_status = ? AND orders.paid_at >= ? AND orders.paid_at < ?", enums.PaymentStatusPaid, from, to).
		Group("products.name").
		Order("revenue DESC").
		Scan(&productRows).
		Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate product sales")
	}
	for _, row := range productRows {
		report.ProductSales = append(report.ProductSales, ProductSales(row))
	}

	lowStock, err := s.lowStock(ctx)
	if err != nil {
		return nil, err
	}
	report.LowStock = lowStock

	return report, nil
}

// lowStock lists active products whose unsold-card count fell to the warning
// threshold or below.
func (s *Service) lowStock(ctx context.Context) ([]LowStockProduct, error) {
	type stockRow struct {
		ProductName string
		Remaining   int64
	}
	var rows []stockRow
	err := s.db.WithContext(ctx).
		Table("products").
		Select("products.name AS product_name, COALESCE(SUM(CASE WHEN cards.status = ? THEN 1 ELSE 0 END), 0) AS remaining", enums.CardStatusUnsold).
		Joins("LEFT JOIN cards ON cards.product_id = products.id").
		Where("products.is_active = ?", true).
		Group("products.name").
		Having("COALESCE(SUM(CASE WHEN cards.status = ? THEN 1 ELSE 0 END), 0) <= ?", enums.CardStatusUnsold, s.stockWarnThreshold).
		Order("remaining ASC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock products")
	}

	out := make([]LowStockProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, LowStockProduct(row))
	}
	return out, nil
}
