package notify

import (
	"fmt"
	"strings"

	"github.com/kamishop/kamishop-backend/internal/stats"
	"github.com/kamishop/kamishop-backend/pkg/db/models"
	"github.com/kamishop/kamishop-backend/pkg/feishu"
)

func orderAlertCard(order *models.Order, product *models.Product, siteURL string, remainingStock, lowStockLimit int) feishu.Card {
	productName := "unknown product"
	if product != nil {
		productName = product.Name
	}

	body := fmt.Sprintf(
		"**Product:** %s\n**Quantity:** %d\n**Amount:** %s\n**Buyer:** %s\n**Trade No:** %s\n**Remaining stock:** %d",
		productName, order.Quantity, order.TotalAmount.StringFixed(2), order.Email, order.OutTradeNo, remainingStock,
	)

	title := "New order settled"
	template := "blue"
	if remainingStock <= lowStockLimit {
		title = "New order settled, stock running low"
		template = "orange"
	}

	elements := []feishu.Element{feishu.MarkdownBlock(body)}
	if siteURL != "" {
		elements = append(elements,
			feishu.Divider(),
			feishu.LinkButton("View order", fmt.Sprintf("%s/orders/%s", strings.TrimRight(siteURL, "/"), order.ID)),
		)
	}

	return feishu.Card{
		Header: feishu.Header{
			Title:    feishu.Text{Tag: "plain_text", Content: title},
			Template: template,
		},
		Elements: elements,
	}
}

func allocationFailedCard(order *models.Order, product *models.Product) feishu.Card {
	productName := "unknown product"
	if product != nil {
		productName = product.Name
	}

	body := fmt.Sprintf(
		"**Product:** %s\n**Quantity:** %d\n**Amount:** %s\n**Trade No:** %s\n\n"+
			"Payment received but no cards were available. The order was cancelled; refund the buyer manually.",
		productName, order.Quantity, order.TotalAmount.StringFixed(2), order.OutTradeNo,
	)

	return feishu.Card{
		Header: feishu.Header{
			Title:    feishu.Text{Tag: "plain_text", Content: "Paid order out of stock"},
			Template: "red",
		},
		Elements: []feishu.Element{feishu.MarkdownBlock(body)},
	}
}

func dailyReportCard(report stats.DailyReport) feishu.Card {
	var b strings.Builder
	fmt.Fprintf(&b, "**Orders settled:** %d\n**Revenue:** %s", report.OrderCount, report.Revenue.StringFixed(2))

	elements := []feishu.Element{feishu.MarkdownBlock(b.String())}

	if len(report.ProductSales) > 0 {
		var lines []string
		for _, row := range report.ProductSales {
			lines = append(lines, fmt.Sprintf("- %s: %d sold, %s", row.ProductName, row.Quantity, row.Revenue.StringFixed(2)))
		}
		elements = append(elements, feishu.Divider(), feishu.MarkdownBlock("**By product**\n"+strings.Join(lines, "\n")))
	}

	if len(report.LowStock) > 0 {
		var lines []string
		for _, row := range report.LowStock {
			lines = append(lines, fmt.Sprintf("- %s: %d cards left", row.ProductName, row.Remaining))
		}
		elements = append(elements, feishu.Divider(), feishu.MarkdownBlock("**Low stock**\n"+strings.Join(lines, "\n")))
	}

	template := "blue"
	if len(report.LowStock) > 0 {
		template = "red"
	}

	return feishu.Card{
		Header: feishu.Header{
			Title: feishu.Text{
				Tag:     "plain_text",
				Content: "Daily sales report " + report.Date.Format("2006-01-02"),
			},
			Template: template,
		},
		Elements: elements,
	}
}
