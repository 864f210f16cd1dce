package google

import (
	"strings"
	"time"

	"carbontracker/internal/core"
)

// purchaseRow lays a purchase out as the A:H columns:
// Date, Product, Category, Delivery, Weight, Distance, Emission, PurchaseId.
// Missing numbers are written as empty cells.
func purchaseRow(p core.Purchase, loc *time.Location) []any {
	date := strings.TrimSpace(p.PurchaseDate)
	if t, err := p.Date(loc); err == nil {
		date = t.Format("2006-01-02")
	}
	return []any{
		date,
		strings.TrimSpace(p.ProductName),
		string(p.Category.Label()),
		string(p.DeliveryMode.Mode()),
		cell(p.Weight),
		cell(p.ShippingDistance),
		cell(p.CarbonEmissionValue),
		p.ID,
	}
}

func cell(q core.Quantity) any {
	if !q.Valid() {
		return ""
	}
	return q.Float()
}

// quoteSheet wraps a sheet name in single quotes for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
