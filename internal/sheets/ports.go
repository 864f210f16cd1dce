package sheets

import (
	"context"

	"carbontracker/internal/core"
)

// Ports for outbound adapters.
type (
	// PurchaseExporter mirrors synced purchases into a spreadsheet.
	PurchaseExporter interface {
		AppendPurchase(ctx context.Context, p core.Purchase) (rowRef string, err error)
	}
)
