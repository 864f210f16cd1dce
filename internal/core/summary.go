package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary holds the headline figures of the dashboard, all in kg CO2.
type Summary struct {
	Total     float64 `json:"total"`
	Count     int     `json:"count"`
	Average   float64 `json:"average"`
	LastMonth float64 `json:"lastMonth"`
}

// Summarize computes totals over records. LastMonth covers purchases dated on
// or after now minus one calendar month; undated records only count toward
// Total, Count and Average.
func Summarize(records []Purchase, now time.Time) Summary {
	monthAgo := now.AddDate(0, -1, 0)
	var total, recent decimal.Decimal
	for _, p := range records {
		v := p.CarbonEmissionValue.Decimal()
		total = total.Add(v)
		if t, err := ParsePurchaseDate(p.PurchaseDate, now.Location()); err == nil && !t.Before(monthAgo) {
			recent = recent.Add(v)
		}
	}

	s := Summary{
		Total:     round2(total),
		Count:     len(records),
		LastMonth: round2(recent),
	}
	if len(records) > 0 {
		s.Average = round2(total.Div(decimal.NewFromInt(int64(len(records)))))
	}
	return s
}
