package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TimeBucket is the emission total for one calendar period.
type TimeBucket struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	Total float64   `json:"total"`
}

// CategoryTotal is the emission total for one category label.
type CategoryTotal struct {
	Label string  `json:"label"`
	Total float64 `json:"total"`
}

// AggregateByPeriod buckets records by g in the local time zone.
// See AggregateByPeriodIn.
func AggregateByPeriod(records []Purchase, g Granularity) []TimeBucket {
	return AggregateByPeriodIn(records, g, time.Local)
}

// AggregateByPeriodIn sums emissions per calendar period of g, reading dates
// in loc. Buckets come out ascending by period start with totals rounded to
// two decimals. Records with unparsable dates are left out; CountUndated
// reports how many. An unknown granularity buckets daily.
func AggregateByPeriodIn(records []Purchase, g Granularity, loc *time.Location) []TimeBucket {
	if loc == nil {
		loc = time.Local
	}
	type acc struct {
		start time.Time
		sum   decimal.Decimal
	}
	byKey := make(map[string]*acc)
	for _, p := range records {
		key, start := periodOf(p.PurchaseDate, g, loc)
		if key == invalidPeriodKey {
			continue
		}
		a, ok := byKey[key]
		if !ok {
			a = &acc{start: start}
			byKey[key] = a
		}
		a.sum = a.sum.Add(p.CarbonEmissionValue.Decimal())
	}

	out := make([]TimeBucket, 0, len(byKey))
	for key, a := range byKey {
		out = append(out, TimeBucket{Key: key, Start: a.start, Total: round2(a.sum)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// CountUndated returns how many records have a purchase date that cannot be
// parsed and are therefore missing from AggregateByPeriodIn.
func CountUndated(records []Purchase, loc *time.Location) int {
	n := 0
	for _, p := range records {
		if _, err := ParsePurchaseDate(p.PurchaseDate, loc); err != nil {
			n++
		}
	}
	return n
}

// AggregateByCategory sums emissions per category label (blank → Other),
// rounding to two decimals and dropping labels whose rounded total is zero.
// Labels appear in first-seen order; callers must not rely on it.
func AggregateByCategory(records []Purchase) []CategoryTotal {
	sums := make(map[Category]decimal.Decimal)
	order := make([]Category, 0)
	for _, p := range records {
		label := p.Category.Label()
		if _, seen := sums[label]; !seen {
			order = append(order, label)
		}
		sums[label] = sums[label].Add(p.CarbonEmissionValue.Decimal())
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, label := range order {
		total := round2(sums[label])
		if total == 0 {
			continue
		}
		out = append(out, CategoryTotal{Label: string(label), Total: total})
	}
	return out
}

// SortByTotalDesc returns a copy ordered for display: largest total first,
// ties broken by label.
func SortByTotalDesc(in []CategoryTotal) []CategoryTotal {
	out := append([]CategoryTotal(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// SortByDateDesc returns a copy with the most recent purchase first.
// Undated records sink to the end in their original order.
func SortByDateDesc(records []Purchase, loc *time.Location) []Purchase {
	type dated struct {
		p  Purchase
		t  time.Time
		ok bool
	}
	tmp := make([]dated, len(records))
	for i, p := range records {
		t, err := ParsePurchaseDate(p.PurchaseDate, loc)
		tmp[i] = dated{p: p, t: t, ok: err == nil}
	}
	sort.SliceStable(tmp, func(i, j int) bool {
		if tmp[i].ok != tmp[j].ok {
			return tmp[i].ok
		}
		return tmp[i].t.After(tmp[j].t)
	})
	out := make([]Purchase, len(tmp))
	for i, d := range tmp {
		out[i] = d.p
	}
	return out
}
