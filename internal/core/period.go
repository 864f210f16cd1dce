package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// invalidPeriodKey marks records whose date could not be parsed.
const invalidPeriodKey = "invalid-date"

// Granularity selects the calendar period used to bucket records.
type Granularity string

// ParseGranularity parses a query value; empty means daily.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if g == "" {
		return Daily, nil
	}
	if !g.Valid() {
		return "", fmt.Errorf("invalid granularity %q: must be one of daily, weekly, monthly", s)
	}
	return g, nil
}

func (g Granularity) Valid() bool {
	switch g {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// periodStart returns midnight of the first day of t's period in t's location.
func (g Granularity) periodStart(t time.Time) time.Time {
	y, m, d := t.Date()
	switch g {
	case Weekly:
		// ISO weeks start on Monday.
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

// periodKey returns YYYY-MM-DD, YYYY-Www (ISO 8601) or YYYY-MM.
func (g Granularity) periodKey(t time.Time) string {
	switch g {
	case Weekly:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case Monthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// periodOf resolves a raw purchase date to its bucket key and period start.
func periodOf(raw string, g Granularity, loc *time.Location) (string, time.Time) {
	t, err := ParsePurchaseDate(raw, loc)
	if err != nil {
		return invalidPeriodKey, time.Time{}
	}
	return g.periodKey(t), g.periodStart(t)
}
