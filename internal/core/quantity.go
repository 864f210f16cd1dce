// Package core provides the purchase domain and the pure aggregations that
// feed the dashboard.
//
// This file contains Quantity, the lenient numeric used for every measured
// field of a purchase record.
package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// emissionFactor is kg CO2 per kg·km, matching the purchase API.
var emissionFactor = decimal.RequireFromString("0.1")

// Quantity is a numeric field that tolerates legacy data.
//
// JSON numbers and numeric strings ("3.5") decode to a valid value. Null,
// empty strings and anything unparsable decode to an invalid Quantity that
// reads as 0. Decoding never fails.
type Quantity struct {
	value decimal.Decimal
	valid bool
}

// NewQuantity returns a valid Quantity holding f.
func NewQuantity(f float64) Quantity {
	return Quantity{value: decimal.NewFromFloat(f), valid: true}
}

// ParseQuantity parses s, returning an invalid Quantity when s is not a number.
func ParseQuantity(s string) Quantity {
	s = strings.TrimSpace(s)
	if s == "" {
		return Quantity{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}
	}
	return Quantity{value: d, valid: true}
}

// Valid reports whether the underlying value was a parsable number.
func (q Quantity) Valid() bool { return q.valid }

// Decimal returns the value, or zero when invalid.
func (q Quantity) Decimal() decimal.Decimal {
	if !q.valid {
		return decimal.Zero
	}
	return q.value
}

// Float returns the value as float64, or 0 when invalid.
func (q Quantity) Float() float64 {
	return q.Decimal().InexactFloat64()
}

// String renders the value with two decimals; invalid values render as "0.00".
func (q Quantity) String() string {
	return q.Decimal().StringFixed(2)
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*q = Quantity{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*q = ParseQuantity(s)
		return nil
	}
	*q = ParseQuantity(string(b))
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.valid {
		return []byte("null"), nil
	}
	return []byte(q.value.String()), nil
}

// EstimateEmission computes kg CO2 for a shipment: weight(kg) · distance(km) · 0.1.
func EstimateEmission(weight, distance float64) Quantity {
	v := decimal.NewFromFloat(weight).
		Mul(decimal.NewFromFloat(distance)).
		Mul(emissionFactor)
	return Quantity{value: v, valid: true}
}

// round2 rounds half away from zero to two decimals.
func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
