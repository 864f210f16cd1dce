package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Ground DeliveryMode = "Ground"
	Air    DeliveryMode = "Air"
	Sea    DeliveryMode = "Sea"
)

const (
	Electronics Category = "Electronics"
	Food        Category = "Food"
	Clothing    Category = "Clothing"
	Home        Category = "Home"
	Travel      Category = "Travel"
	Other       Category = "Other"
)

type (
	DeliveryMode string

	// Category is a free-form label. The constants above are the values
	// offered when logging a purchase; legacy records may carry anything.
	Category string

	// Purchase is a record as returned by the purchase API.
	Purchase struct {
		ID                  string       `json:"PurchaseId"`
		UserID              string       `json:"UserId,omitempty"`
		ProductName         string       `json:"ProductName"`
		PurchaseDate        string       `json:"PurchaseDate"`
		Weight              Quantity     `json:"Weight"`
		ShippingDistance    Quantity     `json:"ShippingDistance"`
		DeliveryMode        DeliveryMode `json:"DeliveryMode,omitempty"`
		Category            Category     `json:"Category,omitempty"`
		CarbonEmissionValue Quantity     `json:"CarbonEmissionValue"`
	}

	// PurchaseInput is what a user submits when logging a purchase.
	PurchaseInput struct {
		ProductName      string
		Weight           float64 // kg
		ShippingDistance float64 // km
		DeliveryMode     DeliveryMode
		Category         Category
	}
)

var (
	ErrEmptyProductName    = errors.New("empty product name")
	ErrInvalidWeight       = errors.New("invalid weight")
	ErrInvalidDistance     = errors.New("invalid shipping distance")
	ErrInvalidDeliveryMode = errors.New("invalid delivery mode")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidDate         = errors.New("invalid purchase date")
)

// Categories lists the labels a user can pick, in display order.
func Categories() []Category {
	return []Category{Electronics, Food, Clothing, Home, Travel, Other}
}

// DeliveryModes lists the supported delivery modes.
func DeliveryModes() []DeliveryMode {
	return []DeliveryMode{Ground, Air, Sea}
}

// Mode returns the delivery mode, defaulting to Ground when absent.
func (m DeliveryMode) Mode() DeliveryMode {
	v := DeliveryMode(strings.TrimSpace(string(m)))
	if v == "" {
		return Ground
	}
	return v
}

func (m DeliveryMode) Valid() bool {
	switch m {
	case Ground, Air, Sea:
		return true
	}
	return false
}

// Label returns the category label, defaulting to Other when blank.
func (c Category) Label() Category {
	v := Category(strings.TrimSpace(string(c)))
	if v == "" {
		return Other
	}
	return v
}

// Known reports whether c is one of the selectable categories.
func (c Category) Known() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// Emission returns the record's emission value, 0 when missing or unparsable.
func (p Purchase) Emission() float64 {
	return p.CarbonEmissionValue.Float()
}

// Date parses PurchaseDate; zone-less timestamps are read in loc.
func (p Purchase) Date(loc *time.Location) (time.Time, error) {
	return ParsePurchaseDate(p.PurchaseDate, loc)
}

func (in PurchaseInput) Validate() error {
	name := strings.TrimSpace(in.ProductName)
	if name == "" {
		return ErrEmptyProductName
	}
	if len(name) > 200 {
		return errors.New("product name too long (max 200 characters)")
	}
	if in.Weight <= 0 {
		return ErrInvalidWeight
	}
	if in.ShippingDistance <= 0 {
		return ErrInvalidDistance
	}
	if !in.DeliveryMode.Mode().Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDeliveryMode, in.DeliveryMode)
	}
	if !in.Category.Label().Known() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}
	return nil
}

// Normalized returns a copy with defaults applied and the name trimmed.
func (in PurchaseInput) Normalized() PurchaseInput {
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.DeliveryMode = in.DeliveryMode.Mode()
	in.Category = in.Category.Label()
	return in
}

// zoneless layouts as written by the purchase API (Python isoformat) and by forms.
var zonelessDateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParsePurchaseDate accepts RFC 3339, zone-less ISO timestamps and plain dates.
// Zone-less values are interpreted in loc; the result is always in loc.
func ParsePurchaseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range zonelessDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FormatPurchaseDate renders t the way the purchase API stores dates.
func FormatPurchaseDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}
