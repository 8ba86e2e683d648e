package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Availability is the stock state sent to the catalog.
type Availability string

const (
	InStock    Availability = "in stock"
	OutOfStock Availability = "out of stock"
)

// Condition is the product condition sent to the catalog.
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionRefurbished Condition = "refurbished"
	ConditionUsed        Condition = "used"
)

// ErrInvalidPrice is returned when a price cannot be coerced to a number.
var ErrInvalidPrice = errors.New("price is not a number")

// Item is a product record accepted from an input file.
// Accepted items are never mutated.
type Item struct {
	RetailerID   string       `json:"retailer_id" validate:"required"`
	Name         string       `json:"name" validate:"required"`
	Price        Price        `json:"price"`
	Description  string       `json:"description,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	Brand        string       `json:"brand,omitempty"`
	Category     string       `json:"category,omitempty"`
	URL          string       `json:"url,omitempty"`
	Availability Availability `json:"availability,omitempty"`
	Condition    Condition    `json:"condition,omitempty"`
	Currency     string       `json:"currency,omitempty"`
}

// Price holds a price in currency units (1500 means 1500 RUB, not cents).
// The JSON form it was read from is kept so the catalog receives the
// same representation the operator supplied.
type Price struct {
	raw   json.RawMessage
	value float64
}

// NewPrice builds a Price from a number.
func NewPrice(v float64) Price {
	return Price{raw: json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64)), value: v}
}

// ParsePrice coerces a JSON number or numeric string into a Price.
// Booleans, null, blank strings, NaN and infinities are rejected.
func ParsePrice(raw json.RawMessage) (Price, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Price{}, ErrInvalidPrice
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return Price{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
		}
		v, err := parseFinite(strings.TrimSpace(s))
		if err != nil {
			return Price{}, err
		}
		return Price{raw: json.RawMessage(trimmed), value: v}, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		v, err := parseFinite(trimmed)
		if err != nil {
			return Price{}, err
		}
		return Price{raw: json.RawMessage(trimmed), value: v}, nil
	default:
		return Price{}, fmt.Errorf("%w: %s", ErrInvalidPrice, trimmed)
	}
}

func parseFinite(s string) (float64, error) {
	if s == "" {
		return 0, ErrInvalidPrice
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return v, nil
}

// Float64 returns the numeric value of the price.
func (p Price) Float64() float64 {
	return p.value
}

// IsZero reports whether no price was set.
func (p Price) IsZero() bool {
	return len(p.raw) == 0
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	return p.raw, nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePrice(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
