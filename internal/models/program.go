package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Category groups programs in the catalog and in sales reports
type Category string

const (
	CategoryMini   Category = "MINI"
	CategoryOther  Category = "OTHER"
	CategoryOnline Category = "ONLINE"
	CategoryBundle Category = "BUNDLE"
	CategoryFree   Category = "FREE"
)

const (
	// OnlinePrefix is prepended to online course titles in the catalog.
	OnlinePrefix = "Online: "
	// GeneralMembership is the program used when a registration names none.
	GeneralMembership = "General Member"
)

// ParseCategory maps a stored label to a Category. Unknown labels are OTHER.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryMini, CategoryOther, CategoryOnline, CategoryBundle, CategoryFree:
		return c
	}
	return CategoryOther
}

// Program is a purchasable catalog item
type Program struct {
	Title      string          `json:"title" db:"title"`
	Category   Category        `json:"category" db:"category"`
	PriceLabel string          `json:"price_label" db:"price_label"`
	Price      decimal.Decimal `json:"price"`
}

var (
	priceNoise    = regexp.MustCompile(`[^0-9.]`)
	leadingNumber = regexp.MustCompile(`^(\d+(\.\d+)?|\.\d+)`)
)

// ErrUnpriced marks a non-empty price label with no number in it.
var ErrUnpriced = errors.New("price label has no amount")

// ParsePrice extracts a price from a free-text label such as "$35" or "35.50 USD".
// Only the leading number counts, so "$1.500.00" is 1.50. An empty label or
// one saying "free" is free; any other label with no number is ErrUnpriced.
func ParsePrice(label string) (decimal.Decimal, error) {
	if strings.TrimSpace(label) == "" {
		return decimal.Zero, nil
	}
	number := leadingNumber.FindString(priceNoise.ReplaceAllString(label, ""))
	if number == "" {
		if strings.Contains(strings.ToLower(label), "free") {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnpriced, label)
	}
	d, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnpriced, label)
	}
	return d.Round(2), nil
}
