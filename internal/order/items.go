package order

import "errors"

// AddonKind classifies an addon on a line item.
type AddonKind string

const (
	// AddonIncluded is part of the product and always costs zero.
	AddonIncluded AddonKind = "included"
	// AddonExtra is charged at the price fixed when it was added.
	AddonExtra AddonKind = "extra"
)

// Addon is a modifier attached to a line item.
type Addon struct {
	AddonID   string    `json:"addon_id"`
	Kind      AddonKind `json:"kind"`
	Name      string    `json:"name"`
	UnitPrice Money     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

// NewIncludedAddon returns an included addon. Its price is always zero.
func NewIncludedAddon(id, name string, qty int) Addon {
	return Addon{AddonID: id, Kind: AddonIncluded, Name: name, Quantity: qty}
}

// NewExtraAddon returns an extra addon priced at add time.
//
// The price is the override for categoryID when one exists, otherwise
// defaultPrice. It is never recomputed afterwards.
func NewExtraAddon(id, name string, qty int, defaultPrice Money, categoryID string, overrides map[string]Money) Addon {
	price := defaultPrice
	if p, ok := overrides[categoryID]; ok {
		price = p
	}
	return Addon{AddonID: id, Kind: AddonExtra, Name: name, UnitPrice: price, Quantity: qty}
}

// Normalize enforces the persisted form: included addons cost zero.
func (a Addon) Normalize() Addon {
	if a.Kind == AddonIncluded {
		a.UnitPrice = 0
	}
	return a
}

// LineItem is one product line on an order.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice Money   `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Note      string  `json:"note,omitempty"`
	Addons    []Addon `json:"addons,omitempty"`
}

// Validate checks the line item and its addons.
func (li LineItem) Validate() error {
	if li.ProductID == "" {
		return errors.New("product id is required")
	}
	if li.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if li.UnitPrice < 0 {
		return errors.New("unit price cannot be negative")
	}
	for _, a := range li.Addons {
		if a.Kind != AddonIncluded && a.Kind != AddonExtra {
			return errors.New("addon kind must be included or extra")
		}
		if a.Quantity <= 0 {
			return errors.New("addon quantity must be positive")
		}
	}
	return nil
}

// Subtotal returns the line total including extra addons.
// Addon quantities are per unit of the product.
func (li LineItem) Subtotal() Money {
	unit := li.UnitPrice
	for _, a := range li.Addons {
		a = a.Normalize()
		unit += a.UnitPrice * Money(a.Quantity)
	}
	return unit * Money(li.Quantity)
}

// NormalizeItems returns a copy of items with every addon normalized.
func NormalizeItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		if len(it.Addons) > 0 {
			addons := make([]Addon, len(it.Addons))
			for j, a := range it.Addons {
				addons[j] = a.Normalize()
			}
			it.Addons = addons
		}
		out[i] = it
	}
	return out
}

// Totals computes the subtotal and total for items after discount.
// The total never drops below zero.
func Totals(items []LineItem, discount Money) (subtotal, total Money) {
	for _, it := range items {
		subtotal += it.Subtotal()
	}
	total = subtotal - discount
	if total < 0 {
		total = 0
	}
	return subtotal, total
}
