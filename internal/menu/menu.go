package menu

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Size is a priced configuration of a menu item (e.g. "Regular", "Large").
// Price is always resolved through a size, never on the item directly.
type Size struct {
	ID        uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	RecipeID  string
}

// MenuItem is a dish as presented in the catalog. Read-only to the order
// composer; created and edited elsewhere.
type MenuItem struct {
	ID           uuid.UUID
	Name         string
	Description  string
	CategoryID   uuid.UUID
	CategoryName string
	Images       []string
	InStock      bool
	Sizes        []Size
}

// Category groups menu items for browsing.
type Category struct {
	ID   uuid.UUID
	Name string
}

// SizeByName returns the size with the given name, if the item has one.
func (m *MenuItem) SizeByName(name string) (Size, bool) {
	for _, s := range m.Sizes {
		if s.Name == name {
			return s, true
		}
	}
	return Size{}, false
}

// Placeholder builds a synthetic item for an order line whose dish no longer
// exists in the catalog, so the line still renders with a name and price.
// The zero item ID marks it as not submittable.
func Placeholder(name, sizeName string, unitPrice decimal.Decimal, image string) *MenuItem {
	item := &MenuItem{
		Name:    name,
		InStock: false,
		Sizes: []Size{
			{Name: sizeName, UnitPrice: unitPrice},
		},
	}
	if image != "" {
		item.Images = []string{image}
	}
	return item
}

// IsPlaceholder reports whether the item was synthesized by Placeholder
// rather than loaded from the catalog.
func (m *MenuItem) IsPlaceholder() bool {
	return m.ID == uuid.Nil
}
