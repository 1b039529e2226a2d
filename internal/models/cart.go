package models

import "github.com/shopspring/decimal"

// CartItem is one pending selection of a buyer. A user has at most one line per
// (product, variant) pair.
type CartItem struct {
	Base
	UserID    string   `json:"user_id" gorm:"type:varchar(36);index;not null"`
	ProductID string   `json:"product_id" gorm:"type:varchar(36);index;not null"`
	VariantID *string  `json:"variant_id,omitempty" gorm:"type:varchar(36);index"`
	Quantity  int      `json:"quantity" gorm:"not null"`
	Product   *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Variant   *Variant `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
}

// CartLine is a cart item priced against the current catalog.
type CartLine struct {
	Item      CartItem        `json:"item"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartSummary is the priced view of a buyer's cart.
type CartSummary struct {
	Lines          []CartLine      `json:"lines"`
	Total          decimal.Decimal `json:"-"`
	TotalFormatted string          `json:"total"`
	ItemCount      int             `json:"item_count"`
}
