package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products for browsing.
type Category struct {
	Base
	Name string `json:"name" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=2,max=100"`
	Slug string `json:"slug" gorm:"uniqueIndex;type:varchar(120)" validate:"required,min=2,max=120"`
}

// Product represents a product in the store.
type Product struct {
	Base
	SellerID    string          `json:"seller_id" gorm:"type:varchar(36);index;not null"`
	CategoryID  *string         `json:"category_id,omitempty" gorm:"type:varchar(36);index"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null"`
	Description string          `json:"description" gorm:"type:varchar(500)"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null;default:0"`
	Variants    []Variant       `json:"variants,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}

// Variant is a purchasable sub-option of a product with its own stock and an
// optional price override.
type Variant struct {
	Base
	ProductID string           `json:"product_id" gorm:"type:varchar(36);index;not null"`
	Name      string           `json:"name" gorm:"type:varchar(100);not null"`
	SKU       string           `json:"sku,omitempty" gorm:"type:varchar(64)"`
	Price     *decimal.Decimal `json:"price,omitempty" gorm:"type:numeric(12,2)"`
	Stock     int              `json:"stock" gorm:"not null;default:0"`
}

// EffectivePrice is the variant price when set, the product price otherwise.
func EffectivePrice(p *Product, v *Variant) decimal.Decimal {
	if v != nil && v.Price != nil {
		return *v.Price
	}
	return p.Price
}
