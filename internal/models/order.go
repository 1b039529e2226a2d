package models

import (
	"github.com/shopspring/decimal"
)

// Order is created transactionally from a cart; its total never changes afterwards.
type Order struct {
	Base
	UserID        string          `json:"user_id" gorm:"type:varchar(36);index;not null"`
	Total         decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`
	Currency      string          `json:"currency" gorm:"type:varchar(3);not null"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(20);index;not null"`
	VoucherCode   string          `json:"voucher_code,omitempty" gorm:"type:varchar(64)"`
	PaymentMethod string          `json:"payment_method" gorm:"type:varchar(32);not null"`
	Items         []OrderItem     `json:"items,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Shipping      *Shipping       `json:"shipping,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Payment       *Payment        `json:"payment,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// OrderItem is a frozen copy of a cart line taken at order time.
type OrderItem struct {
	Base
	OrderID   string          `json:"order_id" gorm:"type:varchar(36);index;not null"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36);not null"`
	VariantID *string         `json:"variant_id,omitempty" gorm:"type:varchar(36)"`
	Name      string          `json:"name" gorm:"type:varchar(200)"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
}

// Shipping is captured at checkout and never edited.
type Shipping struct {
	Base
	OrderID       string `json:"order_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	RecipientName string `json:"recipient_name" gorm:"type:varchar(150)"`
	Phone         string `json:"phone" gorm:"type:varchar(32)"`
	Line1         string `json:"line1" gorm:"type:varchar(255)"`
	Line2         string `json:"line2,omitempty" gorm:"type:varchar(255)"`
	City          string `json:"city" gorm:"type:varchar(100)"`
	PostalCode    string `json:"postal_code" gorm:"type:varchar(20)"`
	Country       string `json:"country" gorm:"type:varchar(2)"`
}

// ShippingFromAddress copies a saved address into an order shipping record.
func ShippingFromAddress(a *Address) *Shipping {
	return &Shipping{
		RecipientName: a.RecipientName,
		Phone:         a.Phone,
		Line1:         a.Line1,
		Line2:         a.Line2,
		City:          a.City,
		PostalCode:    a.PostalCode,
		Country:       a.Country,
	}
}
