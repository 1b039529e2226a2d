package models

// Address is a saved shipping destination owned by a user.
type Address struct {
	Base
	UserID        string `json:"user_id" gorm:"type:varchar(36);index;not null"`
	RecipientName string `json:"recipient_name" gorm:"type:varchar(150)" validate:"required,max=150"`
	Phone         string `json:"phone" gorm:"type:varchar(32)" validate:"required,max=32"`
	Line1         string `json:"line1" gorm:"type:varchar(255)" validate:"required,max=255"`
	Line2         string `json:"line2" gorm:"type:varchar(255)" validate:"omitempty,max=255"`
	City          string `json:"city" gorm:"type:varchar(100)" validate:"required,max=100"`
	PostalCode    string `json:"postal_code" gorm:"type:varchar(20)" validate:"required,max=20"`
	Country       string `json:"country" gorm:"type:varchar(2)" validate:"required,len=2"`
}
