package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one-to-one with an order and only moves through the reconciler or
// the status-polling endpoint.
type Payment struct {
	Base
	OrderID       string          `json:"order_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Provider      string          `json:"provider" gorm:"type:varchar(32);not null"`
	ProviderRef   string          `json:"provider_ref,omitempty" gorm:"type:varchar(128);index"`
	ProviderTxnID string          `json:"provider_txn_id,omitempty" gorm:"type:varchar(128)"`
	PaymentURL    string          `json:"payment_url,omitempty" gorm:"type:varchar(1024)"`
	Status        PaymentStatus   `json:"status" gorm:"type:varchar(20);index;not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency      string          `json:"currency" gorm:"type:varchar(3);not null"`
	RawPayload    string          `json:"-" gorm:"type:text"`
}

type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookRejected  WebhookOutcome = "rejected"
)

// WebhookEvent records every vendor notification and what the reconciler did with it.
type WebhookEvent struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Provider    string         `json:"provider" gorm:"type:varchar(32);index"`
	Reference   string         `json:"reference" gorm:"type:varchar(128);index"`
	VendorTxnID string         `json:"vendor_txn_id" gorm:"type:varchar(128)"`
	State       string         `json:"state" gorm:"type:varchar(32)"`
	Outcome     WebhookOutcome `json:"outcome" gorm:"type:varchar(16)"`
	Reason      string         `json:"reason,omitempty" gorm:"type:varchar(255)"`
	RawPayload  string         `json:"-" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
}
