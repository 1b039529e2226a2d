// Package payment holds the gateway abstraction and the vendor-neutral payment states
// that vendor notifications are normalised into.
package payment

import (
	"storefront/internal/models"
)

// State is the semantic transaction state reported by a vendor.
type State string

const (
	StateInitiated  State = "initiated"
	StatePending    State = "pending"
	StateAuthorized State = "authorized"
	StateCaptured   State = "captured"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
	StateVoided     State = "voided"
	StateCancelled  State = "cancelled"
	StateRefunded   State = "refunded"
)

// Target is the pair of internal statuses a vendor state maps onto.
type Target struct {
	Payment models.PaymentStatus
	Order   models.OrderStatus
}

var targets = map[State]Target{
	StateInitiated:  {models.PaymentInitiated, models.OrderPending},
	StatePending:    {models.PaymentInitiated, models.OrderPending},
	StateAuthorized: {models.PaymentCaptured, models.OrderPaid},
	StateCaptured:   {models.PaymentCaptured, models.OrderPaid},
	StateSuccess:    {models.PaymentCaptured, models.OrderPaid},
	StateFailed:     {models.PaymentFailed, models.OrderCancelled},
	StateVoided:     {models.PaymentFailed, models.OrderCancelled},
	StateCancelled:  {models.PaymentFailed, models.OrderCancelled},
	StateRefunded:   {models.PaymentRefunded, models.OrderRefunded},
}

// Map returns the internal statuses for s.
func Map(s State) (Target, bool) {
	t, ok := targets[s]
	return t, ok
}
