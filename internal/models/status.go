package models

// OrderStatus is the order lifecycle.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderPaid       OrderStatus = "PAID"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderRefunded   OrderStatus = "REFUNDED"
)

var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:    {OrderPaid: true, OrderCancelled: true},
	OrderPaid:       {OrderProcessing: true, OrderRefunded: true},
	OrderProcessing: {OrderShipped: true},
	OrderShipped:    {OrderDelivered: true},
	OrderDelivered:  {},
	OrderCancelled:  {},
	OrderRefunded:   {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderNext[s]
	return ok
}

// CanTransition reports whether the order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return orderNext[s][next]
}

// PaymentStatus is the payment lifecycle.
type PaymentStatus string

const (
	PaymentInitiated  PaymentStatus = "INITIATED"
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentCaptured   PaymentStatus = "CAPTURED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

var paymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentInitiated:  {PaymentAuthorized: true, PaymentCaptured: true, PaymentFailed: true},
	PaymentAuthorized: {PaymentCaptured: true, PaymentFailed: true},
	PaymentCaptured:   {PaymentRefunded: true},
	PaymentFailed:     {},
	PaymentRefunded:   {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentNext[s]
	return ok
}

// CanTransition reports whether the payment may move from s to next.
// Backward moves, such as CAPTURED to FAILED, are never allowed.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	return paymentNext[s][next]
}

// Terminal reports whether no further transition is possible.
func (s PaymentStatus) Terminal() bool {
	return len(paymentNext[s]) == 0
}
