package oxpay

import (
	"strings"

	"storefront/internal/payment"
)

// v1 reports numeric transaction states.
var v1States = map[string]payment.State{
	"1": payment.StateInitiated,
	"2": payment.StateAuthorized,
	"3": payment.StateCaptured,
	"4": payment.StateFailed,
	"5": payment.StateVoided,
	"6": payment.StateRefunded,
	"7": payment.StateCancelled,
}

var v2States = map[string]payment.State{
	"pending":    payment.StatePending,
	"initiated":  payment.StateInitiated,
	"authorized": payment.StateAuthorized,
	"captured":   payment.StateCaptured,
	"success":    payment.StateSuccess,
	"failed":     payment.StateFailed,
	"voided":     payment.StateVoided,
	"cancelled":  payment.StateCancelled,
	"canceled":   payment.StateCancelled,
	"refunded":   payment.StateRefunded,
}

// ParseState normalises a vendor token of the given generation.
func ParseState(version Version, token string) (payment.State, bool) {
	token = strings.TrimSpace(token)
	if version == V1 {
		s, ok := v1States[token]
		return s, ok
	}
	s, ok := v2States[strings.ToLower(token)]
	return s, ok
}
