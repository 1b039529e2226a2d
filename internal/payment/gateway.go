package payment

import (
	"context"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"
)

// IntentRequest describes a hosted payment session to open for an order.
type IntentRequest struct {
	Reference       string // merchant reference, the order ID
	Amount          decimal.Decimal
	Currency        string
	Description     string
	SuccessURL      string
	FailureURL      string
	NotificationURL string
	PayerName       string
	PayerEmail      string
	PayerPhone      string
}

// Intent is the vendor's answer to a session request.
type Intent struct {
	PaymentURL  string `json:"paymentUrl"`
	ReferenceNo string `json:"referenceNo"`
	SessionID   string `json:"sessionId,omitempty"`
}

// ProviderRef is the identifier persisted on the payment: the session when the vendor
// issues one, its reference number otherwise.
func (i Intent) ProviderRef() string {
	if i.SessionID != "" {
		return i.SessionID
	}
	return i.ReferenceNo
}

// Notification is a verified vendor callback.
type Notification struct {
	Reference   string
	VendorTxnID string
	Token       string // the vendor's literal state token
	State       State
	Amount      *decimal.Decimal
	Raw         []byte
}

// StatusResult is the vendor's view of a transaction when polled.
type StatusResult struct {
	Reference   string
	VendorTxnID string
	Token       string
	State       State
	Raw         []byte
}

// Gateway is a hosted-payment-page vendor.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	QueryStatus(ctx context.Context, reference string) (*StatusResult, error)
	// ParseNotification verifies the signature of an inbound callback and decodes it.
	// Unsigned or mis-signed payloads are rejected.
	ParseNotification(header http.Header, body []byte) (*Notification, error)
}

// Registry resolves gateways by provider name as used in URLs.
type Registry map[string]Gateway

func NewRegistry(gateways ...Gateway) Registry {
	r := make(Registry, len(gateways))
	for _, g := range gateways {
		r[g.Name()] = g
	}
	return r
}

func (r Registry) Get(name string) (Gateway, bool) {
	g, ok := r[name]
	return g, ok
}

// Names lists the registered providers in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
