// Package events defines the domain events emitted after checkout and payment
// state changes, and the publisher that ships them to a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	OrderPlaced          = "order.placed"
	OrderCancelled       = "order.cancelled"
	OrderStatusChanged   = "order.status_changed"
	PaymentStatusChanged = "payment.status_changed"
)

// Envelope wraps every event on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order ID
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Qty       int     `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderID  string    `json:"order_id"`
	UserID   string    `json:"user_id"`
	Total    string    `json:"total"`
	Currency string    `json:"currency"`
	Items    []ItemQty `json:"items"`
}

type OrderStatusPayload struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

type PaymentStatusPayload struct {
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	Provider      string `json:"provider"`
	From          string `json:"from"`
	To            string `json:"to"`
	ProviderTxnID string `json:"provider_txn_id,omitempty"`
}

// New builds a version 1 envelope around payload.
func New(eventType, producer, correlationID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       body,
	}, nil
}

// UnwrapPayload decodes the typed payload of an envelope.
func UnwrapPayload[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}

// Publisher ships envelopes to whatever broker is configured.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Transport is a broker client able to deliver one encoded message.
type Transport interface {
	Send(ctx context.Context, eventType, key string, body []byte) error
}

// BrokerPublisher encodes envelopes as JSON and hands them to a Transport,
// keyed by correlation ID so one order's events stay ordered.
type BrokerPublisher struct {
	transport Transport
	logger    *zap.Logger
}

func NewBrokerPublisher(transport Transport, logger *zap.Logger) *BrokerPublisher {
	return &BrokerPublisher{transport: transport, logger: logger.Named("events")}
}

func (p *BrokerPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := p.transport.Send(ctx, env.EventType, env.CorrelationID, body); err != nil {
		return fmt.Errorf("publish %s: %w", env.EventType, err)
	}
	p.logger.Debug("event published",
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.EventType),
		zap.String("correlation_id", env.CorrelationID))
	return nil
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }
