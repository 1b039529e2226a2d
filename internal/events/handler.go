package events

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// LogHandler returns a consumer callback that decodes envelopes and logs them.
// It is the hook point for buyer notifications.
func LogHandler(logger *zap.Logger) func(body []byte) error {
	logger = logger.Named("events.consumer")
	return func(body []byte) error {
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
		fields := []zap.Field{
			zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType),
			zap.String("order_id", env.CorrelationID),
		}
		switch env.EventType {
		case OrderPlaced:
			p, err := UnwrapPayload[OrderPlacedPayload](env)
			if err != nil {
				return err
			}
			fields = append(fields, zap.String("total", p.Total), zap.Int("items", len(p.Items)))
		case OrderCancelled, OrderStatusChanged:
			p, err := UnwrapPayload[OrderStatusPayload](env)
			if err != nil {
				return err
			}
			fields = append(fields, zap.String("from", p.From), zap.String("to", p.To))
		case PaymentStatusChanged:
			p, err := UnwrapPayload[PaymentStatusPayload](env)
			if err != nil {
				return err
			}
			fields = append(fields, zap.String("from", p.From), zap.String("to", p.To))
		}
		logger.Info("order event received", fields...)
		return nil
	}
}
