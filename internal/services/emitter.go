package services

import (
	"context"

	"go.uber.org/zap"

	"storefront/internal/events"
)

// emitter publishes events after commit. Failures are logged and never surface
// to the caller: the database change already happened.
type emitter struct {
	publisher events.Publisher
	producer  string
	logger    *zap.Logger
}

func newEmitter(publisher events.Publisher, producer string, logger *zap.Logger) emitter {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return emitter{publisher: publisher, producer: producer, logger: logger}
}

func (e emitter) emit(ctx context.Context, eventType, orderID string, payload any) {
	env, err := events.New(eventType, e.producer, orderID, payload)
	if err == nil {
		err = e.publisher.Publish(ctx, env)
	}
	if err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("event_type", eventType),
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}
