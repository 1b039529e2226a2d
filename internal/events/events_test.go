package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/events"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, eventType, key string, body []byte) error {
	args := m.Called(ctx, eventType, key, body)
	return args.Error(0)
}

func TestNewEnvelope(t *testing.T) {
	env, err := events.New(events.OrderPlaced, "storefront", "ord-1", events.OrderPlacedPayload{
		OrderID: "ord-1", Total: "25.00", Currency: "SGD",
		Items: []events.ItemQty{{ProductID: "p-1", Qty: 2}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "ord-1", env.CorrelationID)

	payload, err := events.UnwrapPayload[events.OrderPlacedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, "25.00", payload.Total)
	assert.Len(t, payload.Items, 1)
}

func TestBrokerPublisher(t *testing.T) {
	transport := new(MockTransport)
	publisher := events.NewBrokerPublisher(transport, zap.NewNop())

	env, err := events.New(events.OrderCancelled, "storefront", "ord-2", events.OrderStatusPayload{OrderID: "ord-2", From: "PENDING", To: "CANCELLED"})
	require.NoError(t, err)

	transport.On("Send", mock.Anything, events.OrderCancelled, "ord-2", mock.MatchedBy(func(body []byte) bool {
		var decoded events.Envelope
		return json.Unmarshal(body, &decoded) == nil && decoded.EventID == env.EventID
	})).Return(nil).Once()

	require.NoError(t, publisher.Publish(context.Background(), env))
	transport.AssertExpectations(t)
}

func TestBrokerPublisherError(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	env, err := events.New(events.OrderPlaced, "storefront", "ord-3", events.OrderPlacedPayload{OrderID: "ord-3"})
	require.NoError(t, err)

	err = events.NewBrokerPublisher(transport, zap.NewNop()).Publish(context.Background(), env)
	assert.ErrorContains(t, err, "broker down")
}

func TestLogHandler(t *testing.T) {
	handle := events.LogHandler(zap.NewNop())

	env, err := events.New(events.PaymentStatusChanged, "storefront", "ord-4", events.PaymentStatusPayload{OrderID: "ord-4", From: "INITIATED", To: "CAPTURED"})
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	assert.NoError(t, handle(body))
	assert.Error(t, handle([]byte("not json")))
}
