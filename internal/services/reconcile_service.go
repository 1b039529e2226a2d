package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/repositories"
)

// Deduper is a fast-path memory of processed notifications.
type Deduper interface {
	Key(provider, reference, state, txnID string) string
	// Seen claims key and reports whether it was claimed before.
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// StatusCache holds recently polled payment statuses.
type StatusCache interface {
	Get(ctx context.Context, provider, reference string) (string, bool, error)
	Set(ctx context.Context, provider, reference, status string) error
	Invalidate(ctx context.Context, provider, reference string) error
}

// VendorUpdate is a vendor-reported state for a merchant reference, from a
// webhook or from polling.
type VendorUpdate struct {
	Reference   string
	VendorTxnID string
	Token       string
	State       payment.State
	Amount      *decimal.Decimal
	Raw         []byte
	// Audit records the update as a WebhookEvent and enables the dedup fast path.
	Audit bool
}

// ReconcileResult tells what happened to an update.
type ReconcileResult struct {
	Outcome       models.WebhookOutcome `json:"outcome"`
	Reason        string                `json:"reason,omitempty"`
	OrderID       string                `json:"order_id"`
	PaymentStatus models.PaymentStatus  `json:"payment_status"`
	OrderStatus   models.OrderStatus    `json:"order_status"`
}

type ReconcileServiceDeps struct {
	Tx        database.TxManager
	Gateways  payment.Registry
	Orders    repositories.OrderRepository
	Payments  repositories.PaymentRepository
	Products  repositories.ProductRepository
	Dedup     Deduper     // optional
	Cache     StatusCache // optional
	Publisher events.Publisher
	Logger    *zap.Logger
	Producer  string
}

// ReconcileService applies vendor payment states to payments and orders. It only
// moves statuses forward: duplicates are no-ops and backward moves are rejected.
type ReconcileService struct {
	tx       database.TxManager
	gateways payment.Registry
	orders   repositories.OrderRepository
	payments repositories.PaymentRepository
	products repositories.ProductRepository
	dedup    Deduper
	cache    StatusCache
	events   emitter
	logger   *zap.Logger
}

func NewReconcileService(deps ReconcileServiceDeps) *ReconcileService {
	return &ReconcileService{
		tx:       deps.Tx,
		gateways: deps.Gateways,
		orders:   deps.Orders,
		payments: deps.Payments,
		products: deps.Products,
		dedup:    deps.Dedup,
		cache:    deps.Cache,
		events:   newEmitter(deps.Publisher, deps.Producer, deps.Logger),
		logger:   deps.Logger.Named("reconciler"),
	}
}

// HandleNotification verifies an inbound webhook and applies it.
func (s *ReconcileService) HandleNotification(ctx context.Context, provider string, header http.Header, body []byte) (*ReconcileResult, error) {
	gateway, ok := s.gateways.Get(provider)
	if !ok {
		return nil, apperror.NotFound("unknown payment provider %q", provider)
	}
	n, err := gateway.ParseNotification(header, body)
	if err != nil {
		s.logger.Warn("notification refused", zap.String("provider", provider), zap.Error(err))
		return nil, err
	}
	return s.Apply(ctx, provider, VendorUpdate{
		Reference:   n.Reference,
		VendorTxnID: n.VendorTxnID,
		Token:       n.Token,
		State:       n.State,
		Amount:      n.Amount,
		Raw:         n.Raw,
		Audit:       true,
	})
}

// Apply reconciles one vendor update.
func (s *ReconcileService) Apply(ctx context.Context, provider string, u VendorUpdate) (*ReconcileResult, error) {
	target, ok := payment.Map(u.State)
	if !ok {
		return nil, apperror.Validation("unknown payment state %q", u.State)
	}

	var dedupKey string
	if s.dedup != nil && u.Audit {
		dedupKey = s.dedup.Key(provider, u.Reference, string(u.State), u.VendorTxnID)
		seen, err := s.dedup.Seen(ctx, dedupKey)
		switch {
		case err != nil:
			s.logger.Warn("dedup store unavailable", zap.Error(err))
			dedupKey = ""
		case seen:
			s.logger.Info("duplicate notification skipped", zap.String("reference", u.Reference), zap.String("state", string(u.State)))
			return &ReconcileResult{Outcome: models.WebhookDuplicate, Reason: "already processed"}, nil
		}
	}

	var (
		result     *ReconcileResult
		fromPay    models.PaymentStatus
		fromOrder  models.OrderStatus
		paymentRow *models.Payment
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.payments.FindByReference(ctx, u.Reference)
		if err != nil {
			return err
		}
		order, err := s.orders.GetForUpdate(ctx, found.OrderID)
		if err != nil {
			return err
		}
		pay, err := s.payments.GetByOrderIDForUpdate(ctx, found.OrderID)
		if err != nil {
			return err
		}
		paymentRow, fromPay, fromOrder = pay, pay.Status, order.Status

		result = decide(pay, order, target, u)
		switch result.Outcome {
		case models.WebhookApplied:
			if pay.Status != target.Payment {
				if err := s.payments.ApplyStatus(ctx, pay.ID, target.Payment, u.VendorTxnID, string(u.Raw)); err != nil {
					return err
				}
			}
			if order.Status != target.Order {
				if err := s.orders.UpdateStatus(ctx, order.ID, target.Order); err != nil {
					return err
				}
				if order.Status == models.OrderPending && target.Order == models.OrderCancelled {
					if err := restock(ctx, s.products, s.logger, order.Items); err != nil {
						return err
					}
				}
			}
		case models.WebhookRejected:
			s.logger.Warn("payment transition rejected",
				zap.String("provider", provider),
				zap.String("order_id", order.ID),
				zap.String("token", u.Token),
				zap.String("reason", result.Reason))
		}

		if !u.Audit {
			return nil
		}
		return s.payments.RecordWebhook(ctx, &models.WebhookEvent{
			Provider:    provider,
			Reference:   u.Reference,
			VendorTxnID: u.VendorTxnID,
			State:       u.Token,
			Outcome:     result.Outcome,
			Reason:      result.Reason,
			RawPayload:  string(u.Raw),
		})
	})
	if err != nil {
		if dedupKey != "" {
			if relErr := s.dedup.Release(ctx, dedupKey); relErr != nil {
				s.logger.Warn("failed to release dedup key", zap.String("key", dedupKey), zap.Error(relErr))
			}
		}
		return nil, err
	}

	if result.Outcome == models.WebhookApplied {
		s.afterApply(ctx, provider, u, paymentRow, fromPay, fromOrder, result)
	}
	return result, nil
}

// decide classifies an update against the current statuses.
func decide(pay *models.Payment, order *models.Order, target payment.Target, u VendorUpdate) *ReconcileResult {
	res := &ReconcileResult{
		OrderID:       order.ID,
		PaymentStatus: pay.Status,
		OrderStatus:   order.Status,
	}
	if u.Amount != nil && !u.Amount.Equal(pay.Amount) {
		res.Outcome = models.WebhookRejected
		res.Reason = fmt.Sprintf("amount %s does not match payment amount %s", u.Amount.StringFixed(2), pay.Amount.StringFixed(2))
		return res
	}
	if pay.Status == target.Payment && order.Status == target.Order {
		res.Outcome = models.WebhookDuplicate
		return res
	}
	payOK := pay.Status == target.Payment || pay.Status.CanTransition(target.Payment)
	orderOK := order.Status == target.Order || order.Status.CanTransition(target.Order)
	if !payOK || !orderOK {
		res.Outcome = models.WebhookRejected
		res.Reason = fmt.Sprintf("cannot move %s/%s to %s/%s", pay.Status, order.Status, target.Payment, target.Order)
		return res
	}
	res.Outcome = models.WebhookApplied
	res.PaymentStatus = target.Payment
	res.OrderStatus = target.Order
	return res
}

func (s *ReconcileService) afterApply(ctx context.Context, provider string, u VendorUpdate, pay *models.Payment, fromPay models.PaymentStatus, fromOrder models.OrderStatus, res *ReconcileResult) {
	s.logger.Info("payment reconciled",
		zap.String("provider", provider),
		zap.String("order_id", res.OrderID),
		zap.String("payment_status", string(res.PaymentStatus)),
		zap.String("order_status", string(res.OrderStatus)))

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, provider, res.OrderID); err != nil {
			s.logger.Warn("failed to invalidate status cache", zap.String("order_id", res.OrderID), zap.Error(err))
		}
	}

	if fromPay != res.PaymentStatus {
		s.events.emit(ctx, events.PaymentStatusChanged, res.OrderID, events.PaymentStatusPayload{
			OrderID:       res.OrderID,
			PaymentID:     pay.ID,
			Provider:      provider,
			From:          string(fromPay),
			To:            string(res.PaymentStatus),
			ProviderTxnID: u.VendorTxnID,
		})
	}
	if fromOrder != res.OrderStatus {
		eventType := events.OrderStatusChanged
		if res.OrderStatus == models.OrderCancelled {
			eventType = events.OrderCancelled
		}
		s.events.emit(ctx, eventType, res.OrderID, events.OrderStatusPayload{
			OrderID: res.OrderID,
			From:    string(fromOrder),
			To:      string(res.OrderStatus),
			Reason:  "payment " + string(u.State),
		})
	}
}
