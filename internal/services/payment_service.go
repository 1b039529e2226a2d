package services

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/repositories"
)

// PaymentStatusView is what the polling endpoint reports.
type PaymentStatusView struct {
	Reference     string               `json:"reference"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	OrderStatus   models.OrderStatus   `json:"order_status"`
	Cached        bool                 `json:"cached"`
}

type PaymentServiceDeps struct {
	Gateways   payment.Registry
	Orders     repositories.OrderRepository
	Payments   repositories.PaymentRepository
	Users      repositories.UserRepository
	Reconciler *ReconcileService
	Cache      StatusCache // optional
	Logger     *zap.Logger
	BaseURL    string // public base of this service, used for vendor callbacks
	ReceiptURL string
}

// PaymentService opens hosted payment sessions and serves status polling.
type PaymentService struct {
	gateways   payment.Registry
	orders     repositories.OrderRepository
	payments   repositories.PaymentRepository
	users      repositories.UserRepository
	reconciler *ReconcileService
	cache      StatusCache
	logger     *zap.Logger
	baseURL    string
	receiptURL string
}

func NewPaymentService(deps PaymentServiceDeps) *PaymentService {
	return &PaymentService{
		gateways:   deps.Gateways,
		orders:     deps.Orders,
		payments:   deps.Payments,
		users:      deps.Users,
		reconciler: deps.Reconciler,
		cache:      deps.Cache,
		logger:     deps.Logger,
		baseURL:    strings.TrimRight(deps.BaseURL, "/"),
		receiptURL: deps.ReceiptURL,
	}
}

// CreateIntent opens a vendor payment session for an order of userID. A payment
// that is already captured, or otherwise finished, is refused before any call to
// the vendor.
func (s *PaymentService) CreateIntent(ctx context.Context, userID, provider, orderID string) (*payment.Intent, error) {
	gateway, ok := s.gateways.Get(provider)
	if !ok {
		return nil, apperror.NotFound("unknown payment provider %q", provider)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperror.NotFound("order %s not found", orderID)
	}
	pay := order.Payment
	if pay == nil {
		return nil, apperror.NotFound("payment for order %s not found", orderID)
	}
	if pay.Status == models.PaymentCaptured {
		return nil, apperror.Conflict("order %s is already paid", orderID)
	}
	if pay.Status.Terminal() || order.Status != models.OrderPending {
		return nil, apperror.Conflict("order %s is %s and cannot be paid", orderID, order.Status)
	}
	if pay.Provider != provider {
		return nil, apperror.Validation("order %s is to be paid with %s", orderID, pay.Provider)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	payerName := user.Name
	if payerName == "" {
		payerName = user.Username
	}

	returnURL := s.baseURL + "/api/v1/payments/" + provider + "/return?ref=" + url.QueryEscape(order.ID)
	intent, err := gateway.CreateIntent(ctx, payment.IntentRequest{
		Reference:       order.ID,
		Amount:          pay.Amount,
		Currency:        pay.Currency,
		Description:     "Order " + order.ID,
		SuccessURL:      returnURL,
		FailureURL:      returnURL + "&result=failed",
		NotificationURL: s.baseURL + "/api/v1/payments/" + provider + "/webhook",
		PayerName:       payerName,
		PayerEmail:      user.Email,
		PayerPhone:      user.Phone,
	})
	if err != nil {
		s.logger.Warn("payment intent failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	if err := s.payments.SaveIntent(ctx, pay.ID, intent.ProviderRef(), intent.PaymentURL); err != nil {
		return nil, err
	}
	return intent, nil
}

// Status reports the payment of reference, asking the vendor when the local
// status is still open. Polled answers go through the reconciler like webhooks.
func (s *PaymentService) Status(ctx context.Context, userID, provider, reference string) (*PaymentStatusView, error) {
	gateway, ok := s.gateways.Get(provider)
	if !ok {
		return nil, apperror.NotFound("unknown payment provider %q", provider)
	}
	if reference == "" {
		return nil, apperror.Validation("ref is required")
	}

	pay, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, pay.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID || pay.Provider != provider {
		return nil, apperror.NotFound("payment %s not found", reference)
	}

	view := &PaymentStatusView{Reference: order.ID, PaymentStatus: pay.Status, OrderStatus: order.Status}
	if pay.Status == models.PaymentCaptured || pay.Status.Terminal() {
		return view, nil
	}

	if s.cache != nil {
		if cached, hit, err := s.cache.Get(ctx, provider, order.ID); err == nil && hit && cached == string(pay.Status) {
			view.Cached = true
			return view, nil
		}
	}

	res, err := gateway.QueryStatus(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	applied, err := s.reconciler.Apply(ctx, provider, VendorUpdate{
		Reference:   order.ID,
		VendorTxnID: res.VendorTxnID,
		Token:       res.Token,
		State:       res.State,
		Raw:         res.Raw,
	})
	if err != nil {
		return nil, err
	}
	view.PaymentStatus = applied.PaymentStatus
	view.OrderStatus = applied.OrderStatus

	if s.cache != nil {
		if err := s.cache.Set(ctx, provider, order.ID, string(view.PaymentStatus)); err != nil {
			s.logger.Warn("failed to cache payment status", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	return view, nil
}

// ReturnURL is where a buyer coming back from the hosted page is sent. It never
// changes any state.
func (s *PaymentService) ReturnURL(provider, reference string) (string, error) {
	if _, ok := s.gateways.Get(provider); !ok {
		return "", apperror.NotFound("unknown payment provider %q", provider)
	}
	sep := "?"
	if strings.Contains(s.receiptURL, "?") {
		sep = "&"
	}
	return s.receiptURL + sep + "ref=" + url.QueryEscape(reference), nil
}
