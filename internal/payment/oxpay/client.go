// Package oxpay talks to the OxPay hosted payment page API, both the original
// (v1) and the current (v2) generation.
package oxpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/payment"
)

const (
	ProviderName    = "oxpay"
	SignatureHeader = "X-Signature"
	MerchantHeader  = "X-Merchant-Id"
	TimestampHeader = "X-Timestamp"

	maxBodyBytes = 1 << 20
)

// Client implements payment.Gateway for OxPay.
type Client struct {
	cfg     config.OxPayConfig
	version Version
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default client; its Timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides the timestamp source used in signed requests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cfg config.OxPayConfig, logger *zap.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		version: Version(cfg.APIVersion),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("oxpay"),
		now:     time.Now,
	}
	if c.version != V1 {
		c.version = V2
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return ProviderName }

// CreateIntent opens a hosted payment session for req.
func (c *Client) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	amount := req.Amount.StringFixed(2)

	var (
		path    string
		params  map[string]string
		headers = http.Header{}
	)
	if c.version == V1 {
		path = "/v1/payment/create"
		params = map[string]string{
			"merchantId":    c.cfg.MerchantID,
			"referenceNo":   req.Reference,
			"amount":        amount,
			"currency":      req.Currency,
			"description":   req.Description,
			"successUrl":    req.SuccessURL,
			"failUrl":       req.FailureURL,
			"notifyUrl":     req.NotificationURL,
			"customerName":  req.PayerName,
			"customerEmail": req.PayerEmail,
			"customerPhone": req.PayerPhone,
			"timestamp":     ts,
		}
		params[SignatureField] = Sign(V1, c.cfg.SecretKey, params)
	} else {
		path = "/v2/payments"
		params = map[string]string{
			"merchant_id":        c.cfg.MerchantID,
			"merchant_reference": req.Reference,
			"amount":             amount,
			"currency":           req.Currency,
			"description":        req.Description,
			"success_url":        req.SuccessURL,
			"failure_url":        req.FailureURL,
			"notification_url":   req.NotificationURL,
			"payer_name":         req.PayerName,
			"payer_email":        req.PayerEmail,
			"payer_phone":        req.PayerPhone,
			"timestamp":          ts,
		}
		headers.Set(SignatureHeader, Sign(V2, c.cfg.SecretKey, params))
		headers.Set(MerchantHeader, c.cfg.MerchantID)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, apperror.Internal(err, "failed to encode payment request")
	}

	resp, raw, err := c.do(ctx, http.MethodPost, path, headers, body)
	if err != nil {
		return nil, err
	}

	intent := &payment.Intent{}
	switch r := resp.(type) {
	case *V1Response:
		intent.PaymentURL = r.Data.PaymentURL
		intent.ReferenceNo = r.Data.ReferenceNo
	case *V2Response:
		intent.PaymentURL = r.Data.PaymentURL
		intent.ReferenceNo = r.Data.ReferenceNo
		intent.SessionID = r.Data.SessionID
	}
	if intent.ReferenceNo == "" {
		intent.ReferenceNo = req.Reference
	}
	if intent.PaymentURL == "" {
		return nil, apperror.ExternalService(nil, "payment vendor returned no payment URL").
			WithDetails(map[string]string{"rawBody": string(raw)})
	}

	c.logger.Info("payment intent created",
		zap.String("reference", req.Reference),
		zap.String("session_id", intent.SessionID),
		zap.String("api_version", string(c.version)))
	return intent, nil
}

// QueryStatus asks the vendor for the current state of a merchant reference.
func (c *Client) QueryStatus(ctx context.Context, reference string) (*payment.StatusResult, error) {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	headers := http.Header{}

	var (
		method = http.MethodPost
		path   string
		body   []byte
	)
	if c.version == V1 {
		path = "/v1/payment/query"
		params := map[string]string{
			"merchantId":  c.cfg.MerchantID,
			"referenceNo": reference,
			"timestamp":   ts,
		}
		params[SignatureField] = Sign(V1, c.cfg.SecretKey, params)
		var err error
		if body, err = json.Marshal(params); err != nil {
			return nil, apperror.Internal(err, "failed to encode status request")
		}
	} else {
		method = http.MethodGet
		path = "/v2/payments/" + url.PathEscape(reference)
		params := map[string]string{
			"merchant_id":        c.cfg.MerchantID,
			"merchant_reference": reference,
			"timestamp":          ts,
		}
		headers.Set(SignatureHeader, Sign(V2, c.cfg.SecretKey, params))
		headers.Set(MerchantHeader, c.cfg.MerchantID)
		headers.Set(TimestampHeader, ts)
	}

	resp, raw, err := c.do(ctx, method, path, headers, body)
	if err != nil {
		return nil, err
	}

	result := &payment.StatusResult{Reference: reference, Raw: raw}
	switch r := resp.(type) {
	case *V1Response:
		result.VendorTxnID = r.Data.TransactionID
		result.Token = r.Data.TransactionState
	case *V2Response:
		result.VendorTxnID = r.Data.TransactionID
		result.Token = r.Data.Status
	}

	state, ok := ParseState(resp.Version(), result.Token)
	if !ok {
		return nil, apperror.ExternalService(nil, "payment vendor returned unknown state %q", result.Token).
			WithDetails(map[string]string{"rawBody": string(raw)})
	}
	result.State = state
	return result, nil
}

// do sends one logical request, retrying transport failures and 5xx answers with
// exponential backoff. Vendor business errors are returned without retrying.
func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body []byte) (VendorResponse, []byte, error) {
	endpoint := c.cfg.BaseURL + path

	var (
		status int
		raw    []byte
	)
	attempt := 0
	op := func() error {
		attempt++
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("oxpay request failed", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		defer res.Body.Close()

		raw, err = io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		status = res.StatusCode
		if status >= http.StatusInternalServerError {
			c.logger.Warn("oxpay server error", zap.String("path", path), zap.Int("attempt", attempt), zap.Int("status", status))
			return fmt.Errorf("vendor returned status %d", status)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 0
	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	if err := backoff.Retry(op, b); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, raw, apperror.ExternalService(err, "payment vendor unreachable").
			WithDetails(map[string]any{"status": status, "rawBody": string(raw)})
	}

	resp, decodeErr := DecodeResponse(raw)
	if status < 200 || status >= 300 {
		msg := http.StatusText(status)
		if decodeErr == nil && resp.VendorMessage() != "" {
			msg = resp.VendorMessage()
		}
		return nil, raw, apperror.ExternalService(nil, "payment vendor rejected the request: %s", msg).
			WithDetails(map[string]any{"status": status, "vendorMessage": msg, "rawBody": string(raw)})
	}
	if decodeErr != nil {
		return nil, raw, apperror.ExternalService(decodeErr, "payment vendor returned an unreadable response").
			WithDetails(map[string]any{"status": status, "rawBody": string(raw)})
	}
	if !resp.OK() {
		return nil, raw, apperror.ExternalService(nil, "payment vendor error: %s", resp.VendorMessage()).
			WithDetails(map[string]any{"status": status, "vendorMessage": resp.VendorMessage(), "rawBody": string(raw)})
	}
	return resp, raw, nil
}
