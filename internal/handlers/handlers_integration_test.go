package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/payment"
	"storefront/internal/payment/oxpay"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

const (
	testJWTSecret = "test_jwt_secret"
	vendorSecret  = "vendor_secret"
)

// setupApp sets up a Fiber app for testing with in-memory SQLite, all services
// and an OxPay client talking to vendorURL.
func setupApp(t *testing.T, vendorURL string) *fiber.App {
	t.Helper()
	logger := zap.NewNop()

	name := strings.NewReplacer("/", "_").Replace(t.Name())
	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	txm, err := database.NewTxManager(db, "", 2)
	require.NoError(t, err)

	// Initialize Repositories
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	addressRepo := repositories.NewGORMAddressRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	paymentRepo := repositories.NewGORMPaymentRepository(db)

	gateways := payment.NewRegistry(oxpay.New(config.OxPayConfig{
		BaseURL:    vendorURL,
		MerchantID: "M-1",
		SecretKey:  vendorSecret,
		APIVersion: "v2",
		Timeout:    2 * time.Second,
	}, logger))

	// Initialize Services
	reconciler := services.NewReconcileService(services.ReconcileServiceDeps{
		Tx: txm, Gateways: gateways, Orders: orderRepo, Payments: paymentRepo, Products: productRepo, Logger: logger,
	})
	svc := app.Services{
		Auth:      services.NewAuthService(userRepo, testJWTSecret, time.Hour, logger),
		Products:  services.NewProductService(productRepo, categoryRepo, logger),
		Carts:     services.NewCartService(cartRepo, productRepo, logger),
		Addresses: services.NewAddressService(addressRepo),
		Orders: services.NewOrderService(services.OrderServiceDeps{
			Tx: txm, Orders: orderRepo, Payments: paymentRepo, Products: productRepo, Carts: cartRepo,
			Addresses: addressRepo, Logger: logger, Currency: "SGD", Providers: []string{oxpay.ProviderName},
		}),
		Payments: services.NewPaymentService(services.PaymentServiceDeps{
			Gateways: gateways, Orders: orderRepo, Payments: paymentRepo, Users: userRepo, Reconciler: reconciler,
			Logger: logger, BaseURL: "https://shop.example", ReceiptURL: "https://shop.example/receipt",
		}),
		Reconcile: reconciler,
	}

	return app.New(svc, app.Options{Logger: logger, Checks: map[string]app.HealthCheck{
		"database": func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
	}})
}

// fakeVendor answers like the OxPay v2 API.
func fakeVendor(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/payments":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.True(t, oxpay.Verify(oxpay.V2, vendorSecret, body, r.Header.Get(oxpay.SignatureHeader)))
			_, _ = w.Write([]byte(`{"status_code":200,"message":"OK","data":{"session_id":"sess-1","payment_url":"https://pay.example/s/sess-1","reference_no":"` + body["merchant_reference"] + `"}}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/payments/"):
			_, _ = w.Write([]byte(`{"status_code":200,"message":"OK","data":{"transaction_id":"tx-1","status":"pending"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.([]byte)
		if !ok {
			var err error
			raw, err = json.Marshal(body)
			require.NoError(t, err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func signup(t *testing.T, app *fiber.App, username, role string) string {
	t.Helper()
	resp, _ := call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": username + "@example.com", "password": "password123", "role": role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["token"].(string)
}

func signedWebhook(orderID, status, txnID string) ([]byte, string) {
	fields := map[string]string{
		"merchant_reference": orderID,
		"transaction_id":     txnID,
		"status":             status,
		"amount":             "25.00",
	}
	body, _ := json.Marshal(fields)
	return body, oxpay.Sign(oxpay.V2, vendorSecret, fields)
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/oxpay/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(oxpay.SignatureHeader, signature)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCheckoutAndPaymentFlow(t *testing.T) {
	app := setupApp(t, fakeVendor(t).URL)
	sellerToken := signup(t, app, "seller1", "seller")
	buyerToken := signup(t, app, "buyer1", "buyer")

	// Seller lists a product
	resp, product := call(t, app, http.MethodPost, "/api/v1/seller/products", sellerToken, map[string]any{
		"name": "Mug", "price": "12.50", "stock": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	productID := product["id"].(string)

	resp, _ = call(t, app, http.MethodGet, "/api/v1/products/"+productID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Buyer fills the cart
	resp, _ = call(t, app, http.MethodPost, "/api/v1/cart", buyerToken, map[string]any{"product_id": productID, "quantity": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, cart := call(t, app, http.MethodGet, "/api/v1/cart", buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "25.00", cart["total"])

	// Checkout
	resp, order := call(t, app, http.MethodPost, "/api/v1/orders", buyerToken, map[string]any{
		"payment_method": "oxpay",
		"shipping": map[string]string{
			"recipient_name": "Ada", "phone": "+6590000000", "line1": "1 Market St",
			"city": "Singapore", "postal_code": "048942", "country": "SG",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := order["id"].(string)
	assert.Equal(t, "PENDING", order["status"])

	// Open the hosted payment page
	resp, intent := call(t, app, http.MethodPost, "/api/v1/payments/oxpay/intent", buyerToken, map[string]string{"order_id": orderID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "https://pay.example/s/sess-1", intent["paymentUrl"])
	assert.Equal(t, "sess-1", intent["sessionId"])

	// Polling while the vendor still reports pending
	resp, status := call(t, app, http.MethodGet, "/api/v1/payments/oxpay/status?ref="+orderID, buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "INITIATED", status["payment_status"])

	// Vendor confirms capture
	body, sig := signedWebhook(orderID, "captured", "tx-1")
	resp, result := postWebhook(t, app, body, sig)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "applied", result["outcome"])
	assert.Equal(t, "PAID", result["order_status"])

	// Redelivery is acknowledged without effect
	resp, result = postWebhook(t, app, body, sig)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "duplicate", result["outcome"])

	// A late failure is acknowledged but rejected
	body, sig = signedWebhook(orderID, "failed", "tx-2")
	resp, result = postWebhook(t, app, body, sig)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rejected", result["outcome"])

	// A forged notification is refused
	resp, result = postWebhook(t, app, body, "forged")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTHENTICATION_ERROR", result["code"])

	resp, order = call(t, app, http.MethodGet, "/api/v1/orders/"+orderID, buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PAID", order["status"])
	assert.Equal(t, "CAPTURED", order["payment"].(map[string]any)["status"])

	// Paying twice is refused before reaching the vendor
	resp, errBody := call(t, app, http.MethodPost, "/api/v1/payments/oxpay/intent", buyerToken, map[string]string{"order_id": orderID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", errBody["code"])

	// The browser return only redirects
	resp, _ = call(t, app, http.MethodGet, "/api/v1/payments/oxpay/return?ref="+orderID, "", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "https://shop.example/receipt?ref="+orderID, resp.Header.Get("Location"))

	// Seller moves the order on
	resp, order = call(t, app, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", sellerToken, map[string]string{"status": "PROCESSING"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PROCESSING", order["status"])
}

func TestCheckoutRejectsOversizedCart(t *testing.T) {
	app := setupApp(t, fakeVendor(t).URL)
	sellerToken := signup(t, app, "seller1", "seller")
	buyerToken := signup(t, app, "buyer1", "buyer")

	resp, product := call(t, app, http.MethodPost, "/api/v1/seller/products", sellerToken, map[string]any{
		"name": "Lamp", "price": "40.00", "stock": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := call(t, app, http.MethodPost, "/api/v1/cart", buyerToken, map[string]any{"product_id": product["id"], "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "Insufficient stock", body["error"])
	details := body["details"].(map[string]any)
	assert.EqualValues(t, 1, details["available"])

	resp, body = call(t, app, http.MethodPost, "/api/v1/orders", buyerToken, map[string]any{"payment_method": "oxpay"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cart is empty", body["error"])
}

func TestAuthAndRoles(t *testing.T) {
	app := setupApp(t, fakeVendor(t).URL)

	resp, body := call(t, app, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTHENTICATION_ERROR", body["code"])

	resp, _ = call(t, app, http.MethodGet, "/api/v1/cart", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	buyerToken := signup(t, app, "buyer1", "buyer")
	resp, body = call(t, app, http.MethodPost, "/api/v1/seller/products", buyerToken, map[string]any{"name": "Mug", "price": "1.00"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "AUTHORIZATION_ERROR", body["code"])

	resp, body = call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x", "email": "bad"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	details := body["details"].(map[string]any)
	assert.Equal(t, "Field 'Email' failed on the 'email' tag", details["Email"])

	resp, _ = call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "buyer1", "email": "other@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "buyer1", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", body["error"])

	resp, _ = call(t, app, http.MethodPost, "/api/v1/auth/login", "", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookForUnknownOrder(t *testing.T) {
	app := setupApp(t, fakeVendor(t).URL)
	body, sig := signedWebhook("no-such-order", "captured", "tx-1")
	resp, result := postWebhook(t, app, body, sig)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", result["code"])
}

func TestAddresses(t *testing.T) {
	app := setupApp(t, fakeVendor(t).URL)
	token := signup(t, app, "buyer1", "buyer")

	resp, _ := call(t, app, http.MethodPost, "/api/v1/addresses", token, map[string]string{
		"recipient_name": "Ada", "phone": "1", "line1": "1 Market St", "city": "Singapore", "postal_code": "048942", "country": "SG",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestHealth(t *testing.T) {
	app := setupApp(t, fakeVendor(t).URL)
	resp, body := call(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["dependencies"].(map[string]any)["database"])
}
