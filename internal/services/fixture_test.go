package services_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

// store wires the GORM repositories over a private in-memory database.
type store struct {
	db        *gorm.DB
	tx        *database.GormTxManager
	users     *repositories.GORMUserRepository
	products  *repositories.GORMProductRepository
	carts     *repositories.GORMCartRepository
	addresses *repositories.GORMAddressRepository
	orders    *repositories.GORMOrderRepository
	payments  *repositories.GORMPaymentRepository
	events    *recordingPublisher
}

func newStore(t *testing.T) *store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	return wire(t, db, "")
}

// wire migrates db and builds the repositories over it.
func wire(t *testing.T, db *gorm.DB, isolation string) *store {
	t.Helper()
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	txm, err := database.NewTxManager(db, isolation, 5)
	require.NoError(t, err)
	return &store{
		db:        db,
		tx:        txm,
		users:     repositories.NewGORMUserRepository(db),
		products:  repositories.NewGORMProductRepository(db),
		carts:     repositories.NewGORMCartRepository(db),
		addresses: repositories.NewGORMAddressRepository(db),
		orders:    repositories.NewGORMOrderRepository(db),
		payments:  repositories.NewGORMPaymentRepository(db),
		events:    &recordingPublisher{},
	}
}

func (s *store) orderService() *services.OrderService {
	return services.NewOrderService(services.OrderServiceDeps{
		Tx:        s.tx,
		Orders:    s.orders,
		Payments:  s.payments,
		Products:  s.products,
		Carts:     s.carts,
		Addresses: s.addresses,
		Publisher: s.events,
		Logger:    zap.NewNop(),
		Currency:  "SGD",
		Producer:  "storefront-test",
		Providers: []string{"oxpay"},
	})
}

func (s *store) reconcileService(gateways payment.Registry, dedup services.Deduper, cache services.StatusCache) *services.ReconcileService {
	return services.NewReconcileService(services.ReconcileServiceDeps{
		Tx:        s.tx,
		Gateways:  gateways,
		Orders:    s.orders,
		Payments:  s.payments,
		Products:  s.products,
		Dedup:     dedup,
		Cache:     cache,
		Publisher: s.events,
		Logger:    zap.NewNop(),
		Producer:  "storefront-test",
	})
}

func (s *store) user(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "x", Role: role, Name: strings.ToUpper(username)}
	require.NoError(t, s.users.Create(context.Background(), u))
	return u
}

func (s *store) product(t *testing.T, sellerID, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{SellerID: sellerID, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, s.products.Create(context.Background(), p))
	return p
}

func (s *store) addToCart(t *testing.T, userID, productID string, variantID *string, qty int) {
	t.Helper()
	require.NoError(t, s.carts.Create(context.Background(), &models.CartItem{UserID: userID, ProductID: productID, VariantID: variantID, Quantity: qty}))
}

func (s *store) stock(t *testing.T, productID string) int {
	t.Helper()
	var p models.Product
	require.NoError(t, s.db.Unscoped().First(&p, "id = ?", productID).Error)
	return p.Stock
}

func (s *store) reload(t *testing.T, orderID string) *models.Order {
	t.Helper()
	order, err := s.orders.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

var inlineShipping = &services.ShippingInput{
	RecipientName: "Ada Buyer",
	Phone:         "+6590000000",
	Line1:         "1 Market Street",
	City:          "Singapore",
	PostalCode:    "048942",
	Country:       "SG",
}

// placeOrder seeds a buyer with a 2 x 12.50 cart and checks it out.
func (s *store) placeOrder(t *testing.T) (*models.User, *models.Product, *models.Order) {
	t.Helper()
	seller := s.user(t, "seller", models.RoleSeller)
	buyer := s.user(t, "buyer", models.RoleBuyer)
	product := s.product(t, seller.ID, "Mug", "12.50", 5)
	s.addToCart(t, buyer.ID, product.ID, nil, 2)

	order, err := s.orderService().PlaceOrder(context.Background(), buyer.ID, services.PlaceOrderInput{
		Shipping:      inlineShipping,
		PaymentMethod: "oxpay",
	})
	require.NoError(t, err)
	return buyer, product, order
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, env)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.sent))
	for _, env := range p.sent {
		out = append(out, env.EventType)
	}
	return out
}

// fakeGateway is a scripted payment.Gateway.
type fakeGateway struct {
	mu      sync.Mutex
	intents []payment.IntentRequest
	queries int
	status  *payment.StatusResult
	err     error
}

func (g *fakeGateway) Name() string { return "oxpay" }

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents = append(g.intents, req)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Intent{PaymentURL: "https://pay.example/s/sess-1", ReferenceNo: req.Reference, SessionID: "sess-1"}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, reference string) (*payment.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries++
	if g.err != nil {
		return nil, g.err
	}
	res := *g.status
	res.Reference = reference
	return &res, nil
}

func (g *fakeGateway) ParseNotification(http.Header, []byte) (*payment.Notification, error) {
	panic("not used")
}

// memDedup and memCache stand in for the redis stores.
type memDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (d *memDedup) Key(provider, reference, state, txnID string) string {
	return provider + ":" + reference + ":" + state + ":" + txnID
}

func (d *memDedup) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys == nil {
		d.keys = map[string]bool{}
	}
	seen := d.keys[key]
	d.keys[key] = true
	return seen, nil
}

func (d *memDedup) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func (c *memCache) Get(_ context.Context, provider, reference string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[provider+":"+reference]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, provider, reference, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	c.entries[provider+":"+reference] = status
	return nil
}

func (c *memCache) Invalidate(_ context.Context, provider, reference string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, provider+":"+reference)
	return nil
}
