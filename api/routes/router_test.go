package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hydromart/marketplace-backend/internal/inventory"
	"github.com/hydromart/marketplace-backend/internal/ledger"
	"github.com/hydromart/marketplace-backend/internal/orders"
	"github.com/hydromart/marketplace-backend/internal/promos"
	paymentwebhook "github.com/hydromart/marketplace-backend/internal/webhooks/payments"
	pkgAuth "github.com/hydromart/marketplace-backend/pkg/auth"
	"github.com/hydromart/marketplace-backend/pkg/config"
	dbpkg "github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/db/models"
	"github.com/hydromart/marketplace-backend/pkg/enums"
	"github.com/hydromart/marketplace-backend/pkg/logger"
	"github.com/hydromart/marketplace-backend/pkg/metrics"
	"github.com/hydromart/marketplace-backend/pkg/outbox"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "hm:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Ping(context.Context) error { return nil }

type harness struct {
	cfg    *config.Config
	db     *gorm.DB
	router http.Handler
}

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Env: "test", Port: "0"},
		JWT:     config.JWTConfig{Secret: "secret", Issuer: "hydromart", ExpirationMinutes: 60},
		Webhook: config.WebhookConfig{PaymentSecret: "whsec_test", DedupeTTL: time.Hour},
		Orders:  config.OrdersConfig{LedgerPageLimit: 50, LedgerPageMaxCap: 200},
	}
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cfg := testConfig()
	conn, err := gorm.Open(sqlite.Open("file:routes_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	client := dbpkg.NewFromConn(conn)
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	stock, err := inventory.NewLedger(inventory.NewRepository(conn))
	require.NoError(t, err)
	vendors, err := ledger.NewService(ledger.NewRepository(conn), client, outboxSvc)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	ordersSvc, err := orders.NewService(orders.NewRepository(conn), client, outboxSvc, stock, vendors, metrics.NewSettlementMetrics(reg))
	require.NoError(t, err)
	promoGuard, err := promos.NewGuard(promos.NewRepository(conn))
	require.NoError(t, err)
	placer, err := orders.NewPlacer(orders.PlacerParams{
		Repository:    orders.NewRepository(conn),
		DB:            client,
		Outbox:        outboxSvc,
		Stock:         stock,
		Promos:        promoGuard,
		CommissionBps: 1000,
	})
	require.NoError(t, err)
	webhookSvc, err := paymentwebhook.NewService(ordersSvc, logg)
	require.NoError(t, err)

	store := &memoryStore{data: map[string]string{}}
	guard, err := paymentwebhook.NewGuard(store, cfg.Webhook.DedupeTTL)
	require.NoError(t, err)

	router := NewRouter(cfg, logg, Deps{
		DB:               client,
		Redis:            store,
		IdempotencyStore: store,
		Orders:           ordersSvc,
		Placer:           placer,
		Ledger:           vendors,
		PaymentWebhook:   webhookSvc,
		PaymentGuard:     guard,
		MetricsGatherer:  reg,
	})
	return harness{cfg: cfg, db: conn, router: router}
}

func (h harness) token(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return token
}

func (h harness) do(t *testing.T, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type seeded struct {
	order   models.Order
	item    models.OrderItem
	vendor  models.Vendor
	product models.Product
}

func (h harness) seed(t *testing.T, status enums.OrderStatus) seeded {
	t.Helper()
	vendor := models.Vendor{Name: "Blue Spring Water"}
	require.NoError(t, h.db.Create(&vendor).Error)
	product := models.Product{Name: "Spring Water 19L", VendorID: &vendor.ID, PriceCents: 150, Stock: 10}
	require.NoError(t, h.db.Create(&product).Error)

	tranID := "TRX-" + uuid.NewString()[:8]
	order := models.Order{
		OrderNumber:   "HM-" + uuid.NewString()[:8],
		UserID:        uuid.New(),
		Status:        status,
		PaymentStatus: enums.PaymentStatusPending,
		SubtotalCents: 300,
		TranID:        &tranID,
	}
	order.TotalCents = order.ComputeTotal()
	require.NoError(t, h.db.Create(&order).Error)
	item := models.OrderItem{
		OrderID:           order.ID,
		ProductID:         product.ID,
		VendorID:          &vendor.ID,
		Status:            enums.OrderItemStatusPending,
		Quantity:          2,
		PriceCents:        150,
		VendorAmountCents: 270,
	}
	require.NoError(t, h.db.Create(&item).Error)
	return seeded{order: order, item: item, vendor: vendor, product: product}
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	h := newHarness(t)
	s := h.seed(t, enums.OrderStatusPending)
	path := "/api/v1/admin/orders/" + s.order.OrderNumber

	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, path, "", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, path, h.token(t, enums.RoleVendor), "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, path, h.token(t, enums.RoleCustomer), "", nil).Code)

	rec := h.do(t, http.MethodGet, path, h.token(t, enums.RoleAdmin), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), s.order.OrderNumber)

	byID := h.do(t, http.MethodGet, "/api/v1/admin/orders/"+s.order.ID.String(), h.token(t, enums.RoleAdmin), "", nil)
	require.Equal(t, http.StatusOK, byID.Code)

	missing := h.do(t, http.MethodGet, "/api/v1/admin/orders/HM-missing", h.token(t, enums.RoleAdmin), "", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestDeliveryThroughRouterCreditsVendorOnce(t *testing.T) {
	h := newHarness(t)
	s := h.seed(t, enums.OrderStatusPaid)
	admin := h.token(t, enums.RoleAdmin)
	path := "/api/v1/admin/orders/" + s.order.OrderNumber
	body := `{"itemId":"` + s.item.ID.String() + `","itemStatus":"DELIVERED"}`

	rec := h.do(t, http.MethodPatch, path, admin, body, map[string]string{"Idempotency-Key": "deliver-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	replay := h.do(t, http.MethodPatch, path, admin, body, map[string]string{"Idempotency-Key": "deliver-1"})
	require.Equal(t, http.StatusOK, replay.Code)
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))

	again := h.do(t, http.MethodPatch, path, admin, body, map[string]string{"Idempotency-Key": "deliver-2"})
	require.Equal(t, http.StatusOK, again.Code)

	var vendor models.Vendor
	require.NoError(t, h.db.First(&vendor, "id = ?", s.vendor.ID).Error)
	require.Equal(t, 270, vendor.BalanceCents)

	ledgerRec := h.do(t, http.MethodGet, "/api/v1/admin/vendors/"+s.vendor.ID.String()+"/ledger", admin, "", nil)
	require.Equal(t, http.StatusOK, ledgerRec.Code)
	var page struct {
		Data struct {
			BalanceCents int               `json:"balance_cents"`
			Entries      []json.RawMessage `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ledgerRec.Body.Bytes(), &page))
	require.Equal(t, 270, page.Data.BalanceCents)
	require.Len(t, page.Data.Entries, 1)
}

func TestPatchRequiresIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	s := h.seed(t, enums.OrderStatusPaid)
	rec := h.do(t, http.MethodPatch, "/api/v1/admin/orders/"+s.order.OrderNumber, h.token(t, enums.RoleAdmin), `{"status":"PROCESSING"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelThroughRouterRestocks(t *testing.T) {
	h := newHarness(t)
	s := h.seed(t, enums.OrderStatusPending)
	admin := h.token(t, enums.RoleAdmin)
	path := "/api/v1/admin/orders/" + s.order.OrderNumber

	rec := h.do(t, http.MethodDelete, path, admin, `{"reason":"duplicate order"}`, map[string]string{"Idempotency-Key": "cancel-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var product models.Product
	require.NoError(t, h.db.First(&product, "id = ?", s.product.ID).Error)
	require.Equal(t, 12, product.Stock)

	shipped := h.seed(t, enums.OrderStatusShipped)
	rec = h.do(t, http.MethodDelete, "/api/v1/admin/orders/"+shipped.order.OrderNumber, admin, "", map[string]string{"Idempotency-Key": "cancel-2"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPaymentWebhookThroughRouter(t *testing.T) {
	h := newHarness(t)
	s := h.seed(t, enums.OrderStatusPending)
	body := `{"tranId":"` + *s.order.TranID + `","status":"VALID"}`
	sig := paymentwebhook.Sign([]byte(h.cfg.Webhook.PaymentSecret), []byte(body))

	rec := h.do(t, http.MethodPost, "/api/v1/webhooks/payments", "", body, map[string]string{paymentwebhook.SignatureHeader: sig})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var order models.Order
	require.NoError(t, h.db.First(&order, "id = ?", s.order.ID).Error)
	require.Equal(t, enums.OrderStatusPaid, order.Status)
	require.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)

	unsigned := h.do(t, http.MethodPost, "/api/v1/webhooks/payments", "", body, nil)
	require.Equal(t, http.StatusUnauthorized, unsigned.Code)
}

func TestPlaceOrderThroughRouter(t *testing.T) {
	h := newHarness(t)
	product := models.Product{Name: "Mineral Water 1.5L", PriceCents: 90, Stock: 6}
	require.NoError(t, h.db.Create(&product).Error)
	customer := h.token(t, enums.RoleCustomer)
	body := `{"items":[{"productId":"` + product.ID.String() + `","quantity":4}],"shippingCents":100}`

	require.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/v1/orders", "", body, nil).Code)
	require.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/v1/orders", customer, body, nil).Code)

	rec := h.do(t, http.MethodPost, "/api/v1/orders", customer, body, map[string]string{"Idempotency-Key": "place-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	replay := h.do(t, http.MethodPost, "/api/v1/orders", customer, body, map[string]string{"Idempotency-Key": "place-1"})
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))

	var placed struct {
		Data struct {
			TranID string `json:"tran_id"`
			Total  struct {
				Cents int `json:"cents"`
			} `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	require.Equal(t, 460, placed.Data.Total.Cents)

	var stocked models.Product
	require.NoError(t, h.db.First(&stocked, "id = ?", product.ID).Error)
	require.Equal(t, 2, stocked.Stock)

	short := h.do(t, http.MethodPost, "/api/v1/orders", customer, body, map[string]string{"Idempotency-Key": "place-2"})
	require.Equal(t, http.StatusUnprocessableEntity, short.Code)

	webhook := `{"tranId":"` + placed.Data.TranID + `","status":"VALID"}`
	sig := paymentwebhook.Sign([]byte(h.cfg.Webhook.PaymentSecret), []byte(webhook))
	paid := h.do(t, http.MethodPost, "/api/v1/webhooks/payments", "", webhook, map[string]string{paymentwebhook.SignatureHeader: sig})
	require.Equal(t, http.StatusOK, paid.Code, paid.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/live", "", "", nil).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/ready", "", "", nil).Code)

	rec := h.do(t, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
