package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-payments/adapters/gocommand"
	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
	paymentsquery "github.com/goliatone/go-payments/query"
	memqueue "github.com/goliatone/go-payments/queue/memory"
	memstore "github.com/goliatone/go-payments/store/memory"
	"github.com/goliatone/go-payments/webhooks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type gatewayFixture struct {
	server   *Server
	service  *core.Service
	broker   *memqueue.Broker
	merchant core.Merchant
}

func newGatewayFixture(t *testing.T, checks map[string]HealthCheck) *gatewayFixture {
	t.Helper()
	store := memstore.New()
	cfg := core.DefaultConfig()
	cfg.Processing.Mode = core.ModeTest
	broker := memqueue.New(cfg.Queue)
	t.Cleanup(broker.Close)

	service, err := core.NewService(cfg,
		core.WithRepositoryFactory(store),
		core.WithJobEnqueuer(broker),
		core.WithQueueInspector(broker),
		core.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	merchant, _, err := service.SeedTestMerchant(context.Background())
	if err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	deliverer := webhooks.NewDeliverer(store.WebhookLogStore(), store.WebhookStore(),
		webhooks.SenderFunc(func(context.Context, webhooks.Request) (webhooks.Response, error) {
			return webhooks.Response{StatusCode: http.StatusOK}, nil
		}))

	adapter, err := gocommand.NewGatewayRegistryAdapter()
	if err != nil {
		t.Fatalf("registry adapter: %v", err)
	}
	commands, err := paymentscommand.Register(adapter, service, deliverer)
	if err != nil {
		t.Fatalf("register commands: %v", err)
	}
	queries, err := paymentsquery.Register(adapter, service, deliverer)
	if err != nil {
		t.Fatalf("register queries: %v", err)
	}
	t.Cleanup(func() {
		for _, sub := range append(commands, queries...) {
			sub.Unsubscribe()
		}
	})

	server, err := NewServer(Options{
		Authenticator: service,
		Idempotency:   service.Idempotency(),
		TestMerchant: func(ctx context.Context) (core.Merchant, error) {
			merchant, _, err := service.SeedTestMerchant(ctx)
			return merchant, err
		},
		HealthChecks: checks,
		Now:          func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &gatewayFixture{server: server, service: service, broker: broker, merchant: merchant}
}

type requestOption func(*http.Request)

func withMerchant(merchant core.Merchant) requestOption {
	return func(r *http.Request) {
		r.Header.Set(HeaderAPIKey, merchant.APIKey)
		r.Header.Set(HeaderAPISecret, merchant.APISecret)
	}
}

func withIdempotencyKey(key string) requestOption {
	return func(r *http.Request) { r.Header.Set(HeaderIdempotencyKey, key) }
}

func (f *gatewayFixture) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var envelope errorEnvelope
	decodeJSON(t, rec, &envelope)
	if envelope.Error.Code != code {
		t.Fatalf("expected error code %q, got %+v", code, envelope.Error)
	}
	if envelope.Error.Description == "" {
		t.Fatalf("expected error description")
	}
}

func (f *gatewayFixture) createOrder(t *testing.T, amount int64) orderView {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/orders", createOrderBody{Amount: amount}, withMerchant(f.merchant))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", rec.Code, rec.Body.String())
	}
	var order orderView
	decodeJSON(t, rec, &order)
	return order
}

func TestAuthentication(t *testing.T) {
	f := newGatewayFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/orders", nil)
	expectErrorCode(t, rec, http.StatusUnauthorized, core.ErrorCodeAuthentication)

	wrong := f.merchant
	wrong.APISecret = "not-the-secret"
	rec = f.do(t, http.MethodGet, "/api/v1/orders", nil, withMerchant(wrong))
	expectErrorCode(t, rec, http.StatusUnauthorized, core.ErrorCodeAuthentication)

	rec = f.do(t, http.MethodGet, "/api/v1/orders", nil, withMerchant(f.merchant))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected authenticated list, got %d", rec.Code)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestOrders(t *testing.T) {
	f := newGatewayFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", createOrderBody{Amount: 99}, withMerchant(f.merchant))
	expectErrorCode(t, rec, http.StatusBadRequest, core.ErrorCodeBadRequest)

	order := f.createOrder(t, 500)
	if order.Status != string(core.OrderStatusCreated) || order.Currency != core.DefaultCurrency {
		t.Fatalf("unexpected order %+v", order)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, nil, withMerchant(f.merchant))
	if rec.Code != http.StatusOK {
		t.Fatalf("get order: %d", rec.Code)
	}

	other, err := f.service.CreateMerchant(context.Background(), core.CreateMerchantRequest{
		Name: "Other", Email: "other@example.com", APIKey: "key_other", APISecret: "secret_other",
	})
	if err != nil {
		t.Fatalf("create merchant: %v", err)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, nil, withMerchant(other))
	expectErrorCode(t, rec, http.StatusNotFound, core.ErrorCodeNotFound)
}

func TestCreatePayment_IdempotentReplay(t *testing.T) {
	f := newGatewayFixture(t, nil)
	order := f.createOrder(t, 500)
	body := createPaymentBody{OrderID: order.ID, Method: "upi", VPA: "a@bank"}

	first := f.do(t, http.MethodPost, "/api/v1/payments", body, withMerchant(f.merchant), withIdempotencyKey("key-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("create payment: %d %s", first.Code, first.Body.String())
	}
	second := f.do(t, http.MethodPost, "/api/v1/payments", body, withMerchant(f.merchant), withIdempotencyKey("key-1"))
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status: %d", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("expected byte identical replay\nfirst:  %s\nsecond: %s", first.Body.String(), second.Body.String())
	}
	if second.Header().Get(HeaderReplayed) != "true" {
		t.Fatalf("expected replay header")
	}
	if jobs := f.broker.Messages(core.JobIDPaymentProcess); len(jobs) != 1 {
		t.Fatalf("expected exactly one payment job, got %d", len(jobs))
	}

	changed := body
	changed.VPA = "b@bank"
	conflict := f.do(t, http.MethodPost, "/api/v1/payments", changed, withMerchant(f.merchant), withIdempotencyKey("key-1"))
	expectErrorCode(t, conflict, http.StatusConflict, core.ErrorCodeIdempotencyConflict)

	var payment paymentView
	decodeJSON(t, first, &payment)
	if payment.Status != string(core.PaymentStatusPending) || payment.Method != "upi" {
		t.Fatalf("unexpected payment %+v", payment)
	}
}

func TestCreatePayment_ValidatesCard(t *testing.T) {
	f := newGatewayFixture(t, nil)
	order := f.createOrder(t, 500)

	rec := f.do(t, http.MethodPost, "/api/v1/payments", createPaymentBody{
		OrderID: order.ID,
		Method:  "card",
		Card:    &cardBody{Number: "4111111111111112", ExpiryMonth: "12", ExpiryYear: "2099", CVV: "123"},
	}, withMerchant(f.merchant))
	expectErrorCode(t, rec, http.StatusBadRequest, core.ErrorCodeBadRequest)

	raw := `{"order_id":"` + order.ID + `","method":"card","card":{"number":"4111111111111111","expiry_month":12,"expiry_year":2099,"cvv":"123"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewBufferString(raw))
	req.Header.Set("Content-Type", "application/json")
	withMerchant(f.merchant)(req)
	ok := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(ok, req)
	if ok.Code != http.StatusCreated {
		t.Fatalf("expected numeric expiry to be accepted, got %d %s", ok.Code, ok.Body.String())
	}
	var payment paymentView
	decodeJSON(t, ok, &payment)
	if payment.CardNetwork != "visa" || payment.CardLast4 != "1111" {
		t.Fatalf("unexpected card fields %+v", payment)
	}
}

func TestRefunds_RespectPaymentAmount(t *testing.T) {
	f := newGatewayFixture(t, nil)
	order := f.createOrder(t, 500)
	rec := f.do(t, http.MethodPost, "/api/v1/payments",
		createPaymentBody{OrderID: order.ID, Method: "upi", VPA: "a@bank"}, withMerchant(f.merchant))
	var payment paymentView
	decodeJSON(t, rec, &payment)

	rec = f.do(t, http.MethodPost, "/api/v1/refunds", createRefundBody{PaymentID: payment.ID, Amount: 600}, withMerchant(f.merchant))
	expectErrorCode(t, rec, http.StatusBadRequest, core.ErrorCodeRefundExceedsAmount)

	rec = f.do(t, http.MethodPost, "/api/v1/refunds", createRefundBody{PaymentID: payment.ID, Amount: 300}, withMerchant(f.merchant))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create refund: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/v1/refunds", createRefundBody{PaymentID: payment.ID, Amount: 300}, withMerchant(f.merchant))
	expectErrorCode(t, rec, http.StatusBadRequest, core.ErrorCodeRefundExceedsAmount)

	rec = f.do(t, http.MethodGet, "/api/v1/payments/"+payment.ID+"/refunds", nil, withMerchant(f.merchant))
	var refunds []refundView
	decodeJSON(t, rec, &refunds)
	if len(refunds) != 1 || refunds[0].Amount != 300 || refunds[0].Status != string(core.RefundStatusPending) {
		t.Fatalf("unexpected refunds %+v", refunds)
	}
}

func TestCapture_RequiresSuccessfulPayment(t *testing.T) {
	f := newGatewayFixture(t, nil)
	order := f.createOrder(t, 500)
	rec := f.do(t, http.MethodPost, "/api/v1/payments",
		createPaymentBody{OrderID: order.ID, Method: "upi", VPA: "a@bank"}, withMerchant(f.merchant))
	var payment paymentView
	decodeJSON(t, rec, &payment)

	rec = f.do(t, http.MethodPost, "/api/v1/payments/"+payment.ID+"/capture", nil, withMerchant(f.merchant))
	expectErrorCode(t, rec, http.StatusBadRequest, core.ErrorCodeNotCapturable)

	if _, err := f.service.ProcessPayment(context.Background(), payment.ID); err != nil {
		t.Fatalf("process payment: %v", err)
	}
	rec = f.do(t, http.MethodPost, "/api/v1/payments/"+payment.ID+"/capture", nil, withMerchant(f.merchant))
	if rec.Code != http.StatusOK {
		t.Fatalf("capture: %d %s", rec.Code, rec.Body.String())
	}
	var captured paymentView
	decodeJSON(t, rec, &captured)
	if !captured.Captured || captured.Status != string(core.PaymentStatusSuccess) {
		t.Fatalf("unexpected captured payment %+v", captured)
	}
}

func TestWebhooks_RegisterListAndRetry(t *testing.T) {
	f := newGatewayFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/webhooks?url=https://merchant.example/hooks", nil, withMerchant(f.merchant))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register webhook: %d %s", rec.Code, rec.Body.String())
	}
	var registered webhookView
	decodeJSON(t, rec, &registered)
	if registered.Secret == "" || !registered.Active {
		t.Fatalf("expected secret and active webhook, got %+v", registered)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/webhooks", nil, withMerchant(f.merchant))
	var listed []webhookView
	decodeJSON(t, rec, &listed)
	if len(listed) != 1 || listed[0].Secret != "" {
		t.Fatalf("expected one webhook without secret, got %+v", listed)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/webhooks/"+registered.ID+"/deactivate", nil, withMerchant(f.merchant))
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/webhook-logs/missing/retry", nil, withMerchant(f.merchant))
	expectErrorCode(t, rec, http.StatusNotFound, core.ErrorCodeNotFound)

	rec = f.do(t, http.MethodGet, "/api/v1/webhook-logs?limit=abc", nil, withMerchant(f.merchant))
	expectErrorCode(t, rec, http.StatusBadRequest, core.ErrorCodeBadRequest)
}

func TestOperationalEndpoints(t *testing.T) {
	f := newGatewayFixture(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"queue":    func(context.Context) error { return errors.New("down") },
	})

	rec := f.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected degraded health, got %d", rec.Code)
	}
	var health map[string]any
	decodeJSON(t, rec, &health)
	if health["status"] != "degraded" || health["database"] != "connected" || health["queue"] != "disconnected" {
		t.Fatalf("unexpected health %+v", health)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/test/jobs/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("job status: %d %s", rec.Code, rec.Body.String())
	}
	var status jobStatusView
	decodeJSON(t, rec, &status)
	if !status.TestMode || len(status.Queues) == 0 {
		t.Fatalf("unexpected job status %+v", status)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/test/jobs/reconcile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/test/merchant", nil)
	var merchant map[string]any
	decodeJSON(t, rec, &merchant)
	if merchant["api_key"] != f.merchant.APIKey || merchant["seeded"] != true {
		t.Fatalf("unexpected test merchant %+v", merchant)
	}
}

func TestNewServer_RequiresAuthenticator(t *testing.T) {
	if _, err := NewServer(Options{}); err == nil {
		t.Fatalf("expected error without authenticator")
	}
}
