package payments

import (
	"context"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"

	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
	paymentsquery "github.com/goliatone/go-payments/query"
	memqueue "github.com/goliatone/go-payments/queue/memory"
	memstore "github.com/goliatone/go-payments/store/memory"
)

type stubWebhookLogs struct {
	retried string
}

func (s *stubWebhookLogs) Retry(_ context.Context, _ string, logID string) (core.WebhookLog, error) {
	s.retried = logID
	return core.WebhookLog{ID: logID, Status: core.WebhookLogStatusPending}, nil
}

func (s *stubWebhookLogs) ListLogs(context.Context, string, int) ([]core.WebhookLog, error) {
	return nil, nil
}

func (s *stubWebhookLogs) GetLog(_ context.Context, _ string, logID string) (core.WebhookLog, error) {
	return core.WebhookLog{ID: logID}, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Processing.Mode = core.ModeTest
	svc, err := NewService(cfg,
		WithRepositoryFactory(memstore.New()),
		WithJobEnqueuer(memqueue.New(cfg.Queue)),
		WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestNewFacade_WebhookLogHandlersAreOptional(t *testing.T) {
	svc := newTestService(t)

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Commands().CreatePayment == nil || facade.Queries().JobStatus == nil {
		t.Fatalf("expected gateway handlers to be wired")
	}
	if facade.Commands().RetryWebhook != nil || facade.Queries().GetWebhookLog != nil {
		t.Fatalf("expected webhook log handlers to stay nil without a log source")
	}

	logs := &stubWebhookLogs{}
	facade, err = NewFacade(svc, WithWebhookLogs(logs))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if err := facade.Commands().RetryWebhook.Execute(context.Background(), paymentscommand.RetryWebhookMessage{
		MerchantID: "mrc_1",
		LogID:      "whl_1",
	}); err != nil {
		t.Fatalf("retry webhook: %v", err)
	}
	if logs.retried != "whl_1" {
		t.Fatalf("expected retry delegation, got %q", logs.retried)
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	merchant, _, err := svc.SeedTestMerchant(ctx)
	if err != nil {
		t.Fatalf("seed merchant: %v", err)
	}

	collector := gocmd.NewResult[core.Order]()
	err = facade.Commands().CreateOrder.Execute(gocmd.ContextWithResult(ctx, collector), paymentscommand.CreateOrderMessage{
		Request: core.CreateOrderRequest{MerchantID: merchant.ID, Amount: 25000, Currency: "INR"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	order, ok := collector.Load()
	if !ok || order.ID == "" || order.Amount != 25000 {
		t.Fatalf("unexpected order result %+v ok=%v", order, ok)
	}

	got, err := facade.Queries().GetOrder.Query(ctx, paymentsquery.GetOrderMessage{
		MerchantID: merchant.ID,
		OrderID:    order.ID,
	})
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.ID != order.ID || facade.Service() == nil {
		t.Fatalf("unexpected order %+v", got)
	}
}
