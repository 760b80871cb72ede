package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-payments/core"
	memqueue "github.com/goliatone/go-payments/queue/memory"
	memstore "github.com/goliatone/go-payments/store/memory"
)

type gateway struct {
	svc      *core.Service
	store    *memstore.Store
	broker   *memqueue.Broker
	merchant core.Merchant
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newGateway(t *testing.T, mutate func(*core.Config)) *gateway {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Processing.Mode = core.ModeTest
	if mutate != nil {
		mutate(&cfg)
	}
	store := memstore.New()
	broker := memqueue.New(cfg.Queue)
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := core.NewService(cfg,
		core.WithRepositoryFactory(store),
		core.WithJobEnqueuer(broker),
		core.WithQueueInspector(broker),
		core.WithSleeper(func(context.Context, time.Duration) error { return nil }),
		core.WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	merchant, _, err := svc.SeedTestMerchant(context.Background())
	if err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return &gateway{svc: svc, store: store, broker: broker, merchant: merchant, clock: clock}
}

func (g *gateway) order(t *testing.T, amount int64) core.Order {
	t.Helper()
	order, err := g.svc.CreateOrder(context.Background(), core.CreateOrderRequest{
		MerchantID: g.merchant.ID,
		Amount:     amount,
		Currency:   "INR",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (g *gateway) upiPayment(t *testing.T, amount int64) core.Payment {
	t.Helper()
	order := g.order(t, amount)
	payment, err := g.svc.CreatePayment(context.Background(), core.CreatePaymentRequest{
		MerchantID: g.merchant.ID,
		OrderID:    order.ID,
		Method:     core.PaymentMethodUPI,
		VPA:        "user@okbank",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return payment
}

func (g *gateway) events(t *testing.T) []string {
	t.Helper()
	out := []string{}
	for _, msg := range g.broker.Messages(core.JobIDWebhookDeliver) {
		job, err := core.DecodeWebhookJob(msg)
		if err != nil {
			t.Fatalf("decode webhook job: %v", err)
		}
		out = append(out, job.Event)
	}
	return out
}

func textCode(err error) string {
	var rich *goerrors.Error
	if errors.As(err, &rich) {
		return rich.TextCode
	}
	return core.MapError(err).TextCode
}

func TestCreatePayment_PendingWithSingleJob(t *testing.T) {
	g := newGateway(t, nil)
	payment := g.upiPayment(t, 50000)

	if payment.Status != core.PaymentStatusPending || payment.Amount != 50000 {
		t.Fatalf("unexpected payment %+v", payment)
	}
	jobs := g.broker.Messages(core.JobIDPaymentProcess)
	if len(jobs) != 1 {
		t.Fatalf("expected one payment job, got %d", len(jobs))
	}
	job, err := core.DecodePaymentJob(jobs[0])
	if err != nil || job.PaymentID != payment.ID {
		t.Fatalf("unexpected job %+v err=%v", job, err)
	}
}

func TestCreatePayment_ValidatesMethodDetails(t *testing.T) {
	g := newGateway(t, nil)
	order := g.order(t, 1000)

	cases := map[string]core.CreatePaymentRequest{
		"bad vpa":     {Method: core.PaymentMethodUPI, VPA: "not-a-vpa"},
		"missing vpa": {Method: core.PaymentMethodUPI},
		"bad luhn":    {Method: core.PaymentMethodCard, Card: &core.CardDetails{Number: "4111111111111112", ExpiryMonth: "12", ExpiryYear: "2030"}},
		"expired":     {Method: core.PaymentMethodCard, Card: &core.CardDetails{Number: "4111111111111111", ExpiryMonth: "01", ExpiryYear: "2020"}},
		"bad cvv":     {Method: core.PaymentMethodCard, Card: &core.CardDetails{Number: "4111111111111111", ExpiryMonth: "12", ExpiryYear: "30", CVV: "12a"}},
		"no card":     {Method: core.PaymentMethodCard},
		"wallet":      {Method: "wallet"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			req.MerchantID = g.merchant.ID
			req.OrderID = order.ID
			_, err := g.svc.CreatePayment(context.Background(), req)
			if !core.IsValidation(err) || textCode(err) != core.ErrorCodeBadRequest {
				t.Fatalf("expected bad request, got %v", err)
			}
		})
	}
	if n := g.broker.Len(g.svc.Config().Queue.PaymentQueue); n != 0 {
		t.Fatalf("expected no jobs for rejected payments, got %d", n)
	}
}

func TestCreatePayment_CardDetailsDerived(t *testing.T) {
	g := newGateway(t, nil)
	order := g.order(t, 1000)
	payment, err := g.svc.CreatePayment(context.Background(), core.CreatePaymentRequest{
		MerchantID: g.merchant.ID,
		OrderID:    order.ID,
		Method:     core.PaymentMethodCard,
		Card:       &core.CardDetails{Number: "5555 5555 5555 4444", ExpiryMonth: "3", ExpiryYear: "26", CVV: "123"},
	})
	if err != nil {
		t.Fatalf("create card payment: %v", err)
	}
	if payment.CardNetwork != core.CardNetworkMastercard || payment.CardLast4 != "4444" {
		t.Fatalf("unexpected card fields %q %q", payment.CardNetwork, payment.CardLast4)
	}
}

func TestCreatePayment_OtherMerchantOrderIsNotFound(t *testing.T) {
	g := newGateway(t, nil)
	order := g.order(t, 1000)
	other, err := g.svc.CreateMerchant(context.Background(), core.CreateMerchantRequest{Name: "Other", Email: "other@example.com"})
	if err != nil {
		t.Fatalf("create merchant: %v", err)
	}
	_, err = g.svc.CreatePayment(context.Background(), core.CreatePaymentRequest{
		MerchantID: other.ID,
		OrderID:    order.ID,
		Method:     core.PaymentMethodUPI,
		VPA:        "user@okbank",
	})
	if !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessPayment_TerminalStatusIsFinal(t *testing.T) {
	ctx := context.Background()
	g := newGateway(t, nil)
	payment := g.upiPayment(t, 50000)

	outcome, err := g.svc.ProcessPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if !outcome.Succeeded || outcome.Payment.Status != core.PaymentStatusSuccess || outcome.Order.Status != core.OrderStatusPaid {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	again, err := g.svc.ProcessPayment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("reprocess payment: %v", err)
	}
	if !again.AlreadySettled || again.Payment.Status != core.PaymentStatusSuccess {
		t.Fatalf("expected settled payment to stay final, got %+v", again)
	}
	events := g.events(t)
	if len(events) != 1 || events[0] != core.EventPaymentSuccess {
		t.Fatalf("expected exactly one payment.success event, got %v", events)
	}

	order, err := g.svc.GetOrder(ctx, g.merchant.ID, payment.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != core.OrderStatusPaid {
		t.Fatalf("expected paid order, got %s", order.Status)
	}
	_, err = g.svc.CreatePayment(ctx, core.CreatePaymentRequest{
		MerchantID: g.merchant.ID,
		OrderID:    order.ID,
		Method:     core.PaymentMethodUPI,
		VPA:        "user@okbank",
	})
	if !core.IsValidation(err) {
		t.Fatalf("expected paid order to reject new payments, got %v", err)
	}
}

func TestProcessPayment_ConfiguredFailure(t *testing.T) {
	g := newGateway(t, func(cfg *core.Config) { cfg.Processing.TestOutcome = core.OutcomeFailure })
	payment := g.upiPayment(t, 1000)

	outcome, err := g.svc.ProcessPayment(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if outcome.Succeeded || outcome.Payment.Status != core.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %+v", outcome.Payment)
	}
	if outcome.Payment.ErrorCode != core.PaymentErrorFailed || outcome.Order.Status != core.OrderStatusFailed {
		t.Fatalf("unexpected failure fields %+v %+v", outcome.Payment, outcome.Order)
	}
	if events := g.events(t); len(events) != 1 || events[0] != core.EventPaymentFailed {
		t.Fatalf("expected payment.failed event, got %v", events)
	}
}

func TestProcessPayment_MissingPaymentIsNotRetryable(t *testing.T) {
	g := newGateway(t, nil)
	_, err := g.svc.ProcessPayment(context.Background(), "pay_missing")
	if !core.IsNotFound(err) || core.IsRetryable(err) {
		t.Fatalf("expected non-retryable not found, got %v", err)
	}
}

func TestCapturePayment_OnlyOnceAndOnlyWhenSuccessful(t *testing.T) {
	ctx := context.Background()
	g := newGateway(t, nil)
	payment := g.upiPayment(t, 1000)

	_, err := g.svc.CapturePayment(ctx, g.merchant.ID, payment.ID)
	if textCode(err) != core.ErrorCodeNotCapturable {
		t.Fatalf("expected not capturable, got %v", err)
	}
	if _, err := g.svc.ProcessPayment(ctx, payment.ID); err != nil {
		t.Fatalf("process payment: %v", err)
	}

	for i := 0; i < 2; i++ {
		captured, err := g.svc.CapturePayment(ctx, g.merchant.ID, payment.ID)
		if err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
		if !captured.Captured {
			t.Fatalf("expected captured payment")
		}
	}
	captures := 0
	for _, event := range g.events(t) {
		if event == core.EventPaymentCaptured {
			captures++
		}
	}
	if captures != 1 {
		t.Fatalf("expected one capture event, got %d", captures)
	}
}

func TestCreateRefund_ConcurrentRequestsNeverExceedPayment(t *testing.T) {
	ctx := context.Background()
	g := newGateway(t, nil)
	payment := g.upiPayment(t, 500)
	if _, err := g.svc.ProcessPayment(ctx, payment.ID); err != nil {
		t.Fatalf("process payment: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.svc.CreateRefund(ctx, core.CreateRefundRequest{
				MerchantID: g.merchant.ID,
				PaymentID:  payment.ID,
				Amount:     100,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case textCode(err) == core.ErrorCodeRefundExceedsAmount:
				rejected++
			default:
				t.Errorf("unexpected refund error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 5 || rejected != 5 {
		t.Fatalf("expected 5 created and 5 rejected, got %d and %d", created, rejected)
	}
	refunds, err := g.svc.ListRefunds(ctx, g.merchant.ID, payment.ID)
	if err != nil {
		t.Fatalf("list refunds: %v", err)
	}
	var total int64
	for _, refund := range refunds {
		total += refund.Amount
	}
	if total != 500 {
		t.Fatalf("expected refunded total 500, got %d", total)
	}
	if jobs := g.broker.Messages(core.JobIDRefundProcess); len(jobs) != 5 {
		t.Fatalf("expected 5 refund jobs, got %d", len(jobs))
	}
}

func TestProcessRefund_EmitsProcessedEvent(t *testing.T) {
	ctx := context.Background()
	g := newGateway(t, nil)
	payment := g.upiPayment(t, 1000)
	if _, err := g.svc.ProcessPayment(ctx, payment.ID); err != nil {
		t.Fatalf("process payment: %v", err)
	}
	refund, err := g.svc.CreateRefund(ctx, core.CreateRefundRequest{
		MerchantID: g.merchant.ID,
		PaymentID:  payment.ID,
		Amount:     400,
		Reason:     "damaged",
	})
	if err != nil {
		t.Fatalf("create refund: %v", err)
	}
	outcome, err := g.svc.ProcessRefund(ctx, refund.ID)
	if err != nil {
		t.Fatalf("process refund: %v", err)
	}
	if outcome.Refund.Status != core.RefundStatusProcessed {
		t.Fatalf("expected processed refund, got %s", outcome.Refund.Status)
	}
	events := g.events(t)
	if events[len(events)-1] != core.RefundEventName(core.RefundStatusProcessed) {
		t.Fatalf("expected refund.processed event last, got %v", events)
	}
}

func TestReconcile_FailsStuckPaymentOnceAndAlerts(t *testing.T) {
	ctx := context.Background()
	g := newGateway(t, nil)
	stuck := g.upiPayment(t, 1000)
	fresh := g.upiPayment(t, 1000)

	if _, err := g.store.PaymentStore().MarkProcessing(ctx, stuck.ID, g.clock.Now()); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	g.clock.Advance(10 * time.Minute)
	if _, err := g.store.PaymentStore().MarkProcessing(ctx, fresh.ID, g.clock.Now()); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	stats, err := g.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.Scanned != 1 || stats.Reconciled != 1 || stats.Alerted != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	again, err := g.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if again.Reconciled != 0 || again.Alerted != 0 {
		t.Fatalf("expected idempotent sweep, got %+v", again)
	}

	payment, err := g.svc.GetPayment(ctx, g.merchant.ID, stuck.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.Status != core.PaymentStatusFailed || payment.ErrorCode != core.PaymentErrorStuckProcessing {
		t.Fatalf("unexpected reconciled payment %+v", payment)
	}
	logs, err := g.svc.ListPaymentLogs(ctx, g.merchant.ID, stuck.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].WorkerID != core.ReconciliationWorkerID {
		t.Fatalf("expected one reconciliation log, got %+v", logs)
	}
	alerts := g.broker.Messages(core.JobIDAlert)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	alert, err := core.DecodeAlertJob(alerts[0])
	if err != nil || alert.PaymentID != stuck.ID || alert.Issue != core.AlertIssueStuckProcessing {
		t.Fatalf("unexpected alert %+v err=%v", alert, err)
	}

	// the worker still owns the fresh payment and may settle it
	outcome, err := g.svc.ProcessPayment(ctx, fresh.ID)
	if err != nil || outcome.Payment.Status != core.PaymentStatusSuccess {
		t.Fatalf("expected fresh payment to settle, got %+v err=%v", outcome.Payment, err)
	}
}

func TestJobStatus_ReportsQueuesAndMode(t *testing.T) {
	g := newGateway(t, nil)
	g.upiPayment(t, 1000)

	report, err := g.svc.JobStatus(context.Background())
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	if !report.TestMode {
		t.Fatalf("expected test mode")
	}
	found := false
	for _, queue := range report.Queues {
		if queue.Queue == g.svc.Config().Queue.PaymentQueue && queue.Depth == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected payment queue depth in %+v", report.Queues)
	}
}

func TestNewService_RequiresEnqueuerAndStores(t *testing.T) {
	cfg := core.DefaultConfig()
	if _, err := core.NewService(cfg, core.WithRepositoryFactory(memstore.New())); err == nil {
		t.Fatalf("expected missing enqueuer error")
	}
	if _, err := core.NewService(cfg, core.WithJobEnqueuer(memqueue.New(cfg.Queue))); err == nil {
		t.Fatalf("expected missing store error")
	}
	cfg.Processing.Mode = "staging"
	_, err := core.NewService(cfg,
		core.WithRepositoryFactory(memstore.New()),
		core.WithJobEnqueuer(memqueue.New(cfg.Queue)),
	)
	if err == nil {
		t.Fatalf("expected invalid mode error")
	}
}
