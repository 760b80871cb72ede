package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-payments/adapters/gocommand"
	"github.com/goliatone/go-payments/core"
)

func TestCreatePaymentCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	called := false
	svc := &stubMutatingService{
		createPaymentFn: func(_ context.Context, req core.CreatePaymentRequest) (core.Payment, error) {
			called = true
			if req.OrderID != "order_1" || req.IdempotencyKey != "k1" {
				t.Fatalf("unexpected request %+v", req)
			}
			return core.Payment{ID: "pay_1", Status: core.PaymentStatusPending}, nil
		},
	}

	cmd := NewCreatePaymentCommand(svc)
	collector := gocmd.NewResult[core.Payment]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, CreatePaymentMessage{Request: core.CreatePaymentRequest{
		MerchantID:     "mrc_1",
		OrderID:        "order_1",
		Method:         core.PaymentMethodUPI,
		VPA:            "user@bank",
		IdempotencyKey: "k1",
	}})
	if err != nil {
		t.Fatalf("execute create payment: %v", err)
	}
	if !called {
		t.Fatalf("expected create payment invocation")
	}
	result, ok := collector.Load()
	if !ok || result.ID != "pay_1" {
		t.Fatalf("expected stored payment result, got %+v ok=%v", result, ok)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("capture", func(t *testing.T) {
		svc := &stubMutatingService{
			captureFn: func(_ context.Context, merchantID string, paymentID string) (core.Payment, error) {
				if merchantID != "mrc_1" || paymentID != "pay_1" {
					t.Fatalf("unexpected capture payload %q %q", merchantID, paymentID)
				}
				return core.Payment{ID: paymentID, Captured: true}, nil
			},
		}
		collector := gocmd.NewResult[core.Payment]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewCapturePaymentCommand(svc).Execute(ctx, CapturePaymentMessage{MerchantID: "mrc_1", PaymentID: "pay_1"}); err != nil {
			t.Fatalf("execute capture: %v", err)
		}
		if got, _ := collector.Load(); !got.Captured {
			t.Fatalf("expected captured payment result")
		}
	})

	t.Run("refund error bubbles", func(t *testing.T) {
		svc := &stubMutatingService{
			createRefundFn: func(context.Context, core.CreateRefundRequest) (core.Refund, error) {
				return core.Refund{}, core.RefundExceedsAmountError("pay_1")
			},
		}
		err := NewCreateRefundCommand(svc).Execute(context.Background(), CreateRefundMessage{Request: core.CreateRefundRequest{
			MerchantID: "mrc_1", PaymentID: "pay_1", Amount: 100,
		}})
		if core.MapError(err).TextCode != core.ErrorCodeRefundExceedsAmount {
			t.Fatalf("expected refund limit error, got %v", err)
		}
	})

	t.Run("reconcile", func(t *testing.T) {
		svc := &stubMutatingService{
			reconcileFn: func(context.Context) (core.ReconcileStats, error) {
				return core.ReconcileStats{Scanned: 2, Reconciled: 1}, nil
			},
		}
		collector := gocmd.NewResult[core.ReconcileStats]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewReconcileCommand(svc).Execute(ctx, ReconcileMessage{}); err != nil {
			t.Fatalf("execute reconcile: %v", err)
		}
		if got, _ := collector.Load(); got.Reconciled != 1 {
			t.Fatalf("unexpected reconcile stats %+v", got)
		}
	})

	t.Run("retry webhook", func(t *testing.T) {
		retrier := stubRetrier(func(_ context.Context, merchantID string, logID string) (core.WebhookLog, error) {
			if merchantID != "mrc_1" || logID != "log_1" {
				t.Fatalf("unexpected retry payload %q %q", merchantID, logID)
			}
			return core.WebhookLog{ID: logID, Status: core.WebhookLogStatusPending}, nil
		})
		if err := NewRetryWebhookCommand(retrier).Execute(context.Background(), RetryWebhookMessage{MerchantID: "mrc_1", LogID: "log_1"}); err != nil {
			t.Fatalf("execute retry: %v", err)
		}
	})
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	cases := []struct {
		name  string
		msg   interface{ Validate() error }
		field string
	}{
		{"order without merchant", CreateOrderMessage{}, "merchant_id"},
		{"order below minimum", CreateOrderMessage{Request: core.CreateOrderRequest{MerchantID: "mrc_1", Amount: 99}}, "amount"},
		{"payment with unknown method", CreatePaymentMessage{Request: core.CreatePaymentRequest{MerchantID: "mrc_1", OrderID: "order_1", Method: "cash"}}, "method"},
		{"refund without amount", CreateRefundMessage{Request: core.CreateRefundRequest{MerchantID: "mrc_1", PaymentID: "pay_1"}}, "amount"},
		{"webhook without url", RegisterWebhookMessage{Request: core.RegisterWebhookRequest{MerchantID: "mrc_1"}}, "url"},
		{"retry without log", RetryWebhookMessage{MerchantID: "mrc_1"}, "log_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.Category != goerrors.CategoryValidation {
				t.Fatalf("expected validation category, got %q", rich.Category)
			}
			if rich.TextCode != core.ErrorCodeBadRequest {
				t.Fatalf("expected %q, got %q", core.ErrorCodeBadRequest, rich.TextCode)
			}
		})
	}

	upper := CreatePaymentMessage{Request: core.CreatePaymentRequest{MerchantID: "mrc_1", OrderID: "order_1", Method: "UPI"}}
	if err := upper.Validate(); err != nil {
		t.Fatalf("expected method casing to be normalised, got %v", err)
	}
}

func TestCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *CreateOrderCommand
	err := cmd.Execute(context.Background(), CreateOrderMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

func TestRegister_DispatchesThroughGoCommand(t *testing.T) {
	created := 0
	svc := &stubMutatingService{
		createOrderFn: func(_ context.Context, req core.CreateOrderRequest) (core.Order, error) {
			created++
			return core.Order{ID: "order_1", MerchantID: req.MerchantID, Amount: req.Amount}, nil
		},
	}
	adapter := gocommand.NewRegistryAdapter(gocmd.NewRegistry())
	subscriptions, err := Register(adapter, svc, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	}()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err = gocommand.Dispatch(context.Background(), CreateOrderMessage{Request: core.CreateOrderRequest{MerchantID: "mrc_1", Amount: 50000}})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected one order creation, got %d", created)
	}

	if _, err := Register(nil, svc, nil); err == nil {
		t.Fatalf("expected error without registry adapter")
	}
}

type stubRetrier func(ctx context.Context, merchantID string, logID string) (core.WebhookLog, error)

func (f stubRetrier) Retry(ctx context.Context, merchantID string, logID string) (core.WebhookLog, error) {
	return f(ctx, merchantID, logID)
}

var errNotStubbed = errors.New("not stubbed")

type stubMutatingService struct {
	createOrderFn   func(context.Context, core.CreateOrderRequest) (core.Order, error)
	createPaymentFn func(context.Context, core.CreatePaymentRequest) (core.Payment, error)
	captureFn       func(context.Context, string, string) (core.Payment, error)
	createRefundFn  func(context.Context, core.CreateRefundRequest) (core.Refund, error)
	reconcileFn     func(context.Context) (core.ReconcileStats, error)
}

func (s *stubMutatingService) CreateMerchant(context.Context, core.CreateMerchantRequest) (core.Merchant, error) {
	return core.Merchant{}, errNotStubbed
}

func (s *stubMutatingService) CreateOrder(ctx context.Context, req core.CreateOrderRequest) (core.Order, error) {
	if s.createOrderFn == nil {
		return core.Order{}, errNotStubbed
	}
	return s.createOrderFn(ctx, req)
}

func (s *stubMutatingService) CreatePayment(ctx context.Context, req core.CreatePaymentRequest) (core.Payment, error) {
	if s.createPaymentFn == nil {
		return core.Payment{}, errNotStubbed
	}
	return s.createPaymentFn(ctx, req)
}

func (s *stubMutatingService) CapturePayment(ctx context.Context, merchantID string, paymentID string) (core.Payment, error) {
	if s.captureFn == nil {
		return core.Payment{}, errNotStubbed
	}
	return s.captureFn(ctx, merchantID, paymentID)
}

func (s *stubMutatingService) CreateRefund(ctx context.Context, req core.CreateRefundRequest) (core.Refund, error) {
	if s.createRefundFn == nil {
		return core.Refund{}, errNotStubbed
	}
	return s.createRefundFn(ctx, req)
}

func (s *stubMutatingService) RegisterWebhook(context.Context, core.RegisterWebhookRequest) (core.Webhook, error) {
	return core.Webhook{}, errNotStubbed
}

func (s *stubMutatingService) SetWebhookActive(context.Context, string, string, bool) (core.Webhook, error) {
	return core.Webhook{}, errNotStubbed
}

func (s *stubMutatingService) Reconcile(ctx context.Context) (core.ReconcileStats, error) {
	if s.reconcileFn == nil {
		return core.ReconcileStats{}, errNotStubbed
	}
	return s.reconcileFn(ctx)
}

func (s *stubMutatingService) PurgeIdempotency(context.Context) (int64, error) {
	return 0, errNotStubbed
}
