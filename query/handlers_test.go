package query

import (
	"context"
	"errors"
	"net/http"
	"testing"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-payments/adapters/gocommand"
	"github.com/goliatone/go-payments/core"
)

func TestGetPaymentQuery_DelegatesToReader(t *testing.T) {
	reader := &stubReader{
		getPaymentFn: func(_ context.Context, merchantID string, paymentID string) (core.Payment, error) {
			if merchantID != "mrc_1" || paymentID != "pay_1" {
				t.Fatalf("unexpected lookup %q %q", merchantID, paymentID)
			}
			return core.Payment{ID: paymentID, Status: core.PaymentStatusSuccess}, nil
		},
	}
	got, err := NewGetPaymentQuery(reader).Query(context.Background(), GetPaymentMessage{MerchantID: "mrc_1", PaymentID: "pay_1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got.Status != core.PaymentStatusSuccess {
		t.Fatalf("unexpected payment %+v", got)
	}
}

func TestWebhookLogQueries_DelegateToLogReader(t *testing.T) {
	logs := &stubLogReader{logs: []core.WebhookLog{{ID: "log_1", MerchantID: "mrc_1"}, {ID: "log_2", MerchantID: "mrc_1"}}}
	list, err := NewListWebhookLogsQuery(logs).Query(context.Background(), ListWebhookLogsMessage{MerchantID: "mrc_1", Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || logs.lastLimit != 1 {
		t.Fatalf("expected limit to pass through, got %d logs limit=%d", len(list), logs.lastLimit)
	}
	one, err := NewGetWebhookLogQuery(logs).Query(context.Background(), GetWebhookLogMessage{MerchantID: "mrc_1", LogID: "log_2"})
	if err != nil || one.ID != "log_2" {
		t.Fatalf("expected log_2, got %+v err=%v", one, err)
	}
}

func TestMessages_ValidateReturnsRichError(t *testing.T) {
	err := (GetPaymentMessage{MerchantID: "mrc_1"}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 || validation[0].Field != "payment_id" {
		t.Fatalf("expected payment_id validation field, got %+v", validation)
	}

	if err := (ListWebhookLogsMessage{MerchantID: "mrc_1", Limit: -1}).Validate(); err == nil {
		t.Fatalf("expected negative limit to be rejected")
	}
	if (JobStatusMessage{}).Type() != TypeJobStatus {
		t.Fatalf("unexpected job status message type")
	}
}

func TestQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *GetOrderQuery
	_, err := q.Query(context.Background(), GetOrderMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.ErrorCodeInternal {
		t.Fatalf("unexpected envelope %+v", rich)
	}
}

func TestRegister_QueriesDispatchThroughGoCommand(t *testing.T) {
	reader := &stubReader{
		jobStatusFn: func(context.Context) (core.JobStatusReport, error) {
			return core.JobStatusReport{TestMode: true}, nil
		},
	}
	adapter := gocommand.NewRegistryAdapter(gocmd.NewRegistry())
	subscriptions, err := Register(adapter, reader, &stubLogReader{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	}()
	if len(subscriptions) != 11 {
		t.Fatalf("expected 11 query subscriptions, got %d", len(subscriptions))
	}

	report, err := gocommand.Query[JobStatusMessage, core.JobStatusReport](context.Background(), JobStatusMessage{})
	if err != nil {
		t.Fatalf("query job status: %v", err)
	}
	if !report.TestMode {
		t.Fatalf("expected test mode report")
	}
}

var errNotStubbed = errors.New("not stubbed")

type stubReader struct {
	getPaymentFn func(context.Context, string, string) (core.Payment, error)
	jobStatusFn  func(context.Context) (core.JobStatusReport, error)
}

func (s *stubReader) GetOrder(context.Context, string, string) (core.Order, error) {
	return core.Order{}, errNotStubbed
}

func (s *stubReader) ListOrders(context.Context, string) ([]core.Order, error) {
	return nil, errNotStubbed
}

func (s *stubReader) GetPayment(ctx context.Context, merchantID string, paymentID string) (core.Payment, error) {
	if s.getPaymentFn == nil {
		return core.Payment{}, errNotStubbed
	}
	return s.getPaymentFn(ctx, merchantID, paymentID)
}

func (s *stubReader) ListPayments(context.Context, string) ([]core.Payment, error) {
	return nil, errNotStubbed
}

func (s *stubReader) ListPaymentLogs(context.Context, string, string) ([]core.PaymentLog, error) {
	return nil, errNotStubbed
}

func (s *stubReader) GetRefund(context.Context, string, string) (core.Refund, error) {
	return core.Refund{}, errNotStubbed
}

func (s *stubReader) ListRefunds(context.Context, string, string) ([]core.Refund, error) {
	return nil, errNotStubbed
}

func (s *stubReader) ListWebhooks(context.Context, string) ([]core.Webhook, error) {
	return nil, errNotStubbed
}

func (s *stubReader) JobStatus(ctx context.Context) (core.JobStatusReport, error) {
	if s.jobStatusFn == nil {
		return core.JobStatusReport{}, errNotStubbed
	}
	return s.jobStatusFn(ctx)
}

type stubLogReader struct {
	logs      []core.WebhookLog
	lastLimit int
}

func (s *stubLogReader) ListLogs(_ context.Context, _ string, limit int) ([]core.WebhookLog, error) {
	s.lastLimit = limit
	if limit > 0 && limit < len(s.logs) {
		return s.logs[:limit], nil
	}
	return s.logs, nil
}

func (s *stubLogReader) GetLog(_ context.Context, _ string, logID string) (core.WebhookLog, error) {
	for _, log := range s.logs {
		if log.ID == logID {
			return log, nil
		}
	}
	return core.WebhookLog{}, core.NotFoundError("Webhook log", logID)
}
