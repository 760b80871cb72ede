package query

import (
	"context"

	"github.com/goliatone/go-payments/core"
)

// Reader is the read side of core.Service. Every lookup is merchant scoped.
type Reader interface {
	GetOrder(ctx context.Context, merchantID string, orderID string) (core.Order, error)
	ListOrders(ctx context.Context, merchantID string) ([]core.Order, error)
	GetPayment(ctx context.Context, merchantID string, paymentID string) (core.Payment, error)
	ListPayments(ctx context.Context, merchantID string) ([]core.Payment, error)
	ListPaymentLogs(ctx context.Context, merchantID string, paymentID string) ([]core.PaymentLog, error)
	GetRefund(ctx context.Context, merchantID string, refundID string) (core.Refund, error)
	ListRefunds(ctx context.Context, merchantID string, paymentID string) ([]core.Refund, error)
	ListWebhooks(ctx context.Context, merchantID string) ([]core.Webhook, error)
	JobStatus(ctx context.Context) (core.JobStatusReport, error)
}

type WebhookLogReader interface {
	ListLogs(ctx context.Context, merchantID string, limit int) ([]core.WebhookLog, error)
	GetLog(ctx context.Context, merchantID string, logID string) (core.WebhookLog, error)
}

type GetOrderQuery struct {
	reader Reader
}

func NewGetOrderQuery(reader Reader) *GetOrderQuery {
	return &GetOrderQuery{reader: reader}
}

func (q *GetOrderQuery) Query(ctx context.Context, msg GetOrderMessage) (core.Order, error) {
	if q == nil || q.reader == nil {
		return core.Order{}, queryDependencyError("query: order reader is required")
	}
	return q.reader.GetOrder(ctx, msg.MerchantID, msg.OrderID)
}

type ListOrdersQuery struct {
	reader Reader
}

func NewListOrdersQuery(reader Reader) *ListOrdersQuery {
	return &ListOrdersQuery{reader: reader}
}

func (q *ListOrdersQuery) Query(ctx context.Context, msg ListOrdersMessage) ([]core.Order, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: order reader is required")
	}
	return q.reader.ListOrders(ctx, msg.MerchantID)
}

type GetPaymentQuery struct {
	reader Reader
}

func NewGetPaymentQuery(reader Reader) *GetPaymentQuery {
	return &GetPaymentQuery{reader: reader}
}

func (q *GetPaymentQuery) Query(ctx context.Context, msg GetPaymentMessage) (core.Payment, error) {
	if q == nil || q.reader == nil {
		return core.Payment{}, queryDependencyError("query: payment reader is required")
	}
	return q.reader.GetPayment(ctx, msg.MerchantID, msg.PaymentID)
}

type ListPaymentsQuery struct {
	reader Reader
}

func NewListPaymentsQuery(reader Reader) *ListPaymentsQuery {
	return &ListPaymentsQuery{reader: reader}
}

func (q *ListPaymentsQuery) Query(ctx context.Context, msg ListPaymentsMessage) ([]core.Payment, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: payment reader is required")
	}
	return q.reader.ListPayments(ctx, msg.MerchantID)
}

type ListPaymentLogsQuery struct {
	reader Reader
}

func NewListPaymentLogsQuery(reader Reader) *ListPaymentLogsQuery {
	return &ListPaymentLogsQuery{reader: reader}
}

func (q *ListPaymentLogsQuery) Query(ctx context.Context, msg ListPaymentLogsMessage) ([]core.PaymentLog, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: payment reader is required")
	}
	return q.reader.ListPaymentLogs(ctx, msg.MerchantID, msg.PaymentID)
}

type GetRefundQuery struct {
	reader Reader
}

func NewGetRefundQuery(reader Reader) *GetRefundQuery {
	return &GetRefundQuery{reader: reader}
}

func (q *GetRefundQuery) Query(ctx context.Context, msg GetRefundMessage) (core.Refund, error) {
	if q == nil || q.reader == nil {
		return core.Refund{}, queryDependencyError("query: refund reader is required")
	}
	return q.reader.GetRefund(ctx, msg.MerchantID, msg.RefundID)
}

type ListRefundsQuery struct {
	reader Reader
}

func NewListRefundsQuery(reader Reader) *ListRefundsQuery {
	return &ListRefundsQuery{reader: reader}
}

func (q *ListRefundsQuery) Query(ctx context.Context, msg ListRefundsMessage) ([]core.Refund, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: refund reader is required")
	}
	return q.reader.ListRefunds(ctx, msg.MerchantID, msg.PaymentID)
}

type ListWebhooksQuery struct {
	reader Reader
}

func NewListWebhooksQuery(reader Reader) *ListWebhooksQuery {
	return &ListWebhooksQuery{reader: reader}
}

func (q *ListWebhooksQuery) Query(ctx context.Context, msg ListWebhooksMessage) ([]core.Webhook, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.ListWebhooks(ctx, msg.MerchantID)
}

type ListWebhookLogsQuery struct {
	reader WebhookLogReader
}

func NewListWebhookLogsQuery(reader WebhookLogReader) *ListWebhookLogsQuery {
	return &ListWebhookLogsQuery{reader: reader}
}

func (q *ListWebhookLogsQuery) Query(ctx context.Context, msg ListWebhookLogsMessage) ([]core.WebhookLog, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: webhook log reader is required")
	}
	return q.reader.ListLogs(ctx, msg.MerchantID, msg.Limit)
}

type GetWebhookLogQuery struct {
	reader WebhookLogReader
}

func NewGetWebhookLogQuery(reader WebhookLogReader) *GetWebhookLogQuery {
	return &GetWebhookLogQuery{reader: reader}
}

func (q *GetWebhookLogQuery) Query(ctx context.Context, msg GetWebhookLogMessage) (core.WebhookLog, error) {
	if q == nil || q.reader == nil {
		return core.WebhookLog{}, queryDependencyError("query: webhook log reader is required")
	}
	return q.reader.GetLog(ctx, msg.MerchantID, msg.LogID)
}

type JobStatusQuery struct {
	reader Reader
}

func NewJobStatusQuery(reader Reader) *JobStatusQuery {
	return &JobStatusQuery{reader: reader}
}

func (q *JobStatusQuery) Query(ctx context.Context, _ JobStatusMessage) (core.JobStatusReport, error) {
	if q == nil || q.reader == nil {
		return core.JobStatusReport{}, queryDependencyError("query: job status reader is required")
	}
	return q.reader.JobStatus(ctx)
}
