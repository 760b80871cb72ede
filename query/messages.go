package query

import (
	"strings"
)

const (
	TypeGetOrder        = "payments.query.order.get"
	TypeListOrders      = "payments.query.order.list"
	TypeGetPayment      = "payments.query.payment.get"
	TypeListPayments    = "payments.query.payment.list"
	TypeListPaymentLogs = "payments.query.payment_log.list"
	TypeGetRefund       = "payments.query.refund.get"
	TypeListRefunds     = "payments.query.refund.list"
	TypeListWebhooks    = "payments.query.webhook.list"
	TypeListWebhookLogs = "payments.query.webhook_log.list"
	TypeGetWebhookLog   = "payments.query.webhook_log.get"
	TypeJobStatus       = "payments.query.jobs.status"
)

type GetOrderMessage struct {
	MerchantID string
	OrderID    string
}

func (GetOrderMessage) Type() string { return TypeGetOrder }

func (m GetOrderMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID}, field{"order_id", m.OrderID})
}

type ListOrdersMessage struct {
	MerchantID string
}

func (ListOrdersMessage) Type() string { return TypeListOrders }

func (m ListOrdersMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID})
}

type GetPaymentMessage struct {
	MerchantID string
	PaymentID  string
}

func (GetPaymentMessage) Type() string { return TypeGetPayment }

func (m GetPaymentMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID}, field{"payment_id", m.PaymentID})
}

type ListPaymentsMessage struct {
	MerchantID string
}

func (ListPaymentsMessage) Type() string { return TypeListPayments }

func (m ListPaymentsMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID})
}

type ListPaymentLogsMessage struct {
	MerchantID string
	PaymentID  string
}

func (ListPaymentLogsMessage) Type() string { return TypeListPaymentLogs }

func (m ListPaymentLogsMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID}, field{"payment_id", m.PaymentID})
}

type GetRefundMessage struct {
	MerchantID string
	RefundID   string
}

func (GetRefundMessage) Type() string { return TypeGetRefund }

func (m GetRefundMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID}, field{"refund_id", m.RefundID})
}

type ListRefundsMessage struct {
	MerchantID string
	PaymentID  string
}

func (ListRefundsMessage) Type() string { return TypeListRefunds }

func (m ListRefundsMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID}, field{"payment_id", m.PaymentID})
}

type ListWebhooksMessage struct {
	MerchantID string
}

func (ListWebhooksMessage) Type() string { return TypeListWebhooks }

func (m ListWebhooksMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID})
}

type ListWebhookLogsMessage struct {
	MerchantID string
	Limit      int
}

func (ListWebhookLogsMessage) Type() string { return TypeListWebhookLogs }

func (m ListWebhookLogsMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return requireFields(field{"merchant_id", m.MerchantID})
}

type GetWebhookLogMessage struct {
	MerchantID string
	LogID      string
}

func (GetWebhookLogMessage) Type() string { return TypeGetWebhookLog }

func (m GetWebhookLogMessage) Validate() error {
	return requireFields(field{"merchant_id", m.MerchantID}, field{"webhook_id", m.LogID})
}

type JobStatusMessage struct{}

func (JobStatusMessage) Type() string { return TypeJobStatus }

type field struct {
	name  string
	value string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return queryValidationError(f.name, f.name+" is required")
		}
	}
	return nil
}
