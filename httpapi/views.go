package httpapi

import (
	"time"

	"github.com/goliatone/go-payments/core"
)

type orderView struct {
	ID         string         `json:"id"`
	MerchantID string         `json:"merchant_id"`
	Amount     int64          `json:"amount"`
	Currency   string         `json:"currency"`
	Status     string         `json:"status"`
	Receipt    string         `json:"receipt,omitempty"`
	Notes      map[string]any `json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func newOrderView(order core.Order) orderView {
	return orderView{
		ID:         order.ID,
		MerchantID: order.MerchantID,
		Amount:     order.Amount,
		Currency:   order.Currency,
		Status:     string(order.Status),
		Receipt:    order.Receipt,
		Notes:      order.Notes,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

type paymentView struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Method           string    `json:"method"`
	Status           string    `json:"status"`
	Captured         bool      `json:"captured"`
	VPA              string    `json:"vpa,omitempty"`
	CardNetwork      string    `json:"card_network,omitempty"`
	CardLast4        string    `json:"card_last4,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorDescription string    `json:"error_description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newPaymentView(payment core.Payment) paymentView {
	return paymentView{
		ID:               payment.ID,
		OrderID:          payment.OrderID,
		Amount:           payment.Amount,
		Currency:         payment.Currency,
		Method:           string(payment.Method),
		Status:           string(payment.Status),
		Captured:         payment.Captured,
		VPA:              payment.VPA,
		CardNetwork:      payment.CardNetwork,
		CardLast4:        payment.CardLast4,
		ErrorCode:        payment.ErrorCode,
		ErrorDescription: payment.ErrorDescription,
		CreatedAt:        payment.CreatedAt,
		UpdatedAt:        payment.UpdatedAt,
	}
}

type paymentLogView struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	WorkerID  string    `json:"worker_id"`
	CreatedAt time.Time `json:"created_at"`
}

type refundView struct {
	ID               string     `json:"id"`
	PaymentID        string     `json:"payment_id"`
	MerchantID       string     `json:"merchant_id"`
	Amount           int64      `json:"amount"`
	Status           string     `json:"status"`
	Reason           string     `json:"reason,omitempty"`
	ErrorCode        string     `json:"error_code,omitempty"`
	ErrorDescription string     `json:"error_description,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func newRefundView(refund core.Refund) refundView {
	return refundView{
		ID:               refund.ID,
		PaymentID:        refund.PaymentID,
		MerchantID:       refund.MerchantID,
		Amount:           refund.Amount,
		Status:           string(refund.Status),
		Reason:           refund.Reason,
		ErrorCode:        refund.ErrorCode,
		ErrorDescription: refund.ErrorDescription,
		ProcessedAt:      refund.ProcessedAt,
		CreatedAt:        refund.CreatedAt,
		UpdatedAt:        refund.UpdatedAt,
	}
}

// webhookView carries the signing secret only in the registration response.
type webhookView struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Active    bool      `json:"active"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newWebhookView(webhook core.Webhook, withSecret bool) webhookView {
	view := webhookView{
		ID:        webhook.ID,
		URL:       webhook.URL,
		Active:    webhook.Active,
		CreatedAt: webhook.CreatedAt,
	}
	if withSecret {
		view.Secret = webhook.Secret
	}
	return view
}

type webhookLogView struct {
	ID            string         `json:"id"`
	Event         string         `json:"event"`
	Payload       map[string]any `json:"payload"`
	Status        string         `json:"status"`
	Attempts      int            `json:"attempts"`
	ResponseCode  int            `json:"response_code,omitempty"`
	ResponseBody  string         `json:"response_body,omitempty"`
	LastAttemptAt *time.Time     `json:"last_attempt_at,omitempty"`
	NextRetryAt   *time.Time     `json:"next_retry_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func newWebhookLogView(log core.WebhookLog) webhookLogView {
	return webhookLogView{
		ID:            log.ID,
		Event:         log.Event,
		Payload:       log.Payload,
		Status:        string(log.Status),
		Attempts:      log.Attempts,
		ResponseCode:  log.ResponseCode,
		ResponseBody:  log.ResponseBody,
		LastAttemptAt: log.LastAttemptAt,
		NextRetryAt:   log.NextRetryAt,
		CreatedAt:     log.CreatedAt,
	}
}

type queueView struct {
	Queue      string `json:"queue"`
	Depth      int64  `json:"depth"`
	DeadLetter int64  `json:"dead_letter"`
}

type jobStatusView struct {
	Queues      []queueView    `json:"queues"`
	WebhookLogs map[string]int `json:"webhook_logs"`
	TestMode    bool           `json:"test_mode"`
	CheckedAt   time.Time      `json:"checked_at"`
}

func newJobStatusView(report core.JobStatusReport) jobStatusView {
	view := jobStatusView{
		Queues:      make([]queueView, 0, len(report.Queues)),
		WebhookLogs: make(map[string]int, len(report.WebhookLogs)),
		TestMode:    report.TestMode,
		CheckedAt:   report.CheckedAt,
	}
	for _, stats := range report.Queues {
		view.Queues = append(view.Queues, queueView{Queue: stats.Queue, Depth: stats.Depth, DeadLetter: stats.DeadLetter})
	}
	for status, count := range report.WebhookLogs {
		view.WebhookLogs[string(status)] = count
	}
	return view
}

func mapSlice[T any, V any](items []T, fn func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
