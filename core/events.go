package core

import "time"

const (
	EventPaymentSuccess  = "payment.success"
	EventPaymentFailed   = "payment.failed"
	EventPaymentCaptured = "payment.captured"
	EventRefundProcessed = "refund.processed"
	EventRefundFailed    = "refund.failed"
)

func PaymentEventName(status PaymentStatus) string {
	return "payment." + string(status)
}

func RefundEventName(status RefundStatus) string {
	return "refund." + string(status)
}

// PaymentEventJob builds the webhook job for a payment event with a snapshot
// of the payment at the time the event fired.
func PaymentEventJob(event string, payment Payment, at time.Time) WebhookJob {
	snapshot := map[string]any{
		"id":         payment.ID,
		"order_id":   payment.OrderID,
		"amount":     payment.Amount,
		"currency":   payment.Currency,
		"method":     string(payment.Method),
		"status":     string(payment.Status),
		"captured":   payment.Captured,
		"created_at": formatEventTime(payment.CreatedAt),
	}
	switch payment.Method {
	case PaymentMethodUPI:
		snapshot["vpa"] = payment.VPA
	case PaymentMethodCard:
		snapshot["card_network"] = payment.CardNetwork
		snapshot["card_last4"] = payment.CardLast4
	}
	if payment.ErrorCode != "" {
		snapshot["error_code"] = payment.ErrorCode
		snapshot["error_description"] = payment.ErrorDescription
	}
	return WebhookJob{
		MerchantID: payment.MerchantID,
		Event:      event,
		Payload: map[string]any{
			"event":     event,
			"timestamp": at.UTC().Unix(),
			"data": map[string]any{
				"payment": snapshot,
			},
		},
	}
}

// RefundEventJob builds the webhook job for a refund event. Refund payloads
// nest the refund under data.refund.
func RefundEventJob(event string, refund Refund, at time.Time) WebhookJob {
	snapshot := map[string]any{
		"id":                refund.ID,
		"payment_id":        refund.PaymentID,
		"merchant_id":       refund.MerchantID,
		"amount":            refund.Amount,
		"status":            string(refund.Status),
		"reason":            refund.Reason,
		"error_code":        nilIfEmpty(refund.ErrorCode),
		"error_description": nilIfEmpty(refund.ErrorDescription),
		"processed_at":      nil,
		"created_at":        formatEventTime(refund.CreatedAt),
	}
	if refund.ProcessedAt != nil {
		snapshot["processed_at"] = formatEventTime(*refund.ProcessedAt)
	}
	return WebhookJob{
		MerchantID: refund.MerchantID,
		Event:      event,
		Payload: map[string]any{
			"event":     event,
			"timestamp": at.UTC().Unix(),
			"data": map[string]any{
				"refund": snapshot,
			},
		},
	}
}

func formatEventTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
