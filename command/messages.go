package command

import (
	"strings"

	"github.com/goliatone/go-payments/core"
)

const (
	TypeCreateMerchant   = "payments.command.merchant.create"
	TypeCreateOrder      = "payments.command.order.create"
	TypeCreatePayment    = "payments.command.payment.create"
	TypeCapturePayment   = "payments.command.payment.capture"
	TypeCreateRefund     = "payments.command.refund.create"
	TypeRegisterWebhook  = "payments.command.webhook.register"
	TypeSetWebhookActive = "payments.command.webhook.set_active"
	TypeRetryWebhook     = "payments.command.webhook_log.retry"
	TypeReconcile        = "payments.command.reconcile"
	TypePurgeIdempotency = "payments.command.idempotency.purge"
)

type CreateMerchantMessage struct {
	Request core.CreateMerchantRequest
}

func (CreateMerchantMessage) Type() string { return TypeCreateMerchant }

func (m CreateMerchantMessage) Validate() error {
	if strings.TrimSpace(m.Request.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	return nil
}

type CreateOrderMessage struct {
	Request core.CreateOrderRequest
}

func (CreateOrderMessage) Type() string { return TypeCreateOrder }

func (m CreateOrderMessage) Validate() error {
	if err := validateMerchant(m.Request.MerchantID); err != nil {
		return err
	}
	if m.Request.Amount < core.MinimumOrderAmount {
		return commandValidationError("amount", "amount must be at least 100")
	}
	return nil
}

type CreatePaymentMessage struct {
	Request core.CreatePaymentRequest
}

func (CreatePaymentMessage) Type() string { return TypeCreatePayment }

func (m CreatePaymentMessage) Validate() error {
	if err := validateMerchant(m.Request.MerchantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.OrderID) == "" {
		return commandValidationError("order_id", "order_id is required")
	}
	if !core.PaymentMethod(strings.ToLower(strings.TrimSpace(string(m.Request.Method)))).Valid() {
		return commandValidationError("method", "Unsupported payment method")
	}
	return nil
}

type CapturePaymentMessage struct {
	MerchantID string
	PaymentID  string
}

func (CapturePaymentMessage) Type() string { return TypeCapturePayment }

func (m CapturePaymentMessage) Validate() error {
	if err := validateMerchant(m.MerchantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.PaymentID) == "" {
		return commandValidationError("payment_id", "payment_id is required")
	}
	return nil
}

type CreateRefundMessage struct {
	Request core.CreateRefundRequest
}

func (CreateRefundMessage) Type() string { return TypeCreateRefund }

func (m CreateRefundMessage) Validate() error {
	if err := validateMerchant(m.Request.MerchantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.PaymentID) == "" {
		return commandValidationError("payment_id", "payment_id is required")
	}
	if m.Request.Amount <= 0 {
		return commandValidationError("amount", "amount must be positive")
	}
	return nil
}

type RegisterWebhookMessage struct {
	Request core.RegisterWebhookRequest
}

func (RegisterWebhookMessage) Type() string { return TypeRegisterWebhook }

func (m RegisterWebhookMessage) Validate() error {
	if err := validateMerchant(m.Request.MerchantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.URL) == "" {
		return commandValidationError("url", "url is required")
	}
	return nil
}

type SetWebhookActiveMessage struct {
	MerchantID string
	WebhookID  string
	Active     bool
}

func (SetWebhookActiveMessage) Type() string { return TypeSetWebhookActive }

func (m SetWebhookActiveMessage) Validate() error {
	if err := validateMerchant(m.MerchantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.WebhookID) == "" {
		return commandValidationError("webhook_id", "webhook_id is required")
	}
	return nil
}

type RetryWebhookMessage struct {
	MerchantID string
	LogID      string
}

func (RetryWebhookMessage) Type() string { return TypeRetryWebhook }

func (m RetryWebhookMessage) Validate() error {
	if err := validateMerchant(m.MerchantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.LogID) == "" {
		return commandValidationError("log_id", "log_id is required")
	}
	return nil
}

type ReconcileMessage struct{}

func (ReconcileMessage) Type() string { return TypeReconcile }

type PurgeIdempotencyMessage struct{}

func (PurgeIdempotencyMessage) Type() string { return TypePurgeIdempotency }

func validateMerchant(merchantID string) error {
	if strings.TrimSpace(merchantID) == "" {
		return commandValidationError("merchant_id", "merchant_id is required")
	}
	return nil
}
