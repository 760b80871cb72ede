package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-payments/core"
)

// MutatingService is the write side of core.Service.
type MutatingService interface {
	CreateMerchant(ctx context.Context, req core.CreateMerchantRequest) (core.Merchant, error)
	CreateOrder(ctx context.Context, req core.CreateOrderRequest) (core.Order, error)
	CreatePayment(ctx context.Context, req core.CreatePaymentRequest) (core.Payment, error)
	CapturePayment(ctx context.Context, merchantID string, paymentID string) (core.Payment, error)
	CreateRefund(ctx context.Context, req core.CreateRefundRequest) (core.Refund, error)
	RegisterWebhook(ctx context.Context, req core.RegisterWebhookRequest) (core.Webhook, error)
	SetWebhookActive(ctx context.Context, merchantID string, webhookID string, active bool) (core.Webhook, error)
	Reconcile(ctx context.Context) (core.ReconcileStats, error)
	PurgeIdempotency(ctx context.Context) (int64, error)
}

// WebhookRetrier resets a webhook log for another round of attempts.
type WebhookRetrier interface {
	Retry(ctx context.Context, merchantID string, logID string) (core.WebhookLog, error)
}

type CreateMerchantCommand struct {
	service MutatingService
}

func NewCreateMerchantCommand(service MutatingService) *CreateMerchantCommand {
	return &CreateMerchantCommand{service: service}
}

func (c *CreateMerchantCommand) Execute(ctx context.Context, msg CreateMerchantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: merchant service is required")
	}
	out, err := c.service.CreateMerchant(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateOrderCommand struct {
	service MutatingService
}

func NewCreateOrderCommand(service MutatingService) *CreateOrderCommand {
	return &CreateOrderCommand{service: service}
}

func (c *CreateOrderCommand) Execute(ctx context.Context, msg CreateOrderMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order service is required")
	}
	out, err := c.service.CreateOrder(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreatePaymentCommand struct {
	service MutatingService
}

func NewCreatePaymentCommand(service MutatingService) *CreatePaymentCommand {
	return &CreatePaymentCommand{service: service}
}

func (c *CreatePaymentCommand) Execute(ctx context.Context, msg CreatePaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment service is required")
	}
	out, err := c.service.CreatePayment(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CapturePaymentCommand struct {
	service MutatingService
}

func NewCapturePaymentCommand(service MutatingService) *CapturePaymentCommand {
	return &CapturePaymentCommand{service: service}
}

func (c *CapturePaymentCommand) Execute(ctx context.Context, msg CapturePaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment service is required")
	}
	out, err := c.service.CapturePayment(ctx, msg.MerchantID, msg.PaymentID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateRefundCommand struct {
	service MutatingService
}

func NewCreateRefundCommand(service MutatingService) *CreateRefundCommand {
	return &CreateRefundCommand{service: service}
}

func (c *CreateRefundCommand) Execute(ctx context.Context, msg CreateRefundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refund service is required")
	}
	out, err := c.service.CreateRefund(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RegisterWebhookCommand struct {
	service MutatingService
}

func NewRegisterWebhookCommand(service MutatingService) *RegisterWebhookCommand {
	return &RegisterWebhookCommand{service: service}
}

func (c *RegisterWebhookCommand) Execute(ctx context.Context, msg RegisterWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	out, err := c.service.RegisterWebhook(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetWebhookActiveCommand struct {
	service MutatingService
}

func NewSetWebhookActiveCommand(service MutatingService) *SetWebhookActiveCommand {
	return &SetWebhookActiveCommand{service: service}
}

func (c *SetWebhookActiveCommand) Execute(ctx context.Context, msg SetWebhookActiveMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	out, err := c.service.SetWebhookActive(ctx, msg.MerchantID, msg.WebhookID, msg.Active)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RetryWebhookCommand struct {
	retrier WebhookRetrier
}

func NewRetryWebhookCommand(retrier WebhookRetrier) *RetryWebhookCommand {
	return &RetryWebhookCommand{retrier: retrier}
}

func (c *RetryWebhookCommand) Execute(ctx context.Context, msg RetryWebhookMessage) error {
	if c == nil || c.retrier == nil {
		return commandDependencyError("command: webhook retrier is required")
	}
	out, err := c.retrier.Retry(ctx, msg.MerchantID, msg.LogID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReconcileCommand struct {
	service MutatingService
}

func NewReconcileCommand(service MutatingService) *ReconcileCommand {
	return &ReconcileCommand{service: service}
}

func (c *ReconcileCommand) Execute(ctx context.Context, _ ReconcileMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reconcile service is required")
	}
	out, err := c.service.Reconcile(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PurgeIdempotencyCommand struct {
	service MutatingService
}

func NewPurgeIdempotencyCommand(service MutatingService) *PurgeIdempotencyCommand {
	return &PurgeIdempotencyCommand{service: service}
}

func (c *PurgeIdempotencyCommand) Execute(ctx context.Context, _ PurgeIdempotencyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: idempotency service is required")
	}
	out, err := c.service.PurgeIdempotency(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
