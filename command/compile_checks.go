package command

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-payments/core"
)

var (
	_ gocmd.Commander[CreateMerchantMessage]   = (*CreateMerchantCommand)(nil)
	_ gocmd.Commander[CreateOrderMessage]      = (*CreateOrderCommand)(nil)
	_ gocmd.Commander[CreatePaymentMessage]    = (*CreatePaymentCommand)(nil)
	_ gocmd.Commander[CapturePaymentMessage]   = (*CapturePaymentCommand)(nil)
	_ gocmd.Commander[CreateRefundMessage]     = (*CreateRefundCommand)(nil)
	_ gocmd.Commander[RegisterWebhookMessage]  = (*RegisterWebhookCommand)(nil)
	_ gocmd.Commander[SetWebhookActiveMessage] = (*SetWebhookActiveCommand)(nil)
	_ gocmd.Commander[RetryWebhookMessage]     = (*RetryWebhookCommand)(nil)
	_ gocmd.Commander[ReconcileMessage]        = (*ReconcileCommand)(nil)
	_ gocmd.Commander[PurgeIdempotencyMessage] = (*PurgeIdempotencyCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
