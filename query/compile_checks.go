package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-payments/core"
)

var (
	_ gocmd.Querier[GetOrderMessage, core.Order]               = (*GetOrderQuery)(nil)
	_ gocmd.Querier[ListOrdersMessage, []core.Order]           = (*ListOrdersQuery)(nil)
	_ gocmd.Querier[GetPaymentMessage, core.Payment]           = (*GetPaymentQuery)(nil)
	_ gocmd.Querier[ListPaymentsMessage, []core.Payment]       = (*ListPaymentsQuery)(nil)
	_ gocmd.Querier[ListPaymentLogsMessage, []core.PaymentLog] = (*ListPaymentLogsQuery)(nil)
	_ gocmd.Querier[GetRefundMessage, core.Refund]             = (*GetRefundQuery)(nil)
	_ gocmd.Querier[ListRefundsMessage, []core.Refund]         = (*ListRefundsQuery)(nil)
	_ gocmd.Querier[ListWebhooksMessage, []core.Webhook]       = (*ListWebhooksQuery)(nil)
	_ gocmd.Querier[ListWebhookLogsMessage, []core.WebhookLog] = (*ListWebhookLogsQuery)(nil)
	_ gocmd.Querier[GetWebhookLogMessage, core.WebhookLog]     = (*GetWebhookLogQuery)(nil)
	_ gocmd.Querier[JobStatusMessage, core.JobStatusReport]    = (*JobStatusQuery)(nil)

	_ Reader = (*core.Service)(nil)
)
