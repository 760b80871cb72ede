package payments

import (
	"fmt"

	paymentscommand "github.com/goliatone/go-payments/command"
	paymentsquery "github.com/goliatone/go-payments/query"
)

type CommandQueryService interface {
	paymentscommand.MutatingService
	paymentsquery.Reader
}

// WebhookLogs is the delivery side needed for the webhook log commands and
// queries, typically a *webhooks.Deliverer.
type WebhookLogs interface {
	paymentscommand.WebhookRetrier
	paymentsquery.WebhookLogReader
}

type Commands struct {
	CreateMerchant   *paymentscommand.CreateMerchantCommand
	CreateOrder      *paymentscommand.CreateOrderCommand
	CreatePayment    *paymentscommand.CreatePaymentCommand
	CapturePayment   *paymentscommand.CapturePaymentCommand
	CreateRefund     *paymentscommand.CreateRefundCommand
	RegisterWebhook  *paymentscommand.RegisterWebhookCommand
	SetWebhookActive *paymentscommand.SetWebhookActiveCommand
	Reconcile        *paymentscommand.ReconcileCommand
	PurgeIdempotency *paymentscommand.PurgeIdempotencyCommand
	// RetryWebhook is nil unless webhook logs were supplied.
	RetryWebhook *paymentscommand.RetryWebhookCommand
}

type Queries struct {
	GetOrder        *paymentsquery.GetOrderQuery
	ListOrders      *paymentsquery.ListOrdersQuery
	GetPayment      *paymentsquery.GetPaymentQuery
	ListPayments    *paymentsquery.ListPaymentsQuery
	ListPaymentLogs *paymentsquery.ListPaymentLogsQuery
	GetRefund       *paymentsquery.GetRefundQuery
	ListRefunds     *paymentsquery.ListRefundsQuery
	ListWebhooks    *paymentsquery.ListWebhooksQuery
	JobStatus       *paymentsquery.JobStatusQuery
	// Webhook log queries are nil unless webhook logs were supplied.
	ListWebhookLogs *paymentsquery.ListWebhookLogsQuery
	GetWebhookLog   *paymentsquery.GetWebhookLogQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	webhookLogs WebhookLogs
}

func WithWebhookLogs(logs WebhookLogs) FacadeOption {
	return func(options *facadeOptions) {
		options.webhookLogs = logs
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("payments: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	logs := cfg.webhookLogs
	if logs == nil {
		logs, _ = service.(WebhookLogs)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateMerchant:   paymentscommand.NewCreateMerchantCommand(service),
		CreateOrder:      paymentscommand.NewCreateOrderCommand(service),
		CreatePayment:    paymentscommand.NewCreatePaymentCommand(service),
		CapturePayment:   paymentscommand.NewCapturePaymentCommand(service),
		CreateRefund:     paymentscommand.NewCreateRefundCommand(service),
		RegisterWebhook:  paymentscommand.NewRegisterWebhookCommand(service),
		SetWebhookActive: paymentscommand.NewSetWebhookActiveCommand(service),
		Reconcile:        paymentscommand.NewReconcileCommand(service),
		PurgeIdempotency: paymentscommand.NewPurgeIdempotencyCommand(service),
	}
	facade.queries = Queries{
		GetOrder:        paymentsquery.NewGetOrderQuery(service),
		ListOrders:      paymentsquery.NewListOrdersQuery(service),
		GetPayment:      paymentsquery.NewGetPaymentQuery(service),
		ListPayments:    paymentsquery.NewListPaymentsQuery(service),
		ListPaymentLogs: paymentsquery.NewListPaymentLogsQuery(service),
		GetRefund:       paymentsquery.NewGetRefundQuery(service),
		ListRefunds:     paymentsquery.NewListRefundsQuery(service),
		ListWebhooks:    paymentsquery.NewListWebhooksQuery(service),
		JobStatus:       paymentsquery.NewJobStatusQuery(service),
	}
	if logs != nil {
		facade.commands.RetryWebhook = paymentscommand.NewRetryWebhookCommand(logs)
		facade.queries.ListWebhookLogs = paymentsquery.NewListWebhookLogsQuery(logs)
		facade.queries.GetWebhookLog = paymentsquery.NewGetWebhookLogQuery(logs)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
