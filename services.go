// Package payments is the entry point of the payment gateway module. It
// re-exports the core service and its options and wires the command and query
// handlers for callers that do not go through the dispatcher.
package payments

import "github.com/goliatone/go-payments/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type (
	Merchant   = core.Merchant
	Order      = core.Order
	Payment    = core.Payment
	PaymentLog = core.PaymentLog
	Refund     = core.Refund
	Webhook    = core.Webhook
	WebhookLog = core.WebhookLog
)

type CreateMerchantRequest = core.CreateMerchantRequest
type CreateOrderRequest = core.CreateOrderRequest
type CreatePaymentRequest = core.CreatePaymentRequest
type CreateRefundRequest = core.CreateRefundRequest
type RegisterWebhookRequest = core.RegisterWebhookRequest
type CardDetails = core.CardDetails

type StoreProvider = core.StoreProvider
type JobEnqueuer = core.JobEnqueuer
type JobDequeuer = core.JobDequeuer
type QueueInspector = core.QueueInspector

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithMerchantStore     = core.WithMerchantStore
	WithOrderStore        = core.WithOrderStore
	WithPaymentStore      = core.WithPaymentStore
	WithRefundStore       = core.WithRefundStore
	WithWebhookStore      = core.WithWebhookStore
	WithWebhookLogStore   = core.WithWebhookLogStore
	WithIdempotencyStore  = core.WithIdempotencyStore
	WithJobEnqueuer       = core.WithJobEnqueuer
	WithQueueInspector    = core.WithQueueInspector
	WithOutcomeSimulator  = core.WithOutcomeSimulator
	WithSleeper           = core.WithSleeper
	WithClock             = core.WithClock
	WithIDGenerator       = core.WithIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
