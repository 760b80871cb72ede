package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service is the gateway API side: it creates entities, pushes jobs and owns
// the pipeline components the workers run.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver

	merchants   MerchantStore
	orders      OrderStore
	payments    PaymentStore
	refunds     RefundStore
	webhooks    WebhookStore
	webhookLogs WebhookLogStore
	idempotency IdempotencyStore
	jobs        JobEnqueuer
	queueStats  QueueInspector
	outcomes    OutcomeSimulator
	sleeper     Sleeper
	now         func() time.Time
	newID       IDGenerator
	refundLocks *keyedMutex
	cache       *IdempotencyCache
	paymentProc *PaymentProcessor
	refundProc  *RefundProcessor
	reconciler  *Reconciler
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	PersistenceClient any
	RepositoryFactory any
	MerchantStore     MerchantStore
	OrderStore        OrderStore
	PaymentStore      PaymentStore
	RefundStore       RefundStore
	WebhookStore      WebhookStore
	WebhookLogStore   WebhookLogStore
	IdempotencyStore  IdempotencyStore
	JobEnqueuer       JobEnqueuer
	QueueInspector    QueueInspector
	OutcomeSimulator  OutcomeSimulator
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("payments", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("payments"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.sleeper == nil {
		builder.sleeper = SleepContext
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}
	if builder.idGenerator == nil {
		builder.idGenerator = GenerateID
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, MapError(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, MapError(err)
	}

	if err := builder.resolveStores(); err != nil {
		return nil, MapError(err)
	}
	if err := builder.requireStores(); err != nil {
		return nil, err
	}
	if builder.jobEnqueuer == nil {
		return nil, fmt.Errorf("core: job enqueuer is required")
	}
	if builder.outcomes == nil {
		builder.outcomes = NewConfiguredOutcomes(finalConfig.Processing, rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}

	s := &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		merchants:         builder.merchantStore,
		orders:            builder.orderStore,
		payments:          builder.paymentStore,
		refunds:           builder.refundStore,
		webhooks:          builder.webhookStore,
		webhookLogs:       builder.webhookLogStore,
		idempotency:       builder.idempotencyStore,
		jobs:              builder.jobEnqueuer,
		queueStats:        builder.queueInspector,
		outcomes:          builder.outcomes,
		sleeper:           builder.sleeper,
		now:               builder.clock,
		newID:             builder.idGenerator,
		refundLocks:       newKeyedMutex(),
	}
	if err := s.buildPipeline(provider); err != nil {
		return nil, err
	}
	return s, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func (b *serviceBuilder) resolveStores() error {
	if b.repositoryFactory == nil {
		return nil
	}
	var provider StoreProvider
	switch factory := b.repositoryFactory.(type) {
	case RepositoryStoreFactory:
		built, err := factory.BuildStores(b.persistenceClient)
		if err != nil {
			return err
		}
		provider = built
	case StoreProvider:
		provider = factory
	default:
		return fmt.Errorf("core: unsupported repository factory %T", b.repositoryFactory)
	}
	if provider == nil {
		return nil
	}
	if b.merchantStore == nil {
		b.merchantStore = provider.MerchantStore()
	}
	if b.orderStore == nil {
		b.orderStore = provider.OrderStore()
	}
	if b.paymentStore == nil {
		b.paymentStore = provider.PaymentStore()
	}
	if b.refundStore == nil {
		b.refundStore = provider.RefundStore()
	}
	if b.webhookStore == nil {
		b.webhookStore = provider.WebhookStore()
	}
	if b.webhookLogStore == nil {
		b.webhookLogStore = provider.WebhookLogStore()
	}
	if b.idempotencyStore == nil {
		b.idempotencyStore = provider.IdempotencyStore()
	}
	return nil
}

func (b *serviceBuilder) requireStores() error {
	checks := []struct {
		name    string
		missing bool
	}{
		{"merchant", b.merchantStore == nil},
		{"order", b.orderStore == nil},
		{"payment", b.paymentStore == nil},
		{"refund", b.refundStore == nil},
		{"webhook", b.webhookStore == nil},
		{"webhook log", b.webhookLogStore == nil},
		{"idempotency", b.idempotencyStore == nil},
	}
	for _, check := range checks {
		if check.missing {
			return fmt.Errorf("core: %s store is required", check.name)
		}
	}
	return nil
}

func (s *Service) buildPipeline(provider LoggerProvider) error {
	cache, err := NewIdempotencyCache(s.idempotency, s.config.Idempotency.TTL())
	if err != nil {
		return err
	}
	cache.Now = s.now
	s.cache = cache

	paymentProc, err := NewPaymentProcessor(s.payments, s.orders, s.jobs, s.outcomes)
	if err != nil {
		return err
	}
	paymentProc.Sleep = s.sleeper
	paymentProc.Now = s.now
	s.paymentProc = paymentProc

	refundProc, err := NewRefundProcessor(s.refunds, s.payments, s.orders, s.jobs, s.outcomes)
	if err != nil {
		return err
	}
	refundProc.Sleep = s.sleeper
	refundProc.Now = s.now
	s.refundProc = refundProc

	reconciler, err := NewReconciler(s.payments, s.jobs, s.config.Reconciliation)
	if err != nil {
		return err
	}
	reconciler.Now = s.now
	reconciler.Logger = namedLogger(provider, "payments.reconciler", s.logger)
	s.reconciler = reconciler
	return nil
}

func namedLogger(provider LoggerProvider, name string, fallback Logger) Logger {
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			return glog.Ensure(named)
		}
	}
	return glog.Ensure(fallback)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// Logger returns a named child logger, falling back to the service logger.
func (s *Service) Logger(name string) Logger {
	if s == nil {
		return glog.Nop()
	}
	return namedLogger(s.loggerProvider, name, s.logger)
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		MerchantStore:     s.merchants,
		OrderStore:        s.orders,
		PaymentStore:      s.payments,
		RefundStore:       s.refunds,
		WebhookStore:      s.webhooks,
		WebhookLogStore:   s.webhookLogs,
		IdempotencyStore:  s.idempotency,
		JobEnqueuer:       s.jobs,
		QueueInspector:    s.queueStats,
		OutcomeSimulator:  s.outcomes,
	}
}

func (s *Service) Idempotency() *IdempotencyCache {
	return s.cache
}

func (s *Service) PaymentProcessor() *PaymentProcessor {
	return s.paymentProc
}

func (s *Service) RefundProcessor() *RefundProcessor {
	return s.refundProc
}

func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

// NewWorker builds a queue worker sharing the service retry budget and
// metrics.
func (s *Service) NewWorker(name string, dequeuer JobDequeuer, handler JobHandler) (*QueueWorker, error) {
	worker, err := NewQueueWorker(name, dequeuer, s.jobs, handler, s.config.Processing.MaxRetries)
	if err != nil {
		return nil, err
	}
	worker.Logger = s.Logger("payments.worker")
	worker.Hook = metricsWorkerHook{recorder: s.metricsRecorder, worker: worker.Name}
	worker.Now = s.now
	return worker, nil
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) generateID(prefix string) string {
	if s.newID != nil {
		return s.newID(prefix)
	}
	return GenerateID(prefix)
}
