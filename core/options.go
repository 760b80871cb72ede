package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	merchantStore     MerchantStore
	orderStore        OrderStore
	paymentStore      PaymentStore
	refundStore       RefundStore
	webhookStore      WebhookStore
	webhookLogStore   WebhookLogStore
	idempotencyStore  IdempotencyStore
	jobEnqueuer       JobEnqueuer
	queueInspector    QueueInspector
	outcomes          OutcomeSimulator
	sleeper           Sleeper
	clock             func() time.Time
	idGenerator       IDGenerator
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

// WithRepositoryFactory accepts a RepositoryStoreFactory or a StoreProvider.
// Stores set explicitly through the With*Store options take precedence.
func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithMerchantStore(store MerchantStore) Option {
	return func(b *serviceBuilder) {
		b.merchantStore = store
	}
}

func WithOrderStore(store OrderStore) Option {
	return func(b *serviceBuilder) {
		b.orderStore = store
	}
}

func WithPaymentStore(store PaymentStore) Option {
	return func(b *serviceBuilder) {
		b.paymentStore = store
	}
}

func WithRefundStore(store RefundStore) Option {
	return func(b *serviceBuilder) {
		b.refundStore = store
	}
}

func WithWebhookStore(store WebhookStore) Option {
	return func(b *serviceBuilder) {
		b.webhookStore = store
	}
}

func WithWebhookLogStore(store WebhookLogStore) Option {
	return func(b *serviceBuilder) {
		b.webhookLogStore = store
	}
}

func WithIdempotencyStore(store IdempotencyStore) Option {
	return func(b *serviceBuilder) {
		b.idempotencyStore = store
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.jobEnqueuer = enqueuer
	}
}

func WithQueueInspector(inspector QueueInspector) Option {
	return func(b *serviceBuilder) {
		b.queueInspector = inspector
	}
}

func WithOutcomeSimulator(outcomes OutcomeSimulator) Option {
	return func(b *serviceBuilder) {
		b.outcomes = outcomes
	}
}

func WithSleeper(sleeper Sleeper) Option {
	return func(b *serviceBuilder) {
		b.sleeper = sleeper
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = now
	}
}

func WithIDGenerator(generator IDGenerator) Option {
	return func(b *serviceBuilder) {
		b.idGenerator = generator
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("payments", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		sleeper:         SleepContext,
		clock:           func() time.Time { return time.Now().UTC() },
		idGenerator:     GenerateID,
	}
}

// StaticRawConfigLoader serves a fixed raw map.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return cloneAnyMap(l.Values), nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime overrides.
// Zero values in the loaded and runtime layers do not override.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString(layer, "service_name", cfg.ServiceName, includeZero)

	store := map[string]any{}
	setString(store, "driver", cfg.Store.Driver, includeZero)
	setString(store, "dsn", cfg.Store.DSN, includeZero)
	setBool(store, "debug", cfg.Store.Debug, includeZero)
	setSection(layer, "store", store)

	queue := map[string]any{}
	setString(queue, "backend", cfg.Queue.Backend, includeZero)
	setString(queue, "redis_url", cfg.Queue.RedisURL, includeZero)
	setString(queue, "payment_queue", cfg.Queue.PaymentQueue, includeZero)
	setString(queue, "refund_queue", cfg.Queue.RefundQueue, includeZero)
	setString(queue, "webhook_queue", cfg.Queue.WebhookQueue, includeZero)
	setString(queue, "alert_queue", cfg.Queue.AlertQueue, includeZero)
	setString(queue, "dead_letter_suffix", cfg.Queue.DeadLetterSuffix, includeZero)
	setInt(queue, "pop_timeout_seconds", cfg.Queue.PopTimeoutSeconds, includeZero)
	setSection(layer, "queue", queue)

	processing := map[string]any{}
	setString(processing, "mode", cfg.Processing.Mode, includeZero)
	setString(processing, "test_outcome", cfg.Processing.TestOutcome, includeZero)
	setInt(processing, "test_delay_ms", cfg.Processing.TestDelayMS, includeZero)
	setInt(processing, "live_delay_min_ms", cfg.Processing.LiveDelayMinMS, includeZero)
	setInt(processing, "live_delay_max_ms", cfg.Processing.LiveDelayMaxMS, includeZero)
	setFloat(processing, "upi_success_rate", cfg.Processing.UPISuccessRate, includeZero)
	setFloat(processing, "card_success_rate", cfg.Processing.CardSuccessRate, includeZero)
	setFloat(processing, "refund_success_rate", cfg.Processing.RefundSuccessRate, includeZero)
	setInt(processing, "max_retries", cfg.Processing.MaxRetries, includeZero)
	setSection(layer, "processing", processing)

	idempotency := map[string]any{}
	setInt(idempotency, "ttl_seconds", cfg.Idempotency.TTLSeconds, includeZero)
	setSection(layer, "idempotency", idempotency)

	reconciliation := map[string]any{}
	setInt(reconciliation, "interval_seconds", cfg.Reconciliation.IntervalSeconds, includeZero)
	setInt(reconciliation, "threshold_seconds", cfg.Reconciliation.ThresholdSeconds, includeZero)
	setInt(reconciliation, "batch_size", cfg.Reconciliation.BatchSize, includeZero)
	setSection(layer, "reconciliation", reconciliation)

	webhooks := map[string]any{}
	setString(webhooks, "mode", cfg.Webhooks.Mode, includeZero)
	setInt(webhooks, "timeout_seconds", cfg.Webhooks.TimeoutSeconds, includeZero)
	setInt(webhooks, "schedule_interval_seconds", cfg.Webhooks.ScheduleIntervalSeconds, includeZero)
	setInt(webhooks, "batch_size", cfg.Webhooks.BatchSize, includeZero)
	setInt(webhooks, "response_body_limit", cfg.Webhooks.ResponseBodyLimit, includeZero)
	setIntSlice(webhooks, "retry_schedule_seconds", cfg.Webhooks.RetryScheduleSeconds, includeZero)
	setIntSlice(webhooks, "test_retry_schedule_seconds", cfg.Webhooks.TestRetryScheduleSeconds, includeZero)
	setInt(webhooks, "subscription_cache_ttl_seconds", cfg.Webhooks.SubscriptionCacheTTLSeconds, includeZero)
	setSection(layer, "webhooks", webhooks)

	http := map[string]any{}
	setString(http, "addr", cfg.HTTP.Addr, includeZero)
	setSection(layer, "http", http)
	return layer
}

func setSection(layer map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		layer[key] = section
	}
}

func setString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}

func setInt(layer map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func setFloat(layer map[string]any, key string, value float64, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func setBool(layer map[string]any, key string, value bool, includeZero bool) {
	if includeZero || value {
		layer[key] = value
	}
}

func setIntSlice(layer map[string]any, key string, value []int, includeZero bool) {
	if includeZero || len(value) > 0 {
		layer[key] = append([]int(nil), value...)
	}
}
