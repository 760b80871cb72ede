package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-payments/adapters/gocommand"
	"github.com/goliatone/go-payments/adapters/gologger"
	paymentscommand "github.com/goliatone/go-payments/command"
	gatewayconfig "github.com/goliatone/go-payments/config"
	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/httpapi"
	"github.com/goliatone/go-payments/migrations"
	paymentsquery "github.com/goliatone/go-payments/query"
	memqueue "github.com/goliatone/go-payments/queue/memory"
	redisqueue "github.com/goliatone/go-payments/queue/redis"
	memstore "github.com/goliatone/go-payments/store/memory"
	sqlstore "github.com/goliatone/go-payments/store/sql"
	"github.com/goliatone/go-payments/transport"
	"github.com/goliatone/go-payments/webhooks"
)

const driverMemory = "memory"

// broker is the part of a queue backend the binary needs.
type broker interface {
	core.JobEnqueuer
	core.QueueInspector
}

// app holds the wired gateway for one command invocation.
type app struct {
	cfg       core.Config
	logger    *glog.BaseLogger
	service   *core.Service
	deliverer *webhooks.Deliverer
	broker    broker
	dequeuer  func(queue string) (core.JobDequeuer, error)
	checks    map[string]httpapi.HealthCheck
	dispatch  *gocommand.RegistryAdapter
	subs      []commanddispatcher.Subscription
	closers   []func() error
}

type appOptions struct {
	// Sender overrides the outbound webhook transport.
	Sender webhooks.Sender
	// SkipDispatcher leaves the go-command dispatcher untouched.
	SkipDispatcher bool
	// DirectWebhookReads skips the subscription cache. Set by the worker and
	// scheduler commands, whose processes never see the API's invalidations.
	DirectWebhookReads bool
	// LogFormat is console, json or pretty.
	LogFormat string
	Output    io.Writer
}

func loadConfig(ctx context.Context, flags *rootFlags) (core.Config, error) {
	loader := gatewayconfig.NewLoader(flags.configPath)
	loader.EnvFile = flags.envFile
	runtime := core.Config{}
	if flags.testMode {
		runtime.Processing.Mode = core.ModeTest
		runtime.Webhooks.Mode = core.ModeTest
	}
	return gatewayconfig.Load(ctx, loader, runtime)
}

func newApp(ctx context.Context, flags *rootFlags, opts appOptions) (*app, error) {
	cfg, err := loadConfig(ctx, flags)
	if err != nil {
		return nil, fmt.Errorf("gateway: load config: %w", err)
	}
	if opts.LogFormat == "" {
		opts.LogFormat = flags.logFormat
	}
	return buildApp(ctx, cfg, flags.logLevel, opts)
}

func buildApp(ctx context.Context, cfg core.Config, logLevel string, opts appOptions) (a *app, err error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger, err := gologger.New(out, logLevel, opts.LogFormat)
	if err != nil {
		return nil, err
	}
	a = &app{
		cfg:    cfg,
		logger: logger,
		checks: map[string]httpapi.HealthCheck{},
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	storeOpts, err := a.openStore(ctx, opts.DirectWebhookReads)
	if err != nil {
		return nil, err
	}
	if err := a.openQueue(ctx); err != nil {
		return nil, err
	}

	serviceOpts := append(storeOpts,
		core.WithLoggerProvider(a.logger),
		core.WithJobEnqueuer(a.broker),
		core.WithQueueInspector(a.broker),
	)
	service, err := core.NewService(cfg, serviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("gateway: build service: %w", err)
	}
	a.service = service

	sender := opts.Sender
	if sender == nil {
		sender = transport.NewRestySender(cfg.Webhooks.Timeout())
	}
	deps := service.Dependencies()
	a.deliverer = webhooks.NewDelivererFromConfig(deps.WebhookLogStore, deps.WebhookStore, sender, cfg.Webhooks)
	a.deliverer.Logger = service.Logger("payments.webhooks")

	if !opts.SkipDispatcher {
		if err := a.registerDispatcher(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, directWebhookReads bool) ([]core.Option, error) {
	driver := strings.TrimSpace(a.cfg.Store.Driver)
	if driver == driverMemory {
		return []core.Option{core.WithRepositoryFactory(memstore.New())}, nil
	}

	client, err := sqlstore.Open(a.cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	if driver == sqlstore.DriverSQLite {
		// sqlite databases are usually local and ephemeral, keep the schema current.
		if err := runMigrations(ctx, client, driver); err != nil {
			return nil, err
		}
	}

	factoryOpts := []sqlstore.FactoryOption{}
	if !directWebhookReads {
		cacheService, err := sqlstore.NewWebhookCacheService(
			time.Duration(a.cfg.Webhooks.SubscriptionCacheTTLSeconds) * time.Second,
		)
		if err != nil {
			return nil, fmt.Errorf("gateway: webhook cache: %w", err)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithWebhookCache(cacheService))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		return nil, err
	}
	a.checks["database"] = func(ctx context.Context) error {
		return factory.DB().PingContext(ctx)
	}
	return []core.Option{
		core.WithPersistenceClient(client),
		core.WithRepositoryFactory(factory),
	}, nil
}

func (a *app) openQueue(ctx context.Context) error {
	switch a.cfg.Queue.Backend {
	case core.QueueBackendRedis:
		q, err := redisqueue.Open(ctx, a.cfg.Queue, a.logger.GetLogger("payments.queue"))
		if err != nil {
			return fmt.Errorf("gateway: open redis queue: %w", err)
		}
		a.closers = append(a.closers, q.Close)
		a.broker = q
		a.dequeuer = func(queue string) (core.JobDequeuer, error) { return q.Dequeuer(queue) }
		a.checks["redis"] = q.Ping
	default:
		b := memqueue.New(a.cfg.Queue)
		a.closers = append(a.closers, func() error { b.Close(); return nil })
		a.broker = b
		a.dequeuer = func(queue string) (core.JobDequeuer, error) { return b.Dequeuer(queue) }
	}
	return nil
}

func (a *app) registerDispatcher() error {
	adapter, err := gocommand.NewGatewayRegistryAdapter()
	if err != nil {
		return err
	}
	commandSubs, err := paymentscommand.Register(adapter, a.service, a.deliverer)
	if err != nil {
		return err
	}
	a.subs = append(a.subs, commandSubs...)
	querySubs, err := paymentsquery.Register(adapter, a.service, a.deliverer)
	if err != nil {
		return err
	}
	a.subs = append(a.subs, querySubs...)
	if err := adapter.Initialize(); err != nil {
		return err
	}
	a.dispatch = adapter
	return nil
}

// worker builds the queue worker for a named role.
func (a *app) worker(role string) (*core.QueueWorker, error) {
	var (
		queue   string
		handler core.JobHandler
	)
	switch role {
	case "payment":
		queue, handler = a.cfg.Queue.PaymentQueue, a.service.PaymentProcessor().HandleJob
	case "refund":
		queue, handler = a.cfg.Queue.RefundQueue, a.service.RefundProcessor().HandleJob
	case "webhook":
		queue, handler = a.cfg.Queue.WebhookQueue, a.deliverer.HandleJob
	case "alert":
		queue, handler = a.cfg.Queue.AlertQueue, a.handleAlert
	default:
		return nil, fmt.Errorf("gateway: unknown worker %q (payment, refund, webhook, alert)", role)
	}
	dequeuer, err := a.dequeuer(queue)
	if err != nil {
		return nil, err
	}
	return a.service.NewWorker(role+"_worker", dequeuer, handler)
}

// handleAlert is the alert sink: alerts are surfaced in the log stream.
func (a *app) handleAlert(ctx context.Context, msg *core.JobExecutionMessage) error {
	alert, err := core.DecodeAlertJob(msg)
	if err != nil {
		return err
	}
	a.service.Logger("payments.alerts").WithContext(ctx).Warn("payment alert",
		"payment_id", alert.PaymentID,
		"issue", alert.Issue,
		"timestamp", alert.Timestamp,
	)
	return nil
}

func (a *app) httpServer() (*httpapi.Server, error) {
	return httpapi.NewServer(httpapi.Options{
		Authenticator: a.service,
		Idempotency:   a.service.Idempotency(),
		TestMerchant: func(ctx context.Context) (core.Merchant, error) {
			merchant, _, err := a.service.SeedTestMerchant(ctx)
			return merchant, err
		},
		HealthChecks: a.checks,
		Logger:       a.service.Logger("payments.http"),
	})
}

func (a *app) Close() error {
	for _, sub := range a.subs {
		sub.Unsubscribe()
	}
	a.subs = nil
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func runMigrations(ctx context.Context, client *persistence.Client, driver string) error {
	dialect := sqlstore.MigrationDialect(driver)
	_, err := migrations.Register(ctx, func(_ context.Context, target string, _ string, fsys fs.FS) error {
		if target != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithValidationTargets(dialect))
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("gateway: migrate %s: %w", dialect, err)
	}
	return nil
}
