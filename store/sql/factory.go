package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-payments/core"
)

type RepositoryFactory struct {
	db           *bun.DB
	webhookCache repositorycache.CacheService

	merchantStore    *MerchantStore
	orderStore       *OrderStore
	paymentStore     *PaymentStore
	refundStore      *RefundStore
	webhookStore     core.WebhookStore
	webhookLogStore  *WebhookLogStore
	idempotencyStore *IdempotencyStore
}

type FactoryOption func(*RepositoryFactory)

// WithWebhookCache serves active webhook reads through cacheService.
func WithWebhookCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.webhookCache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.merchantStore != nil && f.paymentStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) MerchantStore() core.MerchantStore       { return f.merchantStore }
func (f *RepositoryFactory) OrderStore() core.OrderStore             { return f.orderStore }
func (f *RepositoryFactory) PaymentStore() core.PaymentStore         { return f.paymentStore }
func (f *RepositoryFactory) RefundStore() core.RefundStore           { return f.refundStore }
func (f *RepositoryFactory) WebhookStore() core.WebhookStore         { return f.webhookStore }
func (f *RepositoryFactory) WebhookLogStore() core.WebhookLogStore   { return f.webhookLogStore }
func (f *RepositoryFactory) IdempotencyStore() core.IdempotencyStore { return f.idempotencyStore }

func (f *RepositoryFactory) initStores() error {
	var err error
	if f.merchantStore, err = NewMerchantStore(f.db); err != nil {
		return err
	}
	if f.orderStore, err = NewOrderStore(f.db); err != nil {
		return err
	}
	if f.paymentStore, err = NewPaymentStore(f.db); err != nil {
		return err
	}
	if f.refundStore, err = NewRefundStore(f.db); err != nil {
		return err
	}
	webhookStore, err := NewWebhookStore(f.db)
	if err != nil {
		return err
	}
	f.webhookStore = webhookStore
	if f.webhookCache != nil {
		cached, err := NewCachedWebhookStore(webhookStore, f.webhookCache)
		if err != nil {
			return err
		}
		f.webhookStore = cached
	}
	if f.webhookLogStore, err = NewWebhookLogStore(f.db); err != nil {
		return err
	}
	if f.idempotencyStore, err = NewIdempotencyStore(f.db); err != nil {
		return err
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
