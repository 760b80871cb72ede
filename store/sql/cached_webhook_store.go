package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-payments/core"
)

const activeWebhooksCacheKeyPrefix = "go-payments::active_webhooks::v1"

// CachedWebhookStore serves ListActive from go-repository-cache. Writes go to
// the base store and drop the merchant's cached entry. Invalidation is local
// to the process, so roles that deliver webhooks apart from the API read the
// base store directly.
type CachedWebhookStore struct {
	base  core.WebhookStore
	cache repositorycache.CacheService
}

func NewCachedWebhookStore(base core.WebhookStore, cacheService repositorycache.CacheService) (*CachedWebhookStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base webhook store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: webhook cache service is required")
	}
	return &CachedWebhookStore{base: base, cache: cacheService}, nil
}

// NewWebhookCacheService builds the cache service backing CachedWebhookStore.
func NewWebhookCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

// ActiveWebhooksCacheKey is go-payments::active_webhooks::v1::<merchant_id>.
func ActiveWebhooksCacheKey(merchantID string) string {
	return activeWebhooksCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(merchantID))
}

func (s *CachedWebhookStore) Create(ctx context.Context, webhook core.Webhook) (core.Webhook, error) {
	created, err := s.base.Create(ctx, webhook)
	if err != nil {
		return core.Webhook{}, err
	}
	if err := s.cache.Delete(ctx, ActiveWebhooksCacheKey(created.MerchantID)); err != nil {
		return core.Webhook{}, err
	}
	return created, nil
}

func (s *CachedWebhookStore) Get(ctx context.Context, id string) (core.Webhook, error) {
	return s.base.Get(ctx, id)
}

// ListActive never serves an empty set from cache. A merchant with no
// subscriptions is re-read on every call, so a webhook registered through
// another process is seen by the next delivery attempt.
func (s *CachedWebhookStore) ListActive(ctx context.Context, merchantID string) ([]core.Webhook, error) {
	key := ActiveWebhooksCacheKey(merchantID)
	fetched := false
	webhooks, err := repositorycache.GetOrFetch(ctx, s.cache, key,
		func(ctx context.Context) ([]core.Webhook, error) {
			fetched = true
			return s.base.ListActive(ctx, merchantID)
		})
	if err != nil {
		return nil, err
	}
	if len(webhooks) == 0 {
		if err := s.cache.Delete(ctx, key); err != nil {
			return nil, err
		}
		if !fetched {
			return s.base.ListActive(ctx, merchantID)
		}
	}
	return append([]core.Webhook(nil), webhooks...), nil
}

func (s *CachedWebhookStore) ListByMerchant(ctx context.Context, merchantID string) ([]core.Webhook, error) {
	return s.base.ListByMerchant(ctx, merchantID)
}

func (s *CachedWebhookStore) SetActive(ctx context.Context, id string, active bool) (core.Webhook, error) {
	updated, err := s.base.SetActive(ctx, id, active)
	if err != nil {
		return core.Webhook{}, err
	}
	if err := s.cache.Delete(ctx, ActiveWebhooksCacheKey(updated.MerchantID)); err != nil {
		return core.Webhook{}, err
	}
	return updated, nil
}

var _ core.WebhookStore = (*CachedWebhookStore)(nil)
