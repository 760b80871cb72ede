package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultIdempotencyTTL = 24 * time.Hour

// CachedResponse is the replayable outcome of an idempotent request.
type CachedResponse struct {
	StatusCode int
	Body       []byte
}

// IdempotencyCache replays responses for requests repeated with the same
// merchant scoped key and rejects keys reused with a different payload.
type IdempotencyCache struct {
	Store IdempotencyStore
	TTL   time.Duration
	Now   func() time.Time
	NewID func() string
}

func NewIdempotencyCache(store IdempotencyStore, ttl time.Duration) (*IdempotencyCache, error) {
	if store == nil {
		return nil, fmt.Errorf("core: idempotency store is required")
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyCache{
		Store: store,
		TTL:   ttl,
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}, nil
}

// Check returns the cached response for (merchantID, key), nil when the key is
// unknown or expired, or an idempotency conflict when payload differs from the
// request that created the key.
func (c *IdempotencyCache) Check(
	ctx context.Context,
	merchantID string,
	key string,
	payload any,
) (*CachedResponse, error) {
	if c == nil || c.Store == nil {
		return nil, fmt.Errorf("core: idempotency cache is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	hash, err := RequestHash(payload)
	if err != nil {
		return nil, err
	}
	record, found, err := c.Store.Find(ctx, strings.TrimSpace(merchantID), key, c.now())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return responseFromRecord(record, hash, key)
}

// Save records the response for a first request. When a concurrent request
// already stored the key, the stored response wins and is returned.
func (c *IdempotencyCache) Save(
	ctx context.Context,
	merchantID string,
	key string,
	payload any,
	body []byte,
	statusCode int,
) (CachedResponse, error) {
	if c == nil || c.Store == nil {
		return CachedResponse{}, fmt.Errorf("core: idempotency cache is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return CachedResponse{}, ValidationError("idempotency_key", "idempotency key is required")
	}
	hash, err := RequestHash(payload)
	if err != nil {
		return CachedResponse{}, err
	}
	now := c.now()
	record := IdempotencyRecord{
		ID:           c.newID(),
		MerchantID:   strings.TrimSpace(merchantID),
		Key:          key,
		RequestHash:  hash,
		ResponseCode: statusCode,
		ResponseBody: append([]byte(nil), body...),
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.ttl()),
	}
	stored, existing, err := c.Store.Insert(ctx, record)
	if err != nil {
		return CachedResponse{}, err
	}
	if !existing {
		return CachedResponse{StatusCode: statusCode, Body: append([]byte(nil), body...)}, nil
	}
	cached, err := responseFromRecord(stored, hash, key)
	if err != nil {
		return CachedResponse{}, err
	}
	return *cached, nil
}

// Execute runs fn at most once per live key: a cached response is replayed
// verbatim, otherwise fn runs and its response is saved. The boolean reports
// whether the response was replayed. An empty key disables caching.
func (c *IdempotencyCache) Execute(
	ctx context.Context,
	merchantID string,
	key string,
	payload any,
	fn func(ctx context.Context) (int, []byte, error),
) (CachedResponse, bool, error) {
	if fn == nil {
		return CachedResponse{}, false, fmt.Errorf("core: idempotent operation is required")
	}
	if strings.TrimSpace(key) == "" {
		code, body, err := fn(ctx)
		if err != nil {
			return CachedResponse{}, false, err
		}
		return CachedResponse{StatusCode: code, Body: body}, false, nil
	}

	cached, err := c.Check(ctx, merchantID, key, payload)
	if err != nil {
		return CachedResponse{}, false, err
	}
	if cached != nil {
		return *cached, true, nil
	}

	code, body, err := fn(ctx)
	if err != nil {
		return CachedResponse{}, false, err
	}
	saved, err := c.Save(ctx, merchantID, key, payload, body, code)
	if err != nil {
		return CachedResponse{}, false, err
	}
	return saved, false, nil
}

func (c *IdempotencyCache) PurgeExpired(ctx context.Context) (int64, error) {
	if c == nil || c.Store == nil {
		return 0, fmt.Errorf("core: idempotency cache is not configured")
	}
	return c.Store.DeleteExpired(ctx, c.now())
}

func responseFromRecord(record IdempotencyRecord, hash string, key string) (*CachedResponse, error) {
	if record.RequestHash != hash {
		return nil, IdempotencyConflictError(key)
	}
	return &CachedResponse{
		StatusCode: record.ResponseCode,
		Body:       append([]byte(nil), record.ResponseBody...),
	}, nil
}

func (c *IdempotencyCache) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *IdempotencyCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return defaultIdempotencyTTL
}

func (c *IdempotencyCache) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}
