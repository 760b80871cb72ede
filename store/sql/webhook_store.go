package sqlstore

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-payments/core"
)

type WebhookStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookRecord]
}

func NewWebhookStore(db *bun.DB) (*WebhookStore, error) {
	repo, err := newRepository(db, webhookHandlers(), "webhook")
	if err != nil {
		return nil, err
	}
	return &WebhookStore{db: db, repo: repo}, nil
}

func (s *WebhookStore) Create(ctx context.Context, webhook core.Webhook) (core.Webhook, error) {
	if s == nil || s.repo == nil {
		return core.Webhook{}, notConfigured("webhook")
	}
	created, err := s.repo.Create(ctx, newWebhookRecord(webhook))
	if err != nil {
		return core.Webhook{}, normalizeError(err, "webhook", webhook.ID)
	}
	return created.toDomain(), nil
}

func (s *WebhookStore) Get(ctx context.Context, id string) (core.Webhook, error) {
	if s == nil || s.repo == nil {
		return core.Webhook{}, notConfigured("webhook")
	}
	id = strings.TrimSpace(id)
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return core.Webhook{}, normalizeError(err, "webhook", id)
	}
	return record.toDomain(), nil
}

func (s *WebhookStore) ListActive(ctx context.Context, merchantID string) ([]core.Webhook, error) {
	return s.list(ctx, merchantID, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.active = ?", true)
	})
}

func (s *WebhookStore) ListByMerchant(ctx context.Context, merchantID string) ([]core.Webhook, error) {
	return s.list(ctx, merchantID)
}

func (s *WebhookStore) list(ctx context.Context, merchantID string, extra ...repository.SelectCriteria) ([]core.Webhook, error) {
	if s == nil || s.repo == nil {
		return nil, notConfigured("webhook")
	}
	criteria := append([]repository.SelectCriteria{
		repository.SelectBy("merchant_id", "=", strings.TrimSpace(merchantID)),
		repository.OrderBy("created_at ASC"),
		repository.OrderBy("id ASC"),
	}, extra...)
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Webhook, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *WebhookStore) SetActive(ctx context.Context, id string, active bool) (core.Webhook, error) {
	if s == nil || s.db == nil {
		return core.Webhook{}, notConfigured("webhook")
	}
	res, err := s.db.NewUpdate().
		Model((*webhookRecord)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.Webhook{}, err
	}
	if !affected(res) {
		return core.Webhook{}, normalizeError(core.ErrNotFound, "webhook", id)
	}
	return s.Get(ctx, id)
}
