package sqlstore

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-payments/core"
)

type WebhookLogStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookLogRecord]
}

func NewWebhookLogStore(db *bun.DB) (*WebhookLogStore, error) {
	repo, err := newRepository(db, webhookLogHandlers(), "webhook log")
	if err != nil {
		return nil, err
	}
	return &WebhookLogStore{db: db, repo: repo}, nil
}

func (s *WebhookLogStore) Create(ctx context.Context, log core.WebhookLog) (core.WebhookLog, error) {
	if s == nil || s.repo == nil {
		return core.WebhookLog{}, notConfigured("webhook log")
	}
	created, err := s.repo.Create(ctx, newWebhookLogRecord(log))
	if err != nil {
		return core.WebhookLog{}, normalizeError(err, "webhook log", log.ID)
	}
	return created.toDomain(), nil
}

func (s *WebhookLogStore) Get(ctx context.Context, id string) (core.WebhookLog, error) {
	if s == nil || s.repo == nil {
		return core.WebhookLog{}, notConfigured("webhook log")
	}
	id = strings.TrimSpace(id)
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return core.WebhookLog{}, normalizeError(err, "webhook log", id)
	}
	return record.toDomain(), nil
}

func (s *WebhookLogStore) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]core.WebhookLog, error) {
	if s == nil || s.repo == nil {
		return nil, notConfigured("webhook log")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("merchant_id", "=", strings.TrimSpace(merchantID)),
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
	}
	if limit > 0 {
		criteria = append(criteria, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	return webhookLogsToDomain(records), nil
}

func (s *WebhookLogStore) ListDue(ctx context.Context, now time.Time, limit int) ([]core.WebhookLog, error) {
	if s == nil || s.db == nil {
		return nil, notConfigured("webhook log")
	}
	records := []*webhookLogRecord{}
	q := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.WebhookLogStatusPending)).
		Where("?TableAlias.next_retry_at IS NOT NULL").
		Where("?TableAlias.next_retry_at <= ?", now.UTC()).
		OrderExpr("?TableAlias.next_retry_at ASC, ?TableAlias.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return webhookLogsToDomain(records), nil
}

// Claim is a compare-and-set on the due condition: only one caller moves
// next_retry_at from a past instant to its lease.
func (s *WebhookLogStore) Claim(ctx context.Context, id string, now time.Time, leaseUntil time.Time) (core.WebhookLog, bool, error) {
	if s == nil || s.db == nil {
		return core.WebhookLog{}, false, notConfigured("webhook log")
	}
	res, err := s.db.NewUpdate().
		Model((*webhookLogRecord)(nil)).
		Set("next_retry_at = ?", leaseUntil.UTC()).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.WebhookLogStatusPending)).
		Where("next_retry_at IS NOT NULL").
		Where("next_retry_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return core.WebhookLog{}, false, err
	}
	log, err := s.Get(ctx, id)
	if err != nil {
		return core.WebhookLog{}, false, err
	}
	return log, affected(res), nil
}

func (s *WebhookLogStore) RecordAttempt(ctx context.Context, in core.RecordAttemptInput) (bool, error) {
	if s == nil || s.db == nil {
		return false, notConfigured("webhook log")
	}
	attemptAt := in.LastAttemptAt.UTC()
	res, err := s.db.NewUpdate().
		Model((*webhookLogRecord)(nil)).
		Set("status = ?", string(in.Status)).
		Set("attempts = ?", in.Attempts).
		Set("response_code = ?", in.ResponseCode).
		Set("response_body = ?", in.ResponseBody).
		Set("last_attempt_at = ?", attemptAt).
		Set("next_retry_at = ?", cloneTimePointer(in.NextRetryAt)).
		Set("updated_at = ?", attemptAt).
		Where("id = ?", strings.TrimSpace(in.LogID)).
		Where("status = ?", string(core.WebhookLogStatusPending)).
		Where("attempts = ?", in.ExpectedAttempts).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	if affected(res) {
		return true, nil
	}
	if _, err := s.Get(ctx, in.LogID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *WebhookLogStore) ResetForRetry(ctx context.Context, id string, now time.Time) (core.WebhookLog, error) {
	if s == nil || s.db == nil {
		return core.WebhookLog{}, notConfigured("webhook log")
	}
	at := now.UTC()
	res, err := s.db.NewUpdate().
		Model((*webhookLogRecord)(nil)).
		Set("status = ?", string(core.WebhookLogStatusPending)).
		Set("attempts = 0").
		Set("next_retry_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.WebhookLog{}, err
	}
	if !affected(res) {
		return core.WebhookLog{}, normalizeError(core.ErrNotFound, "webhook log", id)
	}
	return s.Get(ctx, id)
}

func (s *WebhookLogStore) CountByStatus(ctx context.Context) (map[core.WebhookLogStatus]int, error) {
	if s == nil || s.db == nil {
		return nil, notConfigured("webhook log")
	}
	rows := []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}{}
	if err := s.db.NewSelect().
		Model((*webhookLogRecord)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &rows); err != nil {
		return nil, err
	}
	counts := map[core.WebhookLogStatus]int{}
	for _, row := range rows {
		counts[core.WebhookLogStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func webhookLogsToDomain(records []*webhookLogRecord) []core.WebhookLog {
	out := make([]core.WebhookLog, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out
}
