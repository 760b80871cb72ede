package sqlstore

import (
	"context"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-payments/core"
)

type OrderStore struct {
	db   *bun.DB
	repo repository.Repository[*orderRecord]
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	repo, err := newRepository(db, orderHandlers(), "order")
	if err != nil {
		return nil, err
	}
	return &OrderStore{db: db, repo: repo}, nil
}

func (s *OrderStore) Create(ctx context.Context, order core.Order) (core.Order, error) {
	if s == nil || s.repo == nil {
		return core.Order{}, notConfigured("order")
	}
	created, err := s.repo.Create(ctx, newOrderRecord(order))
	if err != nil {
		return core.Order{}, normalizeError(err, "order", order.ID)
	}
	return created.toDomain(), nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (core.Order, error) {
	if s == nil || s.repo == nil {
		return core.Order{}, notConfigured("order")
	}
	id = strings.TrimSpace(id)
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return core.Order{}, normalizeError(err, "order", id)
	}
	return record.toDomain(), nil
}

func (s *OrderStore) ListByMerchant(ctx context.Context, merchantID string) ([]core.Order, error) {
	if s == nil || s.repo == nil {
		return nil, notConfigured("order")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_id", "=", strings.TrimSpace(merchantID)),
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Order, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
