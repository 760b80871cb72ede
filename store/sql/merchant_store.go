package sqlstore

import (
	"context"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-payments/core"
)

type MerchantStore struct {
	db   *bun.DB
	repo repository.Repository[*merchantRecord]
}

func NewMerchantStore(db *bun.DB) (*MerchantStore, error) {
	repo, err := newRepository(db, merchantHandlers(), "merchant")
	if err != nil {
		return nil, err
	}
	return &MerchantStore{db: db, repo: repo}, nil
}

func (s *MerchantStore) Create(ctx context.Context, merchant core.Merchant) (core.Merchant, error) {
	if s == nil || s.repo == nil {
		return core.Merchant{}, notConfigured("merchant")
	}
	created, err := s.repo.Create(ctx, newMerchantRecord(merchant))
	if err != nil {
		return core.Merchant{}, normalizeError(err, "merchant", merchant.ID)
	}
	return created.toDomain(), nil
}

func (s *MerchantStore) Get(ctx context.Context, id string) (core.Merchant, error) {
	if s == nil || s.repo == nil {
		return core.Merchant{}, notConfigured("merchant")
	}
	id = strings.TrimSpace(id)
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return core.Merchant{}, normalizeError(err, "merchant", id)
	}
	return record.toDomain(), nil
}

func (s *MerchantStore) GetByAPIKey(ctx context.Context, apiKey string) (core.Merchant, error) {
	if s == nil || s.repo == nil {
		return core.Merchant{}, notConfigured("merchant")
	}
	apiKey = strings.TrimSpace(apiKey)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("api_key", "=", apiKey),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Merchant{}, normalizeError(err, "merchant", apiKey)
	}
	if len(records) == 0 {
		return core.Merchant{}, normalizeError(core.ErrNotFound, "merchant api key", "")
	}
	return records[0].toDomain(), nil
}
