package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-payments/core"
)

// errKeyTaken rolls back the insert transaction so the winner can be read
// outside it.
var errKeyTaken = errors.New("sqlstore: idempotency key taken")

type IdempotencyStore struct {
	db   *bun.DB
	repo repository.Repository[*idempotencyRecord]
}

func NewIdempotencyStore(db *bun.DB) (*IdempotencyStore, error) {
	repo, err := newRepository(db, idempotencyHandlers(), "idempotency")
	if err != nil {
		return nil, err
	}
	return &IdempotencyStore{db: db, repo: repo}, nil
}

func (s *IdempotencyStore) Find(ctx context.Context, merchantID string, key string, now time.Time) (core.IdempotencyRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.IdempotencyRecord{}, false, notConfigured("idempotency")
	}
	record, err := s.find(ctx, s.db, merchantID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.IdempotencyRecord{}, false, nil
		}
		return core.IdempotencyRecord{}, false, err
	}
	if record.Expired(now) {
		return core.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *IdempotencyStore) find(ctx context.Context, db bun.IDB, merchantID string, key string) (core.IdempotencyRecord, error) {
	record := &idempotencyRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.merchant_id = ?", strings.TrimSpace(merchantID)).
		Where("?TableAlias.idempotency_key = ?", strings.TrimSpace(key)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.IdempotencyRecord{}, err
	}
	return record.toDomain(), nil
}

// Insert relies on the (merchant_id, key) unique index. A conflict re-reads
// the winner; an expired winner is replaced inside one transaction.
func (s *IdempotencyStore) Insert(ctx context.Context, record core.IdempotencyRecord) (core.IdempotencyRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.IdempotencyRecord{}, false, notConfigured("idempotency")
	}
	var out core.IdempotencyRecord
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*idempotencyRecord)(nil)).
			Where("merchant_id = ?", strings.TrimSpace(record.MerchantID)).
			Where("idempotency_key = ?", strings.TrimSpace(record.Key)).
			Where("expires_at <= ?", record.CreatedAt.UTC()).
			Exec(ctx); err != nil {
			return err
		}
		row := newIdempotencyRecord(record)
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return errKeyTaken
			}
			return err
		}
		out = row.toDomain()
		return nil
	})
	if errors.Is(err, errKeyTaken) {
		winner, err := s.find(ctx, s.db, record.MerchantID, record.Key)
		if err != nil {
			return core.IdempotencyRecord{}, false, normalizeError(err, "idempotency key", record.Key)
		}
		return winner, true, nil
	}
	if err != nil {
		return core.IdempotencyRecord{}, false, err
	}
	return out, false, nil
}

func (s *IdempotencyStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, notConfigured("idempotency")
	}
	res, err := s.db.NewDelete().
		Model((*idempotencyRecord)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
