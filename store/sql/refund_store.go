package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-payments/core"
)

type RefundStore struct {
	db   *bun.DB
	repo repository.Repository[*refundRecord]
}

func NewRefundStore(db *bun.DB) (*RefundStore, error) {
	repo, err := newRepository(db, refundHandlers(), "refund")
	if err != nil {
		return nil, err
	}
	return &RefundStore{db: db, repo: repo}, nil
}

// CreateWithinLimit sums the payment's non-failed refunds and inserts the new
// one in a single transaction. On postgres the payment row is locked so
// concurrent refunds for the same payment serialize.
func (s *RefundStore) CreateWithinLimit(ctx context.Context, refund core.Refund, limit int64) (core.Refund, error) {
	if s == nil || s.db == nil {
		return core.Refund{}, notConfigured("refund")
	}
	record := newRefundRecord(refund)
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if tx.Dialect().Name() == dialect.PG {
			var locked string
			if err := tx.NewSelect().
				Model((*paymentRecord)(nil)).
				Column("id").
				Where("id = ?", record.PaymentID).
				For("UPDATE").
				Scan(ctx, &locked); err != nil {
				return normalizeError(err, "payment", record.PaymentID)
			}
		}
		var total int64
		if err := tx.NewSelect().
			Model((*refundRecord)(nil)).
			ColumnExpr("COALESCE(SUM(amount), 0)").
			Where("payment_id = ?", record.PaymentID).
			Where("status != ?", string(core.RefundStatusFailed)).
			Scan(ctx, &total); err != nil {
			return err
		}
		if total+record.Amount > limit {
			return core.ErrRefundLimitExceeded
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return normalizeError(err, "refund", record.ID)
		}
		return nil
	})
	if err != nil {
		return core.Refund{}, err
	}
	return record.toDomain(), nil
}

func (s *RefundStore) Get(ctx context.Context, id string) (core.Refund, error) {
	if s == nil || s.repo == nil {
		return core.Refund{}, notConfigured("refund")
	}
	id = strings.TrimSpace(id)
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return core.Refund{}, normalizeError(err, "refund", id)
	}
	return record.toDomain(), nil
}

func (s *RefundStore) ListByPayment(ctx context.Context, paymentID string) ([]core.Refund, error) {
	if s == nil || s.repo == nil {
		return nil, notConfigured("refund")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("payment_id", "=", strings.TrimSpace(paymentID)),
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Refund, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// Complete finalizes a pending refund. Refunds already finalized are returned
// as stored.
func (s *RefundStore) Complete(ctx context.Context, in core.CompleteRefundInput) (core.Refund, error) {
	if s == nil || s.db == nil {
		return core.Refund{}, notConfigured("refund")
	}
	at := in.At.UTC()
	if _, err := s.db.NewUpdate().
		Model((*refundRecord)(nil)).
		Set("status = ?", string(in.Status)).
		Set("error_code = ?", in.ErrorCode).
		Set("error_description = ?", in.ErrorDescription).
		Set("processed_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", strings.TrimSpace(in.RefundID)).
		Where("status = ?", string(core.RefundStatusPending)).
		Exec(ctx); err != nil {
		return core.Refund{}, err
	}
	return s.Get(ctx, in.RefundID)
}
