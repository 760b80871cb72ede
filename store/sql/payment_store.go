package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-payments/core"
)

type PaymentStore struct {
	db   *bun.DB
	repo repository.Repository[*paymentRecord]
}

func NewPaymentStore(db *bun.DB) (*PaymentStore, error) {
	repo, err := newRepository(db, paymentHandlers(), "payment")
	if err != nil {
		return nil, err
	}
	return &PaymentStore{db: db, repo: repo}, nil
}

func (s *PaymentStore) Create(ctx context.Context, payment core.Payment) (core.Payment, error) {
	if s == nil || s.repo == nil {
		return core.Payment{}, notConfigured("payment")
	}
	created, err := s.repo.Create(ctx, newPaymentRecord(payment))
	if err != nil {
		return core.Payment{}, normalizeError(err, "payment", payment.ID)
	}
	return created.toDomain(), nil
}

func (s *PaymentStore) Get(ctx context.Context, id string) (core.Payment, error) {
	if s == nil || s.db == nil {
		return core.Payment{}, notConfigured("payment")
	}
	return s.getTx(ctx, s.db, id)
}

func (s *PaymentStore) getTx(ctx context.Context, db bun.IDB, id string) (core.Payment, error) {
	id = strings.TrimSpace(id)
	record := &paymentRecord{}
	if err := db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return core.Payment{}, normalizeError(err, "payment", id)
	}
	return record.toDomain(), nil
}

func (s *PaymentStore) ListByMerchant(ctx context.Context, merchantID string) ([]core.Payment, error) {
	if s == nil || s.repo == nil {
		return nil, notConfigured("payment")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("merchant_id", "=", strings.TrimSpace(merchantID)),
		repository.OrderBy("created_at DESC"),
		repository.OrderBy("id DESC"),
	)
	if err != nil {
		return nil, err
	}
	return paymentsToDomain(records), nil
}

// MarkProcessing moves a non-terminal payment to processing. Terminal rows
// are returned untouched.
func (s *PaymentStore) MarkProcessing(ctx context.Context, id string, at time.Time) (core.Payment, error) {
	if s == nil || s.db == nil {
		return core.Payment{}, notConfigured("payment")
	}
	_, err := s.db.NewUpdate().
		Model((*paymentRecord)(nil)).
		Set("status = ?", string(core.PaymentStatusProcessing)).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status NOT IN (?)", bun.In([]string{
			string(core.PaymentStatusSuccess),
			string(core.PaymentStatusFailed),
		})).
		Exec(ctx)
	if err != nil {
		return core.Payment{}, err
	}
	return s.Get(ctx, id)
}

func (s *PaymentStore) Settle(ctx context.Context, in core.SettlePaymentInput) (core.Payment, bool, error) {
	if s == nil || s.db == nil {
		return core.Payment{}, false, notConfigured("payment")
	}
	var (
		out     core.Payment
		applied bool
	)
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.getTx(ctx, tx, in.PaymentID)
		if err != nil {
			return err
		}
		at := in.At.UTC()
		res, err := tx.NewUpdate().
			Model((*paymentRecord)(nil)).
			Set("status = ?", string(in.Status)).
			Set("error_code = ?", in.ErrorCode).
			Set("error_description = ?", in.ErrorDescription).
			Set("updated_at = ?", at).
			Where("id = ?", current.ID).
			Where("status = ?", string(core.PaymentStatusProcessing)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if !affected(res) {
			out = current
			return nil
		}
		if _, err := tx.NewUpdate().
			Model((*orderRecord)(nil)).
			Set("status = ?", string(in.OrderStatus)).
			Set("updated_at = ?", at).
			Where("id = ?", current.OrderID).
			Exec(ctx); err != nil {
			return err
		}
		applied = true
		out, err = s.getTx(ctx, tx, current.ID)
		return err
	})
	if err != nil {
		return core.Payment{}, false, err
	}
	return out, applied, nil
}

func (s *PaymentStore) MarkCaptured(ctx context.Context, id string, at time.Time) (core.Payment, bool, error) {
	if s == nil || s.db == nil {
		return core.Payment{}, false, notConfigured("payment")
	}
	res, err := s.db.NewUpdate().
		Model((*paymentRecord)(nil)).
		Set("captured = ?", true).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.PaymentStatusSuccess)).
		Where("captured = ?", false).
		Exec(ctx)
	if err != nil {
		return core.Payment{}, false, err
	}
	payment, err := s.Get(ctx, id)
	if err != nil {
		return core.Payment{}, false, err
	}
	return payment, affected(res), nil
}

func (s *PaymentStore) ListStuck(ctx context.Context, before time.Time, limit int) ([]core.Payment, error) {
	if s == nil || s.db == nil {
		return nil, notConfigured("payment")
	}
	records := []*paymentRecord{}
	q := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.PaymentStatusProcessing)).
		Where("?TableAlias.updated_at < ?", before.UTC()).
		OrderExpr("?TableAlias.updated_at ASC, ?TableAlias.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return paymentsToDomain(records), nil
}

func (s *PaymentStore) FailStuck(ctx context.Context, in core.FailStuckInput) (bool, error) {
	if s == nil || s.db == nil {
		return false, notConfigured("payment")
	}
	var applied bool
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		at := in.At.UTC()
		res, err := tx.NewUpdate().
			Model((*paymentRecord)(nil)).
			Set("status = ?", string(core.PaymentStatusFailed)).
			Set("error_code = ?", in.ErrorCode).
			Set("error_description = ?", in.ErrorDescription).
			Set("updated_at = ?", at).
			Where("id = ?", strings.TrimSpace(in.PaymentID)).
			Where("status = ?", string(core.PaymentStatusProcessing)).
			Where("updated_at < ?", in.Threshold.UTC()).
			Exec(ctx)
		if err != nil {
			return err
		}
		if !affected(res) {
			return nil
		}
		log := &paymentLogRecord{
			ID:        in.LogID,
			PaymentID: strings.TrimSpace(in.PaymentID),
			OldStatus: string(core.PaymentStatusProcessing),
			NewStatus: string(core.PaymentStatusFailed),
			WorkerID:  in.WorkerID,
			CreatedAt: at,
		}
		if _, err := tx.NewInsert().Model(log).Exec(ctx); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *PaymentStore) ListLogs(ctx context.Context, paymentID string) ([]core.PaymentLog, error) {
	if s == nil || s.db == nil {
		return nil, notConfigured("payment")
	}
	records := []*paymentLogRecord{}
	if err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.payment_id = ?", strings.TrimSpace(paymentID)).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.PaymentLog, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func paymentsToDomain(records []*paymentRecord) []core.Payment {
	out := make([]core.Payment, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out
}

func affected(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
