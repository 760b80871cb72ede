package sqlstore

import (
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Gateway ids are prefixed strings, not uuids. GetID derives a stable uuid so
// the repository never treats a populated record as new and never assigns an
// id over the one the service generated.
func stringIDHandlers[T any](
	newRecord func() T,
	id func(T) *string,
) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			ptr := id(record)
			if ptr == nil || strings.TrimSpace(*ptr) == "" {
				return uuid.Nil
			}
			return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.TrimSpace(*ptr)))
		},
		SetID: func(record T, value uuid.UUID) {
			ptr := id(record)
			if ptr == nil || strings.TrimSpace(*ptr) != "" {
				return
			}
			*ptr = value.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			ptr := id(record)
			if ptr == nil {
				return ""
			}
			return strings.TrimSpace(*ptr)
		},
	}
}

func merchantHandlers() repository.ModelHandlers[*merchantRecord] {
	return stringIDHandlers(
		func() *merchantRecord { return &merchantRecord{} },
		func(r *merchantRecord) *string {
			if r == nil {
				return nil
			}
			return &r.ID
		},
	)
}

func orderHandlers() repository.ModelHandlers[*orderRecord] {
	return stringIDHandlers(
		func() *orderRecord { return &orderRecord{} },
		func(r *orderRecord) *string {
			if r == nil {
				return nil
			}
			return &r.ID
		},
	)
}

func paymentHandlers() repository.ModelHandlers[*paymentRecord] {
	return stringIDHandlers(
		func() *paymentRecord { return &paymentRecord{} },
		func(r *paymentRecord) *string {
			if r == nil {
				return nil
			}
			return &r.ID
		},
	)
}

func refundHandlers() repository.ModelHandlers[*refundRecord] {
	return stringIDHandlers(
		func() *refundRecord { return &refundRecord{} },
		func(r *refundRecord) *string {
			if r == nil {
				return nil
			}
			return &r.ID
		},
	)
}

func webhookHandlers() repository.ModelHandlers[*webhookRecord] {
	return stringIDHandlers(
		func() *webhookRecord { return &webhookRecord{} },
		func(r *webhookRecord) *string {
			if r == nil {
				return nil
			}
			return &r.ID
		},
	)
}

func webhookLogHandlers() repository.ModelHandlers[*webhookLogRecord] {
	return stringIDHandlers(
		func() *webhookLogRecord { return &webhookLogRecord{} },
		func(r *webhookLogRecord) *string {
			if r == nil {
				return nil
			}
			return &r.ID
		},
	)
}

func idempotencyHandlers() repository.ModelHandlers[*idempotencyRecord] {
	return stringIDHandlers(
		func() *idempotencyRecord { return &idempotencyRecord{} },
		func(r *idempotencyRecord) *string {
			if r == nil {
				return nil
			}
			return &r.ID
		},
	)
}

func newRepository[T any](db *bun.DB, handlers repository.ModelHandlers[T], name string) (repository.Repository[T], error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[T](db, handlers)
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid %s repository wiring: %w", name, err)
		}
	}
	return repo, nil
}
