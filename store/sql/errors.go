package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-payments/core"
)

// normalizeError folds driver and repository errors into the core sentinels
// the service layer branches on.
func normalizeError(err error, entity string, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || core.IsNotFound(err) {
		return fmt.Errorf("%w: %s %q", core.ErrNotFound, entity, id)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %q", core.ErrDuplicateKey, entity, id)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

func notConfigured(name string) error {
	return fmt.Errorf("sqlstore: %s store is not configured", name)
}
