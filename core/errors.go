package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes returned in the {"error":{"code","description"}} envelope.
const (
	ErrorCodeBadRequest          = "BAD_REQUEST_ERROR"
	ErrorCodeNotFound            = "NOT_FOUND_ERROR"
	ErrorCodeAuthentication      = "AUTHENTICATION_ERROR"
	ErrorCodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	ErrorCodeRefundExceedsAmount = "REFUND_EXCEEDS_AMOUNT"
	ErrorCodeNotCapturable       = "PAYMENT_NOT_CAPTURABLE"
	ErrorCodeTransientFailure    = "TRANSIENT_FAILURE"
	ErrorCodeInternal            = "INTERNAL_SERVER_ERROR"
)

var (
	ErrNotFound            = errors.New("core: record not found")
	ErrRefundLimitExceeded = errors.New("core: refund amount exceeds payment amount")
	ErrDuplicateKey        = errors.New("core: duplicate key")
)

// NotFoundError reports a missing entity. Jobs that reference a missing
// entity are dead-lettered and never retried.
func NotFoundError(entity string, id string) error {
	message := strings.TrimSpace(entity) + " not found"
	err := goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorCodeNotFound)
	if strings.TrimSpace(id) != "" {
		err.WithMetadata(map[string]any{"entity": entity, "id": id})
	}
	return err
}

// ValidationError reports bad caller input. It is surfaced as 400 and never
// retried by a worker.
func ValidationError(field string, message string) error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorCodeBadRequest).
		WithSeverity(goerrors.SeverityError)
}

func RefundExceedsAmountError(paymentID string) error {
	return goerrors.New("Refund amount exceeds payment amount", goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorCodeRefundExceedsAmount).
		WithMetadata(map[string]any{"payment_id": paymentID})
}

func NotCapturableError(paymentID string, status PaymentStatus) error {
	return goerrors.New("Payment not in capturable state", goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorCodeNotCapturable).
		WithMetadata(map[string]any{"payment_id": paymentID, "status": string(status)})
}

func IdempotencyConflictError(key string) error {
	return goerrors.New("Idempotency key reused with different request payload", goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorCodeIdempotencyConflict).
		WithMetadata(map[string]any{"idempotency_key": key})
}

func AuthenticationError(message string) error {
	if strings.TrimSpace(message) == "" {
		message = "Invalid API credentials"
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorCodeAuthentication)
}

// TransientError marks an error as retryable I/O failure.
func TransientError(source error, message string) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryExternal).
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(ErrorCodeTransientFailure)
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(ErrorCodeTransientFailure)
}

// MapError normalizes any error into a go-errors envelope with an HTTP code
// and a gateway text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).
			WithTextCode(ErrorCodeNotFound))
	case errors.Is(err, ErrRefundLimitExceeded):
		return ensureErrorEnvelope(goerrors.New("Refund amount exceeds payment amount", goerrors.CategoryValidation).
			WithTextCode(ErrorCodeRefundExceedsAmount))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return errorCategory(err) == goerrors.CategoryNotFound
}

func IsValidation(err error) bool {
	switch errorCategory(err) {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return true
	}
	return errors.Is(err, ErrRefundLimitExceeded)
}

func IsConflict(err error) bool {
	return errorCategory(err) == goerrors.CategoryConflict
}

// IsRetryable reports whether a job that failed with err should be retried.
// Missing entities, bad input and conflicts are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsNotFound(err) && !IsValidation(err) && !IsConflict(err)
}

func errorCategory(err error) goerrors.Category {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.Category
	}
	return ""
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "Something went wrong"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorCodeBadRequest
	case goerrors.CategoryNotFound:
		return ErrorCodeNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorCodeAuthentication
	case goerrors.CategoryConflict:
		return ErrorCodeIdempotencyConflict
	case goerrors.CategoryExternal:
		return ErrorCodeTransientFailure
	default:
		return ErrorCodeInternal
	}
}

func httpStatusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
