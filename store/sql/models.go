package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type merchantRecord struct {
	bun.BaseModel `bun:"table:merchants,alias:m"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	APIKey    string    `bun:"api_key,notnull"`
	APISecret string    `bun:"api_secret,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderRecord struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         string         `bun:"id,pk"`
	MerchantID string         `bun:"merchant_id,notnull"`
	Amount     int64          `bun:"amount,notnull"`
	Currency   string         `bun:"currency,notnull"`
	Status     string         `bun:"status,notnull"`
	Receipt    string         `bun:"receipt"`
	Notes      map[string]any `bun:"notes,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type paymentRecord struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID               string    `bun:"id,pk"`
	OrderID          string    `bun:"order_id,notnull"`
	MerchantID       string    `bun:"merchant_id,notnull"`
	Amount           int64     `bun:"amount,notnull"`
	Currency         string    `bun:"currency,notnull"`
	Method           string    `bun:"method,notnull"`
	Status           string    `bun:"status,notnull"`
	VPA              string    `bun:"vpa"`
	CardNetwork      string    `bun:"card_network"`
	CardLast4        string    `bun:"card_last4"`
	ErrorCode        string    `bun:"error_code"`
	ErrorDescription string    `bun:"error_description"`
	Captured         bool      `bun:"captured,notnull"`
	IdempotencyKey   string    `bun:"idempotency_key"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type paymentLogRecord struct {
	bun.BaseModel `bun:"table:payment_logs,alias:pl"`

	ID        string    `bun:"id,pk"`
	PaymentID string    `bun:"payment_id,notnull"`
	OldStatus string    `bun:"old_status,notnull"`
	NewStatus string    `bun:"new_status,notnull"`
	WorkerID  string    `bun:"worker_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type refundRecord struct {
	bun.BaseModel `bun:"table:refunds,alias:r"`

	ID               string     `bun:"id,pk"`
	PaymentID        string     `bun:"payment_id,notnull"`
	MerchantID       string     `bun:"merchant_id,notnull"`
	Amount           int64      `bun:"amount,notnull"`
	Status           string     `bun:"status,notnull"`
	Reason           string     `bun:"reason"`
	ErrorCode        string     `bun:"error_code"`
	ErrorDescription string     `bun:"error_description"`
	ProcessedAt      *time.Time `bun:"processed_at,nullzero"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookRecord struct {
	bun.BaseModel `bun:"table:webhooks,alias:w"`

	ID         string    `bun:"id,pk"`
	MerchantID string    `bun:"merchant_id,notnull"`
	URL        string    `bun:"url,notnull"`
	Secret     string    `bun:"secret,notnull"`
	Active     bool      `bun:"active,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookLogRecord struct {
	bun.BaseModel `bun:"table:webhook_logs,alias:wl"`

	ID            string         `bun:"id,pk"`
	MerchantID    string         `bun:"merchant_id,notnull"`
	Event         string         `bun:"event,notnull"`
	Payload       map[string]any `bun:"payload,type:jsonb,notnull"`
	Status        string         `bun:"status,notnull"`
	Attempts      int            `bun:"attempts,notnull"`
	ResponseCode  int            `bun:"response_code"`
	ResponseBody  string         `bun:"response_body"`
	LastAttemptAt *time.Time     `bun:"last_attempt_at,nullzero"`
	NextRetryAt   *time.Time     `bun:"next_retry_at,nullzero"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type idempotencyRecord struct {
	bun.BaseModel `bun:"table:idempotency_keys,alias:ik"`

	ID           string    `bun:"id,pk"`
	MerchantID   string    `bun:"merchant_id,notnull"`
	Key          string    `bun:"idempotency_key,notnull"`
	RequestHash  string    `bun:"request_hash,notnull"`
	ResponseCode int       `bun:"response_code,notnull"`
	ResponseBody []byte    `bun:"response_body,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt    time.Time `bun:"expires_at,notnull"`
}
