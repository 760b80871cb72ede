package core

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

type PaymentStatus string

const (
	PaymentStatusCreated    PaymentStatus = "created"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Terminal reports whether no further worker transition is expected.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

type PaymentMethod string

const (
	PaymentMethodUPI  PaymentMethod = "upi"
	PaymentMethodCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodUPI || m == PaymentMethodCard
}

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

type WebhookLogStatus string

const (
	WebhookLogStatusPending WebhookLogStatus = "pending"
	WebhookLogStatusSuccess WebhookLogStatus = "success"
	WebhookLogStatusFailed  WebhookLogStatus = "failed"
)

// Error codes written onto payments and refunds. They describe business
// outcomes and are distinct from the API error text codes in errors.go.
const (
	PaymentErrorFailed          = "PAYMENT_FAILED"
	PaymentErrorStuckProcessing = "STUCK_PROCESSING"
	RefundErrorFailed           = "REFUND_FAILED"
)

const (
	paymentFailedDescription = "Payment authorization failed"
	stuckPaymentDescription  = "Payment stuck in PROCESSING beyond threshold"
	refundFailedDescription  = "Refund processing failed"
)

const (
	IDPrefixMerchant = "mrc_"
	IDPrefixOrder    = "order_"
	IDPrefixPayment  = "pay_"
	IDPrefixRefund   = "refund_"
	IDPrefixReceipt  = "rcpt_"
	IDPrefixWebhook  = "whk_"
)

const DefaultCurrency = "INR"

// MinimumOrderAmount is expressed in minor units.
const MinimumOrderAmount int64 = 100

type Merchant struct {
	ID        string
	Name      string
	Email     string
	APIKey    string
	APISecret string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID         string
	MerchantID string
	Amount     int64
	Currency   string
	Status     OrderStatus
	Receipt    string
	Notes      map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Payment struct {
	ID               string
	OrderID          string
	MerchantID       string
	Amount           int64
	Currency         string
	Method           PaymentMethod
	Status           PaymentStatus
	VPA              string
	CardNetwork      string
	CardLast4        string
	ErrorCode        string
	ErrorDescription string
	Captured         bool
	IdempotencyKey   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Refund struct {
	ID               string
	PaymentID        string
	MerchantID       string
	Amount           int64
	Status           RefundStatus
	Reason           string
	ErrorCode        string
	ErrorDescription string
	ProcessedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Webhook struct {
	ID         string
	MerchantID string
	URL        string
	Secret     string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type WebhookLog struct {
	ID            string
	MerchantID    string
	Event         string
	Payload       map[string]any
	Status        WebhookLogStatus
	Attempts      int
	ResponseCode  int
	ResponseBody  string
	LastAttemptAt *time.Time
	NextRetryAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IdempotencyRecord holds the response produced by the first request made with
// a merchant scoped key. Records are immutable until they expire.
type IdempotencyRecord struct {
	ID           string
	MerchantID   string
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

type PaymentLog struct {
	ID        string
	PaymentID string
	OldStatus PaymentStatus
	NewStatus PaymentStatus
	WorkerID  string
	CreatedAt time.Time
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := value.UTC()
	return &copied
}

func cloneAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
