package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type MerchantStore interface {
	Create(ctx context.Context, merchant Merchant) (Merchant, error)
	Get(ctx context.Context, id string) (Merchant, error)
	GetByAPIKey(ctx context.Context, apiKey string) (Merchant, error)
}

type OrderStore interface {
	Create(ctx context.Context, order Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]Order, error)
}

// SettlePaymentInput finalizes a processing payment and its order.
type SettlePaymentInput struct {
	PaymentID        string
	Status           PaymentStatus
	OrderStatus      OrderStatus
	ErrorCode        string
	ErrorDescription string
	At               time.Time
}

// FailStuckInput forces a stuck payment into failed. The transition only
// applies while the row still matches status=processing and
// updated_at < Threshold.
type FailStuckInput struct {
	PaymentID        string
	Threshold        time.Time
	ErrorCode        string
	ErrorDescription string
	WorkerID         string
	LogID            string
	At               time.Time
}

type PaymentStore interface {
	Create(ctx context.Context, payment Payment) (Payment, error)
	Get(ctx context.Context, id string) (Payment, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]Payment, error)
	MarkProcessing(ctx context.Context, id string, at time.Time) (Payment, error)
	// Settle writes the payment and order transition in one transaction. It
	// only applies while the payment is still processing; otherwise the stored
	// payment is returned with applied=false.
	Settle(ctx context.Context, in SettlePaymentInput) (payment Payment, applied bool, err error)
	// MarkCaptured flips captured false->true for a successful payment. The
	// boolean reports whether this call performed the transition.
	MarkCaptured(ctx context.Context, id string, at time.Time) (Payment, bool, error)
	ListStuck(ctx context.Context, before time.Time, limit int) ([]Payment, error)
	// FailStuck applies the conditional transition and records the audit log
	// in one transaction. It reports false when the row no longer matched.
	FailStuck(ctx context.Context, in FailStuckInput) (bool, error)
	ListLogs(ctx context.Context, paymentID string) ([]PaymentLog, error)
}

type CompleteRefundInput struct {
	RefundID         string
	Status           RefundStatus
	ErrorCode        string
	ErrorDescription string
	At               time.Time
}

type RefundStore interface {
	// CreateWithinLimit inserts the refund only if the non-failed total for
	// its payment plus the new amount stays within limit. It returns
	// ErrRefundLimitExceeded otherwise.
	CreateWithinLimit(ctx context.Context, refund Refund, limit int64) (Refund, error)
	Get(ctx context.Context, id string) (Refund, error)
	ListByPayment(ctx context.Context, paymentID string) ([]Refund, error)
	Complete(ctx context.Context, in CompleteRefundInput) (Refund, error)
}

type WebhookStore interface {
	Create(ctx context.Context, webhook Webhook) (Webhook, error)
	Get(ctx context.Context, id string) (Webhook, error)
	ListActive(ctx context.Context, merchantID string) ([]Webhook, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]Webhook, error)
	SetActive(ctx context.Context, id string, active bool) (Webhook, error)
}

// RecordAttemptInput is the single write applied after one delivery attempt.
// It only applies while the log is still pending at ExpectedAttempts.
type RecordAttemptInput struct {
	LogID            string
	ExpectedAttempts int
	Status           WebhookLogStatus
	Attempts         int
	ResponseCode     int
	ResponseBody     string
	LastAttemptAt    time.Time
	NextRetryAt      *time.Time
}

type WebhookLogStore interface {
	Create(ctx context.Context, log WebhookLog) (WebhookLog, error)
	Get(ctx context.Context, id string) (WebhookLog, error)
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]WebhookLog, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]WebhookLog, error)
	// Claim leases a due pending log by pushing next_retry_at to leaseUntil.
	// It reports false when another deliverer already owns the attempt.
	Claim(ctx context.Context, id string, now time.Time, leaseUntil time.Time) (WebhookLog, bool, error)
	RecordAttempt(ctx context.Context, in RecordAttemptInput) (bool, error)
	ResetForRetry(ctx context.Context, id string, now time.Time) (WebhookLog, error)
	CountByStatus(ctx context.Context) (map[WebhookLogStatus]int, error)
}

type IdempotencyStore interface {
	Find(ctx context.Context, merchantID string, key string, now time.Time) (IdempotencyRecord, bool, error)
	// Insert stores a new record. When (merchant_id, key) already exists the
	// stored record is returned with existing=true.
	Insert(ctx context.Context, record IdempotencyRecord) (stored IdempotencyRecord, existing bool, err error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type StoreProvider interface {
	MerchantStore() MerchantStore
	OrderStore() OrderStore
	PaymentStore() PaymentStore
	RefundStore() RefundStore
	WebhookStore() WebhookStore
	WebhookLogStore() WebhookLogStore
	IdempotencyStore() IdempotencyStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

const (
	JobIDPaymentProcess = "payments.payment.process"
	JobIDRefundProcess  = "payments.refund.process"
	JobIDWebhookDeliver = "payments.webhook.deliver"
	JobIDAlert          = "payments.alert"
)

// ErrJobQueueEmpty is returned by a dequeuer when the blocking pop timed out.
var ErrJobQueueEmpty = errors.New("core: job queue empty")

// JobExecutionMessage is a queue entry. Parameters is the JSON object carried
// on the wire; JobID selects the queue it is routed to.
type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type QueueStats struct {
	Queue      string
	Depth      int64
	DeadLetter int64
}

// QueueInspector exposes queue depths for operational endpoints.
type QueueInspector interface {
	Stats(ctx context.Context) ([]QueueStats, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
