package webhooks

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/goliatone/go-payments/core"
)

const (
	defaultDeliveryTimeout   = 5 * time.Second
	defaultClaimLease        = 60 * time.Second
	defaultResponseBodyLimit = 1000

	noActiveWebhooksMessage = "No active webhooks configured for merchant"
)

// DeliveryResult describes what one Deliver call did.
type DeliveryResult struct {
	Log       core.WebhookLog
	Attempted bool
	// Skipped is set when the log was not due or another deliverer owns the
	// attempt.
	Skipped bool
	// Stale is set when the outcome could not be committed because the log
	// changed after the claim.
	Stale     bool
	Delivered int
	Failed    int
}

type Deliverer struct {
	Logs      core.WebhookLogStore
	Webhooks  core.WebhookStore
	Sender    Sender
	Backoff   BackoffTable
	Timeout   time.Duration
	Lease     time.Duration
	BodyLimit int
	Now       func() time.Time
	NewID     func() string
	Logger    core.Logger
}

func NewDeliverer(logs core.WebhookLogStore, webhooks core.WebhookStore, sender Sender) *Deliverer {
	return &Deliverer{
		Logs:      logs,
		Webhooks:  webhooks,
		Sender:    sender,
		Backoff:   DefaultBackoffTable(),
		Timeout:   defaultDeliveryTimeout,
		Lease:     defaultClaimLease,
		BodyLimit: defaultResponseBodyLimit,
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     uuid.NewString,
	}
}

// NewDelivererFromConfig applies the timeout, response body limit and
// backoff table of cfg.
func NewDelivererFromConfig(
	logs core.WebhookLogStore,
	webhooks core.WebhookStore,
	sender Sender,
	cfg core.WebhookConfig,
) *Deliverer {
	d := NewDeliverer(logs, webhooks, sender)
	if timeout := cfg.Timeout(); timeout > 0 {
		d.Timeout = timeout
	}
	if cfg.ResponseBodyLimit > 0 {
		d.BodyLimit = cfg.ResponseBodyLimit
	}
	if schedule := cfg.RetrySchedule(); len(schedule) > 0 {
		d.Backoff = NewBackoffTable(schedule)
	}
	return d
}

// Ingest records a new event as a pending log due now and attempts delivery
// right away. Only a failed insert is reported as an error.
func (d *Deliverer) Ingest(ctx context.Context, job core.WebhookJob) (DeliveryResult, error) {
	if err := d.validate(); err != nil {
		return DeliveryResult{}, err
	}
	merchantID := strings.TrimSpace(job.MerchantID)
	if merchantID == "" {
		return DeliveryResult{}, core.ValidationError("merchant_id", "merchant_id is required")
	}
	now := d.now()
	log, err := d.Logs.Create(ctx, core.WebhookLog{
		ID:          d.newID(),
		MerchantID:  merchantID,
		Event:       strings.TrimSpace(job.Event),
		Payload:     job.Payload,
		Status:      core.WebhookLogStatusPending,
		Attempts:    0,
		NextRetryAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return DeliveryResult{}, core.TransientError(err, "create webhook log")
	}
	// The log is durable from here on. The scheduler owns retries of a
	// failed first attempt.
	result, err := d.Deliver(ctx, log.ID)
	if err != nil {
		d.logWarn(ctx, "webhook delivery deferred to scheduler", "log_id", log.ID, "error", err)
		return DeliveryResult{Log: log}, nil
	}
	return result, nil
}

// HandleJob consumes a webhook queue entry.
func (d *Deliverer) HandleJob(ctx context.Context, msg *core.JobExecutionMessage) error {
	job, err := core.DecodeWebhookJob(msg)
	if err != nil {
		return err
	}
	_, err = d.Ingest(ctx, job)
	return err
}

// Deliver performs one attempt for a due log and commits its outcome.
func (d *Deliverer) Deliver(ctx context.Context, logID string) (DeliveryResult, error) {
	return d.deliver(ctx, logID, d.now)
}

func (d *Deliverer) deliver(ctx context.Context, logID string, clock func() time.Time) (DeliveryResult, error) {
	if err := d.validate(); err != nil {
		return DeliveryResult{}, err
	}
	id := strings.TrimSpace(logID)
	current, err := d.Logs.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return DeliveryResult{}, core.NotFoundError("WebhookLog", logID)
		}
		return DeliveryResult{}, core.TransientError(err, "load webhook log")
	}
	if current.Status != core.WebhookLogStatusPending {
		return DeliveryResult{Log: current, Skipped: true}, nil
	}

	// Subscriptions are resolved before the claim so a lookup failure leaves
	// the log due.
	webhooks, err := d.Webhooks.ListActive(ctx, current.MerchantID)
	if err != nil {
		return DeliveryResult{}, core.TransientError(err, "list active webhooks")
	}

	now := clock().UTC()
	log, claimed, err := d.Logs.Claim(ctx, id, now, now.Add(d.claimLease(len(webhooks))))
	if err != nil {
		if core.IsNotFound(err) {
			return DeliveryResult{}, core.NotFoundError("WebhookLog", logID)
		}
		return DeliveryResult{}, core.TransientError(err, "claim webhook log")
	}
	if !claimed {
		return DeliveryResult{Log: log, Skipped: true}, nil
	}

	if len(webhooks) == 0 {
		return d.commit(ctx, log, core.RecordAttemptInput{
			LogID:            log.ID,
			ExpectedAttempts: log.Attempts,
			Status:           core.WebhookLogStatusFailed,
			Attempts:         log.Attempts,
			ResponseBody:     noActiveWebhooksMessage,
			LastAttemptAt:    clock().UTC(),
		}, DeliveryResult{})
	}

	body, err := Canonicalize(log.Payload)
	if err != nil {
		// No attempt can succeed for this payload.
		return d.commit(ctx, log, core.RecordAttemptInput{
			LogID:            log.ID,
			ExpectedAttempts: log.Attempts,
			Status:           core.WebhookLogStatusFailed,
			Attempts:         log.Attempts,
			ResponseBody:     truncate("invalid payload: "+err.Error(), d.bodyLimit()),
			LastAttemptAt:    clock().UTC(),
		}, DeliveryResult{})
	}

	result := DeliveryResult{Attempted: true}
	code := 0
	responseBody := ""
	for _, webhook := range webhooks {
		response, sendErr := d.send(ctx, webhook, body)
		if sendErr != nil {
			responseBody = sendErr.Error()
			result.Failed++
			d.logWarn(ctx, "webhook delivery error",
				"log_id", log.ID, "webhook_id", webhook.ID, "attempt", log.Attempts+1, "error", sendErr)
			continue
		}
		code = response.StatusCode
		responseBody = response.Body
		if successful(response.StatusCode) {
			result.Delivered++
			continue
		}
		result.Failed++
		d.logWarn(ctx, "webhook delivery rejected",
			"log_id", log.ID, "webhook_id", webhook.ID, "attempt", log.Attempts+1, "status_code", response.StatusCode)
	}

	attemptAt := clock().UTC()
	record := core.RecordAttemptInput{
		LogID:            log.ID,
		ExpectedAttempts: log.Attempts,
		Attempts:         log.Attempts + 1,
		ResponseCode:     code,
		ResponseBody:     truncate(responseBody, d.bodyLimit()),
		LastAttemptAt:    attemptAt,
	}
	switch delay, retry := d.Backoff.Next(record.Attempts); {
	case result.Failed == 0:
		record.Status = core.WebhookLogStatusSuccess
	case retry:
		next := attemptAt.Add(delay)
		record.Status = core.WebhookLogStatusPending
		record.NextRetryAt = &next
	default:
		record.Status = core.WebhookLogStatusFailed
	}
	return d.commit(ctx, log, record, result)
}

// Retry resets a log owned by merchantID for a fresh retry cycle. The
// scheduler picks it up on its next pass.
func (d *Deliverer) Retry(ctx context.Context, merchantID string, logID string) (core.WebhookLog, error) {
	if err := d.validate(); err != nil {
		return core.WebhookLog{}, err
	}
	log, err := d.Logs.Get(ctx, strings.TrimSpace(logID))
	if err != nil {
		if core.IsNotFound(err) {
			return core.WebhookLog{}, core.NotFoundError("WebhookLog", logID)
		}
		return core.WebhookLog{}, core.MapError(err)
	}
	if log.MerchantID != strings.TrimSpace(merchantID) {
		return core.WebhookLog{}, core.NotFoundError("WebhookLog", logID)
	}
	reset, err := d.Logs.ResetForRetry(ctx, log.ID, d.now())
	if err != nil {
		return core.WebhookLog{}, core.MapError(err)
	}
	d.logInfo(ctx, "webhook log reset for retry", "log_id", log.ID, "merchant_id", log.MerchantID)
	return reset, nil
}

func (d *Deliverer) ListLogs(ctx context.Context, merchantID string, limit int) ([]core.WebhookLog, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	logs, err := d.Logs.ListByMerchant(ctx, strings.TrimSpace(merchantID), limit)
	if err != nil {
		return nil, core.MapError(err)
	}
	return logs, nil
}

func (d *Deliverer) GetLog(ctx context.Context, merchantID string, logID string) (core.WebhookLog, error) {
	if err := d.validate(); err != nil {
		return core.WebhookLog{}, err
	}
	log, err := d.Logs.Get(ctx, strings.TrimSpace(logID))
	if err != nil || log.MerchantID != strings.TrimSpace(merchantID) {
		if err == nil || core.IsNotFound(err) {
			return core.WebhookLog{}, core.NotFoundError("WebhookLog", logID)
		}
		return core.WebhookLog{}, core.MapError(err)
	}
	return log, nil
}

func (d *Deliverer) send(ctx context.Context, webhook core.Webhook, body []byte) (Response, error) {
	timeout := d.timeout()
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Sender.Send(sendCtx, Request{
		URL:  webhook.URL,
		Body: body,
		Headers: map[string]string{
			ContentTypeHeader: ContentTypeJSON,
			SignatureHeader:   Sign(webhook.Secret, body),
		},
		Timeout: timeout,
	})
}

func (d *Deliverer) commit(
	ctx context.Context,
	log core.WebhookLog,
	record core.RecordAttemptInput,
	result DeliveryResult,
) (DeliveryResult, error) {
	applied, err := d.Logs.RecordAttempt(ctx, record)
	if err != nil {
		return DeliveryResult{}, core.TransientError(err, "record webhook attempt")
	}
	if !applied {
		d.logWarn(ctx, "webhook attempt not recorded, log changed after claim", "log_id", log.ID)
		result.Stale = true
		result.Log = log
		return result, nil
	}
	log.Status = record.Status
	log.Attempts = record.Attempts
	log.ResponseCode = record.ResponseCode
	log.ResponseBody = record.ResponseBody
	attemptAt := record.LastAttemptAt
	log.LastAttemptAt = &attemptAt
	log.NextRetryAt = record.NextRetryAt
	log.UpdatedAt = attemptAt
	result.Log = log

	fields := []any{"log_id", log.ID, "merchant_id", log.MerchantID, "event", log.Event,
		"status", string(log.Status), "attempts", log.Attempts}
	switch log.Status {
	case core.WebhookLogStatusSuccess:
		d.logInfo(ctx, "webhook delivered", fields...)
	case core.WebhookLogStatusPending:
		d.logInfo(ctx, "webhook retry scheduled", append(fields, "next_retry_at", *log.NextRetryAt)...)
	default:
		d.logWarn(ctx, "webhook permanently failed", fields...)
	}
	return result, nil
}

func (d *Deliverer) validate() error {
	if d == nil || d.Logs == nil || d.Webhooks == nil || d.Sender == nil {
		return fmt.Errorf("webhooks: deliverer requires log store, webhook store and sender")
	}
	return nil
}

// claimLease covers the sequential fan-out: the base lease plus one send
// timeout per subscription.
func (d *Deliverer) claimLease(subscriptions int) time.Duration {
	lease := d.Lease
	if lease <= 0 {
		lease = defaultClaimLease
	}
	return lease + time.Duration(subscriptions)*d.timeout()
}

func (d *Deliverer) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return defaultDeliveryTimeout
}

func (d *Deliverer) bodyLimit() int {
	if d.BodyLimit > 0 {
		return d.BodyLimit
	}
	return defaultResponseBodyLimit
}

func (d *Deliverer) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Deliverer) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d *Deliverer) logInfo(ctx context.Context, msg string, args ...any) {
	if d.Logger != nil {
		d.Logger.WithContext(ctx).Info(msg, args...)
	}
}

func (d *Deliverer) logWarn(ctx context.Context, msg string, args ...any) {
	if d.Logger != nil {
		d.Logger.WithContext(ctx).Warn(msg, args...)
	}
}

// truncate cuts value to at most limit characters without splitting a rune.
func truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
