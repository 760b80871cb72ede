package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	AlertIssueStuckProcessing = "stuck_processing"

	// ParamRetries is the optional retry counter carried on any job payload.
	ParamRetries = "retries"
)

type PaymentJob struct {
	PaymentID string `json:"payment_id"`
	Retries   int    `json:"retries,omitempty"`
}

type RefundJob struct {
	RefundID string `json:"refund_id"`
}

type WebhookJob struct {
	MerchantID string         `json:"merchant_id"`
	Event      string         `json:"event"`
	Payload    map[string]any `json:"payload"`
}

type AlertJob struct {
	PaymentID string `json:"payment_id"`
	Issue     string `json:"issue"`
	Timestamp string `json:"timestamp"`
}

func NewAlertJob(paymentID string, issue string, at time.Time) AlertJob {
	return AlertJob{
		PaymentID: paymentID,
		Issue:     issue,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

func (j PaymentJob) Message() *JobExecutionMessage {
	params := map[string]any{"payment_id": j.PaymentID}
	if j.Retries > 0 {
		params[ParamRetries] = j.Retries
	}
	return &JobExecutionMessage{JobID: JobIDPaymentProcess, Parameters: params}
}

func (j RefundJob) Message() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:      JobIDRefundProcess,
		Parameters: map[string]any{"refund_id": j.RefundID},
	}
}

func (j WebhookJob) Message() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID: JobIDWebhookDeliver,
		Parameters: map[string]any{
			"merchant_id": j.MerchantID,
			"event":       j.Event,
			"payload":     cloneAnyMap(j.Payload),
		},
	}
}

func (j AlertJob) Message() *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID: JobIDAlert,
		Parameters: map[string]any{
			"payment_id": j.PaymentID,
			"issue":      j.Issue,
			"timestamp":  j.Timestamp,
		},
	}
}

func DecodePaymentJob(msg *JobExecutionMessage) (PaymentJob, error) {
	var out PaymentJob
	if err := DecodeParameters(msg, &out); err != nil {
		return PaymentJob{}, err
	}
	if strings.TrimSpace(out.PaymentID) == "" {
		return PaymentJob{}, ValidationError("payment_id", "payment_id is required")
	}
	return out, nil
}

func DecodeRefundJob(msg *JobExecutionMessage) (RefundJob, error) {
	var out RefundJob
	if err := DecodeParameters(msg, &out); err != nil {
		return RefundJob{}, err
	}
	if strings.TrimSpace(out.RefundID) == "" {
		return RefundJob{}, ValidationError("refund_id", "refund_id is required")
	}
	return out, nil
}

func DecodeWebhookJob(msg *JobExecutionMessage) (WebhookJob, error) {
	var out WebhookJob
	if err := DecodeParameters(msg, &out); err != nil {
		return WebhookJob{}, err
	}
	if strings.TrimSpace(out.MerchantID) == "" {
		return WebhookJob{}, ValidationError("merchant_id", "merchant_id is required")
	}
	if strings.TrimSpace(out.Event) == "" {
		return WebhookJob{}, ValidationError("event", "event is required")
	}
	if out.Payload == nil {
		out.Payload = map[string]any{}
	}
	return out, nil
}

func DecodeAlertJob(msg *JobExecutionMessage) (AlertJob, error) {
	var out AlertJob
	if err := DecodeParameters(msg, &out); err != nil {
		return AlertJob{}, err
	}
	return out, nil
}

// DecodeParameters converts the loosely typed wire parameters into target.
func DecodeParameters(msg *JobExecutionMessage, target any) error {
	if msg == nil {
		return ValidationError("message", "job message is required")
	}
	raw, err := json.Marshal(msg.Parameters)
	if err != nil {
		return ValidationError("parameters", fmt.Sprintf("encode job parameters: %v", err))
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return ValidationError("parameters", fmt.Sprintf("decode job parameters: %v", err))
	}
	return nil
}

// EncodeJobPayload renders the wire form of a job: the parameters object.
func EncodeJobPayload(msg *JobExecutionMessage) ([]byte, error) {
	if msg == nil {
		return nil, ValidationError("message", "job message is required")
	}
	params := msg.Parameters
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, ValidationError("parameters", fmt.Sprintf("encode job payload: %v", err))
	}
	return raw, nil
}

// DecodeJobPayload parses a wire payload popped from the queue routed to jobID.
func DecodeJobPayload(jobID string, raw []byte) (*JobExecutionMessage, error) {
	params := map[string]any{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, ValidationError("payload", fmt.Sprintf("decode job payload: %v", err))
	}
	return &JobExecutionMessage{JobID: jobID, Parameters: params}, nil
}

// JobRetries reads the retry counter from a message. Missing or malformed
// counters read as zero.
func JobRetries(msg *JobExecutionMessage) int {
	if msg == nil {
		return 0
	}
	switch typed := msg.Parameters[ParamRetries].(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case json.Number:
		n, err := typed.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

func cloneJobMessage(msg *JobExecutionMessage) *JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &JobExecutionMessage{
		JobID:          msg.JobID,
		Parameters:     cloneAnyMap(msg.Parameters),
		IdempotencyKey: msg.IdempotencyKey,
	}
}
