package sqlstore

import (
	"time"

	"github.com/goliatone/go-payments/core"
)

func newMerchantRecord(in core.Merchant) *merchantRecord {
	return &merchantRecord{
		ID:        in.ID,
		Name:      in.Name,
		Email:     in.Email,
		APIKey:    in.APIKey,
		APISecret: in.APISecret,
		CreatedAt: in.CreatedAt.UTC(),
		UpdatedAt: in.UpdatedAt.UTC(),
	}
}

func (r *merchantRecord) toDomain() core.Merchant {
	return core.Merchant{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		APIKey:    r.APIKey,
		APISecret: r.APISecret,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func newOrderRecord(in core.Order) *orderRecord {
	return &orderRecord{
		ID:         in.ID,
		MerchantID: in.MerchantID,
		Amount:     in.Amount,
		Currency:   in.Currency,
		Status:     string(in.Status),
		Receipt:    in.Receipt,
		Notes:      copyAnyMap(in.Notes),
		CreatedAt:  in.CreatedAt.UTC(),
		UpdatedAt:  in.UpdatedAt.UTC(),
	}
}

func (r *orderRecord) toDomain() core.Order {
	return core.Order{
		ID:         r.ID,
		MerchantID: r.MerchantID,
		Amount:     r.Amount,
		Currency:   r.Currency,
		Status:     core.OrderStatus(r.Status),
		Receipt:    r.Receipt,
		Notes:      copyAnyMap(r.Notes),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

func newPaymentRecord(in core.Payment) *paymentRecord {
	return &paymentRecord{
		ID:               in.ID,
		OrderID:          in.OrderID,
		MerchantID:       in.MerchantID,
		Amount:           in.Amount,
		Currency:         in.Currency,
		Method:           string(in.Method),
		Status:           string(in.Status),
		VPA:              in.VPA,
		CardNetwork:      in.CardNetwork,
		CardLast4:        in.CardLast4,
		ErrorCode:        in.ErrorCode,
		ErrorDescription: in.ErrorDescription,
		Captured:         in.Captured,
		IdempotencyKey:   in.IdempotencyKey,
		CreatedAt:        in.CreatedAt.UTC(),
		UpdatedAt:        in.UpdatedAt.UTC(),
	}
}

func (r *paymentRecord) toDomain() core.Payment {
	return core.Payment{
		ID:               r.ID,
		OrderID:          r.OrderID,
		MerchantID:       r.MerchantID,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Method:           core.PaymentMethod(r.Method),
		Status:           core.PaymentStatus(r.Status),
		VPA:              r.VPA,
		CardNetwork:      r.CardNetwork,
		CardLast4:        r.CardLast4,
		ErrorCode:        r.ErrorCode,
		ErrorDescription: r.ErrorDescription,
		Captured:         r.Captured,
		IdempotencyKey:   r.IdempotencyKey,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func (r *paymentLogRecord) toDomain() core.PaymentLog {
	return core.PaymentLog{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		OldStatus: core.PaymentStatus(r.OldStatus),
		NewStatus: core.PaymentStatus(r.NewStatus),
		WorkerID:  r.WorkerID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func newRefundRecord(in core.Refund) *refundRecord {
	return &refundRecord{
		ID:               in.ID,
		PaymentID:        in.PaymentID,
		MerchantID:       in.MerchantID,
		Amount:           in.Amount,
		Status:           string(in.Status),
		Reason:           in.Reason,
		ErrorCode:        in.ErrorCode,
		ErrorDescription: in.ErrorDescription,
		ProcessedAt:      cloneTimePointer(in.ProcessedAt),
		CreatedAt:        in.CreatedAt.UTC(),
		UpdatedAt:        in.UpdatedAt.UTC(),
	}
}

func (r *refundRecord) toDomain() core.Refund {
	return core.Refund{
		ID:               r.ID,
		PaymentID:        r.PaymentID,
		MerchantID:       r.MerchantID,
		Amount:           r.Amount,
		Status:           core.RefundStatus(r.Status),
		Reason:           r.Reason,
		ErrorCode:        r.ErrorCode,
		ErrorDescription: r.ErrorDescription,
		ProcessedAt:      cloneTimePointer(r.ProcessedAt),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func newWebhookRecord(in core.Webhook) *webhookRecord {
	return &webhookRecord{
		ID:         in.ID,
		MerchantID: in.MerchantID,
		URL:        in.URL,
		Secret:     in.Secret,
		Active:     in.Active,
		CreatedAt:  in.CreatedAt.UTC(),
		UpdatedAt:  in.UpdatedAt.UTC(),
	}
}

func (r *webhookRecord) toDomain() core.Webhook {
	return core.Webhook{
		ID:         r.ID,
		MerchantID: r.MerchantID,
		URL:        r.URL,
		Secret:     r.Secret,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

func newWebhookLogRecord(in core.WebhookLog) *webhookLogRecord {
	return &webhookLogRecord{
		ID:            in.ID,
		MerchantID:    in.MerchantID,
		Event:         in.Event,
		Payload:       copyAnyMap(in.Payload),
		Status:        string(in.Status),
		Attempts:      in.Attempts,
		ResponseCode:  in.ResponseCode,
		ResponseBody:  in.ResponseBody,
		LastAttemptAt: cloneTimePointer(in.LastAttemptAt),
		NextRetryAt:   cloneTimePointer(in.NextRetryAt),
		CreatedAt:     in.CreatedAt.UTC(),
		UpdatedAt:     in.UpdatedAt.UTC(),
	}
}

func (r *webhookLogRecord) toDomain() core.WebhookLog {
	return core.WebhookLog{
		ID:            r.ID,
		MerchantID:    r.MerchantID,
		Event:         r.Event,
		Payload:       copyAnyMap(r.Payload),
		Status:        core.WebhookLogStatus(r.Status),
		Attempts:      r.Attempts,
		ResponseCode:  r.ResponseCode,
		ResponseBody:  r.ResponseBody,
		LastAttemptAt: cloneTimePointer(r.LastAttemptAt),
		NextRetryAt:   cloneTimePointer(r.NextRetryAt),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func newIdempotencyRecord(in core.IdempotencyRecord) *idempotencyRecord {
	return &idempotencyRecord{
		ID:           in.ID,
		MerchantID:   in.MerchantID,
		Key:          in.Key,
		RequestHash:  in.RequestHash,
		ResponseCode: in.ResponseCode,
		ResponseBody: append([]byte(nil), in.ResponseBody...),
		CreatedAt:    in.CreatedAt.UTC(),
		ExpiresAt:    in.ExpiresAt.UTC(),
	}
}

func (r *idempotencyRecord) toDomain() core.IdempotencyRecord {
	return core.IdempotencyRecord{
		ID:           r.ID,
		MerchantID:   r.MerchantID,
		Key:          r.Key,
		RequestHash:  r.RequestHash,
		ResponseCode: r.ResponseCode,
		ResponseBody: append([]byte(nil), r.ResponseBody...),
		CreatedAt:    r.CreatedAt.UTC(),
		ExpiresAt:    r.ExpiresAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
