// Package memstore is an in-process implementation of every gateway store.
// All stores share one lock so multi-entity writes (settle, stuck payment
// reconciliation, refund limit checks) are atomic like their SQL versions.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-payments/core"
)

type Store struct {
	mu          sync.Mutex
	merchants   map[string]core.Merchant
	orders      map[string]core.Order
	payments    map[string]core.Payment
	paymentLogs map[string][]core.PaymentLog
	refunds     map[string]core.Refund
	webhooks    map[string]core.Webhook
	webhookLogs map[string]core.WebhookLog
	idempotency map[string]core.IdempotencyRecord
}

func New() *Store {
	return &Store{
		merchants:   map[string]core.Merchant{},
		orders:      map[string]core.Order{},
		payments:    map[string]core.Payment{},
		paymentLogs: map[string][]core.PaymentLog{},
		refunds:     map[string]core.Refund{},
		webhooks:    map[string]core.Webhook{},
		webhookLogs: map[string]core.WebhookLog{},
		idempotency: map[string]core.IdempotencyRecord{},
	}
}

func (s *Store) MerchantStore() core.MerchantStore       { return merchantStore{s} }
func (s *Store) OrderStore() core.OrderStore             { return orderStore{s} }
func (s *Store) PaymentStore() core.PaymentStore         { return paymentStore{s} }
func (s *Store) RefundStore() core.RefundStore           { return refundStore{s} }
func (s *Store) WebhookStore() core.WebhookStore         { return webhookStore{s} }
func (s *Store) WebhookLogStore() core.WebhookLogStore   { return webhookLogStore{s} }
func (s *Store) IdempotencyStore() core.IdempotencyStore { return idempotencyStore{s} }

type merchantStore struct{ s *Store }

func (m merchantStore) Create(_ context.Context, merchant core.Merchant) (core.Merchant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.merchants[merchant.ID]; ok {
		return core.Merchant{}, core.ErrDuplicateKey
	}
	for _, existing := range m.s.merchants {
		if existing.APIKey == merchant.APIKey {
			return core.Merchant{}, core.ErrDuplicateKey
		}
	}
	m.s.merchants[merchant.ID] = merchant
	return merchant, nil
}

func (m merchantStore) Get(_ context.Context, id string) (core.Merchant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	merchant, ok := m.s.merchants[id]
	if !ok {
		return core.Merchant{}, core.ErrNotFound
	}
	return merchant, nil
}

func (m merchantStore) GetByAPIKey(_ context.Context, apiKey string) (core.Merchant, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, merchant := range m.s.merchants {
		if merchant.APIKey == apiKey {
			return merchant, nil
		}
	}
	return core.Merchant{}, core.ErrNotFound
}

type orderStore struct{ s *Store }

func (o orderStore) Create(_ context.Context, order core.Order) (core.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if _, ok := o.s.orders[order.ID]; ok {
		return core.Order{}, core.ErrDuplicateKey
	}
	order.Notes = cloneMap(order.Notes)
	o.s.orders[order.ID] = order
	return cloneOrder(order), nil
}

func (o orderStore) Get(_ context.Context, id string) (core.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order, ok := o.s.orders[id]
	if !ok {
		return core.Order{}, core.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (o orderStore) ListByMerchant(_ context.Context, merchantID string) ([]core.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := []core.Order{}
	for _, order := range o.s.orders {
		if order.MerchantID == merchantID {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

type paymentStore struct{ s *Store }

func (p paymentStore) Create(_ context.Context, payment core.Payment) (core.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.payments[payment.ID]; ok {
		return core.Payment{}, core.ErrDuplicateKey
	}
	p.s.payments[payment.ID] = payment
	return payment, nil
}

func (p paymentStore) Get(_ context.Context, id string) (core.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	payment, ok := p.s.payments[id]
	if !ok {
		return core.Payment{}, core.ErrNotFound
	}
	return payment, nil
}

func (p paymentStore) ListByMerchant(_ context.Context, merchantID string) ([]core.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := []core.Payment{}
	for _, payment := range p.s.payments {
		if payment.MerchantID == merchantID {
			out = append(out, payment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (p paymentStore) MarkProcessing(_ context.Context, id string, at time.Time) (core.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	payment, ok := p.s.payments[id]
	if !ok {
		return core.Payment{}, core.ErrNotFound
	}
	if payment.Status.Terminal() {
		return payment, nil
	}
	payment.Status = core.PaymentStatusProcessing
	payment.UpdatedAt = at.UTC()
	p.s.payments[id] = payment
	return payment, nil
}

func (p paymentStore) Settle(_ context.Context, in core.SettlePaymentInput) (core.Payment, bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	payment, ok := p.s.payments[in.PaymentID]
	if !ok {
		return core.Payment{}, false, core.ErrNotFound
	}
	if payment.Status != core.PaymentStatusProcessing {
		return payment, false, nil
	}
	order, ok := p.s.orders[payment.OrderID]
	if !ok {
		return core.Payment{}, false, core.ErrNotFound
	}
	payment.Status = in.Status
	payment.ErrorCode = in.ErrorCode
	payment.ErrorDescription = in.ErrorDescription
	payment.UpdatedAt = in.At.UTC()
	order.Status = in.OrderStatus
	order.UpdatedAt = in.At.UTC()
	p.s.payments[payment.ID] = payment
	p.s.orders[order.ID] = order
	return payment, true, nil
}

func (p paymentStore) MarkCaptured(_ context.Context, id string, at time.Time) (core.Payment, bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	payment, ok := p.s.payments[id]
	if !ok {
		return core.Payment{}, false, core.ErrNotFound
	}
	if payment.Status != core.PaymentStatusSuccess || payment.Captured {
		return payment, false, nil
	}
	payment.Captured = true
	payment.UpdatedAt = at.UTC()
	p.s.payments[id] = payment
	return payment, true, nil
}

func (p paymentStore) ListStuck(_ context.Context, before time.Time, limit int) ([]core.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := []core.Payment{}
	for _, payment := range p.s.payments {
		if payment.Status == core.PaymentStatusProcessing && payment.UpdatedAt.Before(before) {
			out = append(out, payment)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p paymentStore) FailStuck(_ context.Context, in core.FailStuckInput) (bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	payment, ok := p.s.payments[in.PaymentID]
	if !ok {
		return false, nil
	}
	if payment.Status != core.PaymentStatusProcessing || !payment.UpdatedAt.Before(in.Threshold) {
		return false, nil
	}
	old := payment.Status
	payment.Status = core.PaymentStatusFailed
	payment.ErrorCode = in.ErrorCode
	payment.ErrorDescription = in.ErrorDescription
	payment.UpdatedAt = in.At.UTC()
	p.s.payments[payment.ID] = payment
	p.s.paymentLogs[payment.ID] = append(p.s.paymentLogs[payment.ID], core.PaymentLog{
		ID:        in.LogID,
		PaymentID: payment.ID,
		OldStatus: old,
		NewStatus: core.PaymentStatusFailed,
		WorkerID:  in.WorkerID,
		CreatedAt: in.At.UTC(),
	})
	return true, nil
}

func (p paymentStore) ListLogs(_ context.Context, paymentID string) ([]core.PaymentLog, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return append([]core.PaymentLog{}, p.s.paymentLogs[paymentID]...), nil
}

type refundStore struct{ s *Store }

func (r refundStore) CreateWithinLimit(_ context.Context, refund core.Refund, limit int64) (core.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.refunds[refund.ID]; ok {
		return core.Refund{}, core.ErrDuplicateKey
	}
	var total int64
	for _, existing := range r.s.refunds {
		if existing.PaymentID == refund.PaymentID && existing.Status != core.RefundStatusFailed {
			total += existing.Amount
		}
	}
	if total+refund.Amount > limit {
		return core.Refund{}, core.ErrRefundLimitExceeded
	}
	r.s.refunds[refund.ID] = refund
	return cloneRefund(refund), nil
}

func (r refundStore) Get(_ context.Context, id string) (core.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	refund, ok := r.s.refunds[id]
	if !ok {
		return core.Refund{}, core.ErrNotFound
	}
	return cloneRefund(refund), nil
}

func (r refundStore) ListByPayment(_ context.Context, paymentID string) ([]core.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []core.Refund{}
	for _, refund := range r.s.refunds {
		if refund.PaymentID == paymentID {
			out = append(out, cloneRefund(refund))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (r refundStore) Complete(_ context.Context, in core.CompleteRefundInput) (core.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	refund, ok := r.s.refunds[in.RefundID]
	if !ok {
		return core.Refund{}, core.ErrNotFound
	}
	if refund.Status != core.RefundStatusPending {
		return cloneRefund(refund), nil
	}
	at := in.At.UTC()
	refund.Status = in.Status
	refund.ErrorCode = in.ErrorCode
	refund.ErrorDescription = in.ErrorDescription
	refund.ProcessedAt = &at
	refund.UpdatedAt = at
	r.s.refunds[refund.ID] = refund
	return cloneRefund(refund), nil
}

type webhookStore struct{ s *Store }

func (w webhookStore) Create(_ context.Context, webhook core.Webhook) (core.Webhook, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if _, ok := w.s.webhooks[webhook.ID]; ok {
		return core.Webhook{}, core.ErrDuplicateKey
	}
	w.s.webhooks[webhook.ID] = webhook
	return webhook, nil
}

func (w webhookStore) Get(_ context.Context, id string) (core.Webhook, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	webhook, ok := w.s.webhooks[id]
	if !ok {
		return core.Webhook{}, core.ErrNotFound
	}
	return webhook, nil
}

func (w webhookStore) ListActive(ctx context.Context, merchantID string) ([]core.Webhook, error) {
	all, err := w.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, webhook := range all {
		if webhook.Active {
			out = append(out, webhook)
		}
	}
	return out, nil
}

func (w webhookStore) ListByMerchant(_ context.Context, merchantID string) ([]core.Webhook, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	out := []core.Webhook{}
	for _, webhook := range w.s.webhooks {
		if webhook.MerchantID == merchantID {
			out = append(out, webhook)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (w webhookStore) SetActive(_ context.Context, id string, active bool) (core.Webhook, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	webhook, ok := w.s.webhooks[id]
	if !ok {
		return core.Webhook{}, core.ErrNotFound
	}
	webhook.Active = active
	webhook.UpdatedAt = time.Now().UTC()
	w.s.webhooks[id] = webhook
	return webhook, nil
}

type webhookLogStore struct{ s *Store }

func (w webhookLogStore) Create(_ context.Context, log core.WebhookLog) (core.WebhookLog, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if _, ok := w.s.webhookLogs[log.ID]; ok {
		return core.WebhookLog{}, core.ErrDuplicateKey
	}
	log.Payload = cloneMap(log.Payload)
	w.s.webhookLogs[log.ID] = log
	return cloneLog(log), nil
}

func (w webhookLogStore) Get(_ context.Context, id string) (core.WebhookLog, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	log, ok := w.s.webhookLogs[id]
	if !ok {
		return core.WebhookLog{}, core.ErrNotFound
	}
	return cloneLog(log), nil
}

func (w webhookLogStore) ListByMerchant(_ context.Context, merchantID string, limit int) ([]core.WebhookLog, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	out := []core.WebhookLog{}
	for _, log := range w.s.webhookLogs {
		if log.MerchantID == merchantID {
			out = append(out, cloneLog(log))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (w webhookLogStore) ListDue(_ context.Context, now time.Time, limit int) ([]core.WebhookLog, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	out := []core.WebhookLog{}
	for _, log := range w.s.webhookLogs {
		if due(log, now) {
			out = append(out, cloneLog(log))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextRetryAt.Equal(*out[j].NextRetryAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextRetryAt.Before(*out[j].NextRetryAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (w webhookLogStore) Claim(_ context.Context, id string, now time.Time, leaseUntil time.Time) (core.WebhookLog, bool, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	log, ok := w.s.webhookLogs[id]
	if !ok {
		return core.WebhookLog{}, false, core.ErrNotFound
	}
	if !due(log, now) {
		return cloneLog(log), false, nil
	}
	lease := leaseUntil.UTC()
	log.NextRetryAt = &lease
	log.UpdatedAt = now.UTC()
	w.s.webhookLogs[id] = log
	return cloneLog(log), true, nil
}

func (w webhookLogStore) RecordAttempt(_ context.Context, in core.RecordAttemptInput) (bool, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	log, ok := w.s.webhookLogs[in.LogID]
	if !ok {
		return false, core.ErrNotFound
	}
	if log.Status != core.WebhookLogStatusPending || log.Attempts != in.ExpectedAttempts {
		return false, nil
	}
	attemptAt := in.LastAttemptAt.UTC()
	log.Status = in.Status
	log.Attempts = in.Attempts
	log.ResponseCode = in.ResponseCode
	log.ResponseBody = in.ResponseBody
	log.LastAttemptAt = &attemptAt
	log.NextRetryAt = copyTime(in.NextRetryAt)
	log.UpdatedAt = attemptAt
	w.s.webhookLogs[log.ID] = log
	return true, nil
}

func (w webhookLogStore) ResetForRetry(_ context.Context, id string, now time.Time) (core.WebhookLog, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	log, ok := w.s.webhookLogs[id]
	if !ok {
		return core.WebhookLog{}, core.ErrNotFound
	}
	at := now.UTC()
	log.Status = core.WebhookLogStatusPending
	log.Attempts = 0
	log.NextRetryAt = &at
	log.UpdatedAt = at
	w.s.webhookLogs[id] = log
	return cloneLog(log), nil
}

func (w webhookLogStore) CountByStatus(_ context.Context) (map[core.WebhookLogStatus]int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	counts := map[core.WebhookLogStatus]int{}
	for _, log := range w.s.webhookLogs {
		counts[log.Status]++
	}
	return counts, nil
}

type idempotencyStore struct{ s *Store }

func (i idempotencyStore) Find(_ context.Context, merchantID string, key string, now time.Time) (core.IdempotencyRecord, bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	record, ok := i.s.idempotency[idempotencyKey(merchantID, key)]
	if !ok || record.Expired(now) {
		return core.IdempotencyRecord{}, false, nil
	}
	return cloneRecord(record), true, nil
}

func (i idempotencyStore) Insert(_ context.Context, record core.IdempotencyRecord) (core.IdempotencyRecord, bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	key := idempotencyKey(record.MerchantID, record.Key)
	if existing, ok := i.s.idempotency[key]; ok && !existing.Expired(record.CreatedAt) {
		return cloneRecord(existing), true, nil
	}
	record.ResponseBody = append([]byte(nil), record.ResponseBody...)
	i.s.idempotency[key] = record
	return cloneRecord(record), false, nil
}

func (i idempotencyStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	var deleted int64
	for key, record := range i.s.idempotency {
		if record.Expired(now) {
			delete(i.s.idempotency, key)
			deleted++
		}
	}
	return deleted, nil
}

func idempotencyKey(merchantID string, key string) string {
	return strings.TrimSpace(merchantID) + "::" + strings.TrimSpace(key)
}

func due(log core.WebhookLog, now time.Time) bool {
	return log.Status == core.WebhookLogStatusPending && log.NextRetryAt != nil && !log.NextRetryAt.After(now)
}

func newer(a, b time.Time, aID, bID string) bool {
	if a.Equal(b) {
		return aID > bID
	}
	return a.After(b)
}

func cloneOrder(order core.Order) core.Order {
	order.Notes = cloneMap(order.Notes)
	return order
}

func cloneRefund(refund core.Refund) core.Refund {
	refund.ProcessedAt = copyTime(refund.ProcessedAt)
	return refund
}

func cloneLog(log core.WebhookLog) core.WebhookLog {
	log.Payload = cloneMap(log.Payload)
	log.LastAttemptAt = copyTime(log.LastAttemptAt)
	log.NextRetryAt = copyTime(log.NextRetryAt)
	return log
}

func cloneRecord(record core.IdempotencyRecord) core.IdempotencyRecord {
	record.ResponseBody = append([]byte(nil), record.ResponseBody...)
	return record
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := value.UTC()
	return &copied
}

var _ core.StoreProvider = (*Store)(nil)
