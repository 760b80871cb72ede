package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

type CreateRefundRequest struct {
	MerchantID string
	PaymentID  string
	Amount     int64
	Reason     string
}

// CreateRefund inserts a pending refund and pushes its job. Creation for one
// payment is serialised so the non-failed total never exceeds the payment
// amount; the store repeats the check inside its insert transaction.
func (s *Service) CreateRefund(ctx context.Context, req CreateRefundRequest) (refund Refund, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"merchant_id": req.MerchantID,
		"payment_id":  req.PaymentID,
		"amount":      req.Amount,
	}
	defer func() {
		if refund.ID != "" {
			fields["refund_id"] = refund.ID
		}
		s.observeOperation(ctx, startedAt, "create_refund", err, fields)
	}()

	if req.Amount <= 0 {
		err = ValidationError("amount", "amount must be greater than 0")
		return Refund{}, err
	}
	payment, err := s.GetPayment(ctx, req.MerchantID, req.PaymentID)
	if err != nil {
		return Refund{}, err
	}

	unlock := s.refundLocks.Lock(payment.ID)
	defer unlock()

	now := s.clock()
	refund = Refund{
		ID:         s.generateID(IDPrefixRefund),
		PaymentID:  payment.ID,
		MerchantID: payment.MerchantID,
		Amount:     req.Amount,
		Status:     RefundStatusPending,
		Reason:     strings.TrimSpace(req.Reason),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	refund, err = s.refunds.CreateWithinLimit(ctx, refund, payment.Amount)
	if err != nil {
		if errors.Is(err, ErrRefundLimitExceeded) {
			err = RefundExceedsAmountError(payment.ID)
			return Refund{}, err
		}
		err = MapError(err)
		return Refund{}, err
	}
	if err = s.jobs.Enqueue(ctx, RefundJob{RefundID: refund.ID}.Message()); err != nil {
		err = TransientError(err, "enqueue refund job")
		return Refund{}, err
	}
	return refund, nil
}

func (s *Service) GetRefund(ctx context.Context, merchantID string, refundID string) (Refund, error) {
	refund, err := s.refunds.Get(ctx, strings.TrimSpace(refundID))
	if err != nil {
		return Refund{}, notFoundOr(err, "Refund", refundID)
	}
	if refund.MerchantID != strings.TrimSpace(merchantID) {
		return Refund{}, NotFoundError("Refund", refundID)
	}
	return refund, nil
}

func (s *Service) ListRefunds(ctx context.Context, merchantID string, paymentID string) ([]Refund, error) {
	payment, err := s.GetPayment(ctx, merchantID, paymentID)
	if err != nil {
		return nil, err
	}
	refunds, err := s.refunds.ListByPayment(ctx, payment.ID)
	if err != nil {
		return nil, MapError(err)
	}
	return refunds, nil
}

// ProcessRefund runs the refund state machine inline.
func (s *Service) ProcessRefund(ctx context.Context, refundID string) (outcome RefundOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"refund_id": refundID}
	defer func() {
		fields["refund_status"] = string(outcome.Refund.Status)
		s.observeOperation(ctx, startedAt, "process_refund", err, fields)
	}()
	outcome, err = s.refundProc.Process(ctx, refundID)
	return outcome, err
}
