package core

import (
	"context"
	"strings"
	"time"
)

type CardDetails struct {
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
	HolderName  string
}

type CreatePaymentRequest struct {
	MerchantID     string
	OrderID        string
	Method         PaymentMethod
	VPA            string
	Card           *CardDetails
	IdempotencyKey string
}

// CreatePayment validates the method details, inserts a pending payment for
// the order and pushes the processing job. The payment row is owned by the
// payment worker from here on.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (payment Payment, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"merchant_id": req.MerchantID,
		"order_id":    req.OrderID,
		"method":      string(req.Method),
	}
	defer func() {
		if payment.ID != "" {
			fields["payment_id"] = payment.ID
		}
		s.observeOperation(ctx, startedAt, "create_payment", err, fields)
	}()

	if strings.TrimSpace(req.OrderID) == "" {
		err = ValidationError("order_id", "order_id is required")
		return Payment{}, err
	}
	now := s.clock()
	payment = Payment{
		ID:             s.generateID(IDPrefixPayment),
		OrderID:        strings.TrimSpace(req.OrderID),
		MerchantID:     strings.TrimSpace(req.MerchantID),
		Method:         PaymentMethod(strings.ToLower(strings.TrimSpace(string(req.Method)))),
		Status:         PaymentStatusPending,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err = applyMethodDetails(&payment, req, now); err != nil {
		return Payment{}, err
	}

	order, err := s.GetOrder(ctx, payment.MerchantID, payment.OrderID)
	if err != nil {
		return Payment{}, err
	}
	if order.Status == OrderStatusPaid {
		err = ValidationError("order_id", "Order already paid")
		return Payment{}, err
	}
	payment.Amount = order.Amount
	payment.Currency = order.Currency

	payment, err = s.payments.Create(ctx, payment)
	if err != nil {
		err = MapError(err)
		return Payment{}, err
	}
	if err = s.EnqueuePayment(ctx, payment.ID); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func applyMethodDetails(payment *Payment, req CreatePaymentRequest, now time.Time) error {
	switch payment.Method {
	case PaymentMethodUPI:
		vpa := strings.TrimSpace(req.VPA)
		if vpa == "" {
			return ValidationError("vpa", "vpa is required for UPI payments")
		}
		if !ValidVPA(vpa) {
			return ValidationError("vpa", "Invalid VPA format")
		}
		payment.VPA = vpa
	case PaymentMethodCard:
		if req.Card == nil {
			return ValidationError("card", "card details are required for card payments")
		}
		if !LuhnValid(req.Card.Number) {
			return ValidationError("card.number", "Invalid card number")
		}
		if !ExpiryValid(req.Card.ExpiryMonth, req.Card.ExpiryYear, now) {
			return ValidationError("card.expiry", "Card expired or invalid expiry")
		}
		if cvv := strings.TrimSpace(req.Card.CVV); cvv != "" && !validCVV(cvv) {
			return ValidationError("card.cvv", "Invalid CVV")
		}
		payment.CardNetwork = DetectCardNetwork(req.Card.Number)
		payment.CardLast4 = CardLast4(req.Card.Number)
	default:
		return ValidationError("method", "Unsupported payment method")
	}
	return nil
}

func validCVV(cvv string) bool {
	if len(cvv) < 3 || len(cvv) > 4 {
		return false
	}
	for _, r := range cvv {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) EnqueuePayment(ctx context.Context, paymentID string) error {
	if err := s.jobs.Enqueue(ctx, PaymentJob{PaymentID: strings.TrimSpace(paymentID)}.Message()); err != nil {
		return TransientError(err, "enqueue payment job")
	}
	return nil
}

func (s *Service) GetPayment(ctx context.Context, merchantID string, paymentID string) (Payment, error) {
	payment, err := s.payments.Get(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return Payment{}, notFoundOr(err, "Payment", paymentID)
	}
	if payment.MerchantID != strings.TrimSpace(merchantID) {
		return Payment{}, NotFoundError("Payment", paymentID)
	}
	return payment, nil
}

func (s *Service) ListPayments(ctx context.Context, merchantID string) ([]Payment, error) {
	payments, err := s.payments.ListByMerchant(ctx, strings.TrimSpace(merchantID))
	if err != nil {
		return nil, MapError(err)
	}
	return payments, nil
}

// CapturePayment marks a successful payment captured. Capturing an already
// captured payment returns it unchanged and emits nothing.
func (s *Service) CapturePayment(ctx context.Context, merchantID string, paymentID string) (payment Payment, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"merchant_id": merchantID, "payment_id": paymentID}
	defer func() {
		s.observeOperation(ctx, startedAt, "capture_payment", err, fields)
	}()

	payment, err = s.GetPayment(ctx, merchantID, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if payment.Status != PaymentStatusSuccess {
		err = NotCapturableError(payment.ID, payment.Status)
		return Payment{}, err
	}
	if payment.Captured {
		fields["already_captured"] = true
		return payment, nil
	}

	captured, transitioned, err := s.payments.MarkCaptured(ctx, payment.ID, s.clock())
	if err != nil {
		err = MapError(err)
		return Payment{}, err
	}
	fields["already_captured"] = !transitioned
	if !transitioned {
		return captured, nil
	}
	job := PaymentEventJob(EventPaymentCaptured, captured, s.clock())
	if err = s.jobs.Enqueue(ctx, job.Message()); err != nil {
		err = TransientError(err, "enqueue capture event")
		return Payment{}, err
	}
	return captured, nil
}

// ProcessPayment runs the payment state machine inline.
func (s *Service) ProcessPayment(ctx context.Context, paymentID string) (outcome PaymentOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"payment_id": paymentID}
	defer func() {
		fields["payment_status"] = string(outcome.Payment.Status)
		s.observeOperation(ctx, startedAt, "process_payment", err, fields)
	}()
	outcome, err = s.paymentProc.Process(ctx, paymentID)
	return outcome, err
}

func (s *Service) ListPaymentLogs(ctx context.Context, merchantID string, paymentID string) ([]PaymentLog, error) {
	payment, err := s.GetPayment(ctx, merchantID, paymentID)
	if err != nil {
		return nil, err
	}
	logs, err := s.payments.ListLogs(ctx, payment.ID)
	if err != nil {
		return nil, MapError(err)
	}
	return logs, nil
}
