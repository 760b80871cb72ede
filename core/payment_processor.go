package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PaymentOutcome is the business result of processing a payment. A failed
// payment is a successful execution with a negative outcome.
type PaymentOutcome struct {
	Payment        Payment
	Order          Order
	Succeeded      bool
	AlreadySettled bool
}

// PaymentProcessor drives a payment from pending through processing to a
// terminal status. It is the only writer of payment status once a payment
// job has been enqueued.
type PaymentProcessor struct {
	Payments PaymentStore
	Orders   OrderStore
	Events   JobEnqueuer
	Outcomes OutcomeSimulator
	Sleep    Sleeper
	Now      func() time.Time
}

func NewPaymentProcessor(
	payments PaymentStore,
	orders OrderStore,
	events JobEnqueuer,
	outcomes OutcomeSimulator,
) (*PaymentProcessor, error) {
	if payments == nil {
		return nil, fmt.Errorf("core: payment store is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("core: order store is required")
	}
	if events == nil {
		return nil, fmt.Errorf("core: event enqueuer is required")
	}
	if outcomes == nil {
		return nil, fmt.Errorf("core: outcome simulator is required")
	}
	return &PaymentProcessor{
		Payments: payments,
		Orders:   orders,
		Events:   events,
		Outcomes: outcomes,
		Sleep:    SleepContext,
		Now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Process settles one payment. Missing payments or orders are reported as
// not found so the job is dead-lettered instead of retried. A payment that is
// already terminal is returned unchanged.
func (p *PaymentProcessor) Process(ctx context.Context, paymentID string) (PaymentOutcome, error) {
	if p == nil || p.Payments == nil || p.Orders == nil {
		return PaymentOutcome{}, fmt.Errorf("core: payment processor is not configured")
	}
	paymentID = strings.TrimSpace(paymentID)
	payment, err := p.Payments.Get(ctx, paymentID)
	if err != nil {
		return PaymentOutcome{}, lookupError(err, "Payment", paymentID)
	}
	order, err := p.Orders.Get(ctx, payment.OrderID)
	if err != nil {
		return PaymentOutcome{}, lookupError(err, "Order", payment.OrderID)
	}
	if payment.Status.Terminal() {
		return PaymentOutcome{
			Payment:        payment,
			Order:          order,
			Succeeded:      payment.Status == PaymentStatusSuccess,
			AlreadySettled: true,
		}, nil
	}

	payment, err = p.Payments.MarkProcessing(ctx, payment.ID, p.now())
	if err != nil {
		return PaymentOutcome{}, TransientError(err, "mark payment processing")
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	if err := sleep(ctx, p.Outcomes.Delay()); err != nil {
		return PaymentOutcome{}, TransientError(err, "payment processing interrupted")
	}

	settle := SettlePaymentInput{
		PaymentID:   payment.ID,
		Status:      PaymentStatusSuccess,
		OrderStatus: OrderStatusPaid,
		At:          p.now(),
	}
	succeeded := p.Outcomes.PaymentSucceeds(payment.Method)
	if !succeeded {
		settle.Status = PaymentStatusFailed
		settle.OrderStatus = OrderStatusFailed
		settle.ErrorCode = PaymentErrorFailed
		settle.ErrorDescription = paymentFailedDescription
	}
	settled, applied, err := p.Payments.Settle(ctx, settle)
	if err != nil {
		return PaymentOutcome{}, TransientError(err, "settle payment")
	}
	if !applied {
		// reconciliation closed the payment while it was in flight
		return PaymentOutcome{
			Payment:        settled,
			Order:          order,
			Succeeded:      settled.Status == PaymentStatusSuccess,
			AlreadySettled: true,
		}, nil
	}
	order.Status = settle.OrderStatus
	order.UpdatedAt = settle.At

	if err := p.emit(ctx, settled); err != nil {
		return PaymentOutcome{}, err
	}
	return PaymentOutcome{Payment: settled, Order: order, Succeeded: succeeded}, nil
}

// HandleJob consumes a payment job. A retried job whose payment already
// settled re-emits the payment event so a lost enqueue is recovered.
func (p *PaymentProcessor) HandleJob(ctx context.Context, msg *JobExecutionMessage) error {
	job, err := DecodePaymentJob(msg)
	if err != nil {
		return err
	}
	outcome, err := p.Process(ctx, job.PaymentID)
	if err != nil {
		return err
	}
	if outcome.AlreadySettled && JobRetries(msg) > 0 {
		return p.emit(ctx, outcome.Payment)
	}
	return nil
}

func (p *PaymentProcessor) emit(ctx context.Context, payment Payment) error {
	job := PaymentEventJob(PaymentEventName(payment.Status), payment, p.now())
	if err := p.Events.Enqueue(ctx, job.Message()); err != nil {
		return TransientError(err, "enqueue payment event")
	}
	return nil
}

func (p *PaymentProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func lookupError(err error, entity string, id string) error {
	if IsNotFound(err) {
		return NotFoundError(entity, id)
	}
	return TransientError(err, "load "+strings.ToLower(entity))
}
