package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type RefundOutcome struct {
	Refund         Refund
	Succeeded      bool
	AlreadySettled bool
}

// RefundProcessor moves a refund from pending to processed or failed.
type RefundProcessor struct {
	Refunds  RefundStore
	Payments PaymentStore
	Orders   OrderStore
	Events   JobEnqueuer
	Outcomes OutcomeSimulator
	Sleep    Sleeper
	Now      func() time.Time
}

func NewRefundProcessor(
	refunds RefundStore,
	payments PaymentStore,
	orders OrderStore,
	events JobEnqueuer,
	outcomes OutcomeSimulator,
) (*RefundProcessor, error) {
	if refunds == nil {
		return nil, fmt.Errorf("core: refund store is required")
	}
	if payments == nil || orders == nil {
		return nil, fmt.Errorf("core: payment and order stores are required")
	}
	if events == nil {
		return nil, fmt.Errorf("core: event enqueuer is required")
	}
	if outcomes == nil {
		return nil, fmt.Errorf("core: outcome simulator is required")
	}
	return &RefundProcessor{
		Refunds:  refunds,
		Payments: payments,
		Orders:   orders,
		Events:   events,
		Outcomes: outcomes,
		Sleep:    SleepContext,
		Now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Process loads the refund, payment and order chain, simulates the refund
// and records the result.
func (p *RefundProcessor) Process(ctx context.Context, refundID string) (RefundOutcome, error) {
	if p == nil || p.Refunds == nil {
		return RefundOutcome{}, fmt.Errorf("core: refund processor is not configured")
	}
	refundID = strings.TrimSpace(refundID)
	refund, err := p.Refunds.Get(ctx, refundID)
	if err != nil {
		return RefundOutcome{}, lookupError(err, "Refund", refundID)
	}
	payment, err := p.Payments.Get(ctx, refund.PaymentID)
	if err != nil {
		return RefundOutcome{}, lookupError(err, "Payment", refund.PaymentID)
	}
	if _, err := p.Orders.Get(ctx, payment.OrderID); err != nil {
		return RefundOutcome{}, lookupError(err, "Order", payment.OrderID)
	}
	if refund.Status != RefundStatusPending {
		return RefundOutcome{
			Refund:         refund,
			Succeeded:      refund.Status == RefundStatusProcessed,
			AlreadySettled: true,
		}, nil
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	if err := sleep(ctx, p.Outcomes.Delay()); err != nil {
		return RefundOutcome{}, TransientError(err, "refund processing interrupted")
	}

	complete := CompleteRefundInput{
		RefundID: refund.ID,
		Status:   RefundStatusProcessed,
		At:       p.now(),
	}
	succeeded := p.Outcomes.RefundSucceeds()
	if !succeeded {
		complete.Status = RefundStatusFailed
		complete.ErrorCode = RefundErrorFailed
		complete.ErrorDescription = refundFailedDescription
	}
	completed, err := p.Refunds.Complete(ctx, complete)
	if err != nil {
		return RefundOutcome{}, TransientError(err, "complete refund")
	}
	if err := p.emit(ctx, completed); err != nil {
		return RefundOutcome{}, err
	}
	return RefundOutcome{Refund: completed, Succeeded: succeeded}, nil
}

func (p *RefundProcessor) HandleJob(ctx context.Context, msg *JobExecutionMessage) error {
	job, err := DecodeRefundJob(msg)
	if err != nil {
		return err
	}
	outcome, err := p.Process(ctx, job.RefundID)
	if err != nil {
		return err
	}
	if outcome.AlreadySettled && JobRetries(msg) > 0 {
		return p.emit(ctx, outcome.Refund)
	}
	return nil
}

func (p *RefundProcessor) emit(ctx context.Context, refund Refund) error {
	job := RefundEventJob(RefundEventName(refund.Status), refund, p.now())
	if err := p.Events.Enqueue(ctx, job.Message()); err != nil {
		return TransientError(err, "enqueue refund event")
	}
	return nil
}

func (p *RefundProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
