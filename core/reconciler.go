package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const ReconciliationWorkerID = "reconciliation_worker"

const (
	defaultReconcileInterval  = 60 * time.Second
	defaultReconcileThreshold = 300 * time.Second
	defaultReconcileBatch     = 100
)

type ReconcileStats struct {
	Scanned    int
	Reconciled int
	Skipped    int
	Alerted    int
}

// Reconciler force-fails payments left in processing past the threshold.
// It is the only path that overrides a worker owned payment, so every write
// is conditional on the row still being stuck.
type Reconciler struct {
	Payments  PaymentStore
	Alerts    JobEnqueuer
	Threshold time.Duration
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
	NewID     func() string
	Logger    Logger
}

func NewReconciler(payments PaymentStore, alerts JobEnqueuer, config ReconciliationConfig) (*Reconciler, error) {
	if payments == nil {
		return nil, fmt.Errorf("core: payment store is required")
	}
	if alerts == nil {
		return nil, fmt.Errorf("core: alert enqueuer is required")
	}
	r := &Reconciler{
		Payments:  payments,
		Alerts:    alerts,
		Threshold: config.Threshold(),
		Interval:  config.Interval(),
		BatchSize: config.BatchSize,
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     uuid.NewString,
	}
	if r.Threshold <= 0 {
		r.Threshold = defaultReconcileThreshold
	}
	if r.Interval <= 0 {
		r.Interval = defaultReconcileInterval
	}
	if r.BatchSize <= 0 {
		r.BatchSize = defaultReconcileBatch
	}
	return r, nil
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) (ReconcileStats, error) {
	stats := ReconcileStats{}
	if r == nil || r.Payments == nil || r.Alerts == nil {
		return stats, fmt.Errorf("core: reconciler is not configured")
	}
	now := r.now()
	threshold := now.Add(-r.Threshold)
	stuck, err := r.Payments.ListStuck(ctx, threshold, r.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(stuck)

	var errs []error
	for _, payment := range stuck {
		transitioned, failErr := r.Payments.FailStuck(ctx, FailStuckInput{
			PaymentID:        payment.ID,
			Threshold:        threshold,
			ErrorCode:        PaymentErrorStuckProcessing,
			ErrorDescription: stuckPaymentDescription,
			WorkerID:         ReconciliationWorkerID,
			LogID:            r.newID(),
			At:               now,
		})
		if failErr != nil {
			errs = append(errs, fmt.Errorf("core: reconcile payment %s: %w", payment.ID, failErr))
			continue
		}
		if !transitioned {
			stats.Skipped++
			continue
		}
		stats.Reconciled++
		r.log(ctx, "reconciled stuck payment", "payment_id", payment.ID, "threshold", threshold)

		alert := NewAlertJob(payment.ID, AlertIssueStuckProcessing, now)
		if alertErr := r.Alerts.Enqueue(ctx, alert.Message()); alertErr != nil {
			errs = append(errs, fmt.Errorf("core: enqueue stuck payment alert %s: %w", payment.ID, alertErr))
			continue
		}
		stats.Alerted++
	}
	return stats, errors.Join(errs...)
}

// Run sweeps every Interval until ctx is cancelled. Sweep errors are logged
// and do not stop the loop.
func (r *Reconciler) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("core: reconciler is not configured")
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.logError(ctx, "reconciliation sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Reconciler) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func (r *Reconciler) log(ctx context.Context, msg string, args ...any) {
	if r.Logger == nil {
		return
	}
	r.Logger.WithContext(ctx).Warn(msg, args...)
}

func (r *Reconciler) logError(ctx context.Context, msg string, args ...any) {
	if r.Logger == nil {
		return
	}
	r.Logger.WithContext(ctx).Error(msg, args...)
}
