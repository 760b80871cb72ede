package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-payments/core"
)

const (
	defaultScheduleInterval = 5 * time.Second
	defaultScheduleBatch    = 10
)

type SchedulerStats struct {
	Due       int
	Attempted int
	Skipped   int
	Succeeded int
	Retrying  int
	Failed    int
}

// Scheduler polls for pending logs whose retry time has come and delivers
// them in bounded batches.
type Scheduler struct {
	Deliverer *Deliverer
	Interval  time.Duration
	BatchSize int
	// Now drives both the due query and the claim. Nil falls back to the
	// deliverer clock.
	Now    func() time.Time
	Logger core.Logger
}

func NewScheduler(deliverer *Deliverer, cfg core.WebhookConfig) (*Scheduler, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("webhooks: scheduler requires a deliverer")
	}
	s := &Scheduler{
		Deliverer: deliverer,
		Interval:  cfg.ScheduleInterval(),
		BatchSize: cfg.BatchSize,
	}
	if s.Interval <= 0 {
		s.Interval = defaultScheduleInterval
	}
	if s.BatchSize <= 0 {
		s.BatchSize = defaultScheduleBatch
	}
	return s, nil
}

// RunOnce delivers at most BatchSize due logs.
func (s *Scheduler) RunOnce(ctx context.Context) (SchedulerStats, error) {
	stats := SchedulerStats{}
	if s == nil || s.Deliverer == nil || s.Deliverer.Logs == nil {
		return stats, fmt.Errorf("webhooks: scheduler is not configured")
	}
	due, err := s.Deliverer.Logs.ListDue(ctx, s.now(), s.batchSize())
	if err != nil {
		return stats, core.TransientError(err, "list due webhook logs")
	}
	stats.Due = len(due)

	var errs []error
	for _, log := range due {
		if ctx.Err() != nil {
			break
		}
		result, deliverErr := s.Deliverer.deliver(ctx, log.ID, s.now)
		if deliverErr != nil {
			errs = append(errs, fmt.Errorf("webhooks: deliver %s: %w", log.ID, deliverErr))
			continue
		}
		if result.Skipped || result.Stale {
			stats.Skipped++
			continue
		}
		stats.Attempted++
		switch result.Log.Status {
		case core.WebhookLogStatusSuccess:
			stats.Succeeded++
		case core.WebhookLogStatusPending:
			stats.Retrying++
		default:
			stats.Failed++
		}
	}
	return stats, errors.Join(errs...)
}

// Run polls every Interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("webhooks: scheduler is not configured")
	}
	s.logInfo(ctx, "webhook retry scheduler started", "interval", s.interval().String())
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logError(ctx, "webhook scheduler pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logInfo(context.WithoutCancel(ctx), "webhook retry scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return defaultScheduleInterval
}

func (s *Scheduler) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return defaultScheduleBatch
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return s.Deliverer.now()
}

func (s *Scheduler) logInfo(ctx context.Context, msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.WithContext(ctx).Info(msg, args...)
	}
}

func (s *Scheduler) logError(ctx context.Context, msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.WithContext(ctx).Error(msg, args...)
	}
}
