package core

import (
	"context"
	"time"
)

// Reconcile runs one reconciliation sweep on demand.
func (s *Service) Reconcile(ctx context.Context) (stats ReconcileStats, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["scanned"] = stats.Scanned
		fields["reconciled"] = stats.Reconciled
		fields["alerted"] = stats.Alerted
		s.observeOperation(ctx, startedAt, "reconcile", err, fields)
	}()
	stats, err = s.reconciler.Sweep(ctx)
	return stats, err
}

type JobStatusReport struct {
	Queues      []QueueStats
	WebhookLogs map[WebhookLogStatus]int
	TestMode    bool
	CheckedAt   time.Time
}

// JobStatus reports queue depths when an inspector is configured and
// webhook log counts by status.
func (s *Service) JobStatus(ctx context.Context) (JobStatusReport, error) {
	report := JobStatusReport{
		TestMode:  s.config.Processing.TestMode(),
		CheckedAt: s.clock(),
	}
	if s.queueStats != nil {
		queues, err := s.queueStats.Stats(ctx)
		if err != nil {
			return JobStatusReport{}, TransientError(err, "read queue stats")
		}
		report.Queues = queues
	}
	counts, err := s.webhookLogs.CountByStatus(ctx)
	if err != nil {
		return JobStatusReport{}, MapError(err)
	}
	report.WebhookLogs = counts
	return report, nil
}

// PurgeIdempotency drops expired idempotency records.
func (s *Service) PurgeIdempotency(ctx context.Context) (int64, error) {
	return s.cache.PurgeExpired(ctx)
}
