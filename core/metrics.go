package core

import (
	"context"
	"strings"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// metricsWorkerHook turns worker lifecycle events into counters and
// durations.
type metricsWorkerHook struct {
	recorder MetricsRecorder
	worker   string
}

func (h metricsWorkerHook) OnStart(ctx context.Context, event JobWorkerEvent) {
	h.count(ctx, "started", event)
}

func (h metricsWorkerHook) OnSuccess(ctx context.Context, event JobWorkerEvent) {
	h.count(ctx, "succeeded", event)
	h.observe(ctx, "succeeded", event)
}

func (h metricsWorkerHook) OnFailure(ctx context.Context, event JobWorkerEvent) {
	h.count(ctx, "dead_lettered", event)
	h.observe(ctx, "dead_lettered", event)
}

func (h metricsWorkerHook) OnRetry(ctx context.Context, event JobWorkerEvent) {
	h.count(ctx, "retried", event)
}

func (h metricsWorkerHook) count(ctx context.Context, outcome string, event JobWorkerEvent) {
	if h.recorder == nil {
		return
	}
	h.recorder.IncCounter(ctx, "payments.jobs."+outcome+".total", 1, h.tags(event))
}

func (h metricsWorkerHook) observe(ctx context.Context, outcome string, event JobWorkerEvent) {
	if h.recorder == nil {
		return
	}
	h.recorder.ObserveHistogram(ctx, "payments.jobs."+outcome+".duration_ms",
		float64(event.Duration.Milliseconds()), h.tags(event))
}

func (h metricsWorkerHook) tags(event JobWorkerEvent) map[string]string {
	tags := map[string]string{"worker": strings.TrimSpace(h.worker)}
	if event.Message != nil {
		tags["job_id"] = event.Message.JobID
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ JobWorkerHook   = metricsWorkerHook{}
)
