package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// metricTagKeys are the log fields promoted to metric tags.
var metricTagKeys = []string{"merchant_id", "method"}

// observeOperation logs one service operation and records its count and
// latency. Fields pass through RedactFields before reaching the logger.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	name := operationName(operation)
	elapsed := time.Since(startedAt)
	status := "success"
	if err != nil {
		status = "failure"
	}

	entry := RedactFields(fields)
	entry["event_type"] = name
	entry["status"] = status
	entry["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		entry["error"] = err.Error()
	}

	tags := map[string]string{"operation": name, "status": status}
	for _, key := range metricTagKeys {
		if value, ok := entry[key]; ok && value != nil {
			if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
				tags[key] = text
			}
		}
	}
	if s.metricsRecorder != nil {
		s.metricsRecorder.IncCounter(ctx, "payments."+name+".total", 1, cloneTags(tags))
		s.metricsRecorder.ObserveHistogram(ctx, "payments."+name+".duration_ms",
			float64(elapsed.Milliseconds()), cloneTags(tags))
	}

	if err != nil {
		s.emit(ctx, true, name+" failed", entry)
		return
	}
	s.emit(ctx, false, name+" succeeded", entry)
}

func (s *Service) emit(ctx context.Context, failed bool, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if withFields, ok := logger.(FieldsLogger); ok {
		logger = withFields.WithFields(maps.Clone(fields))
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	if failed {
		logger.Error(message, args...)
		return
	}
	logger.Info(message, args...)
}

func operationName(operation string) string {
	name := strings.ToLower(strings.TrimSpace(operation))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	if name == "" {
		return "unknown"
	}
	return name
}
