package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultWorkerMaxRetries = 3
	defaultWorkerIdleDelay  = 500 * time.Millisecond
)

type JobHandler func(ctx context.Context, msg *JobExecutionMessage) error

// QueueWorker is a blocking-pop consumer loop for one queue.
//
// A handler error that is retryable re-enqueues the job with retries+1 until
// MaxRetries is reached; anything else, including exhausted retries, missing
// entities and undecodable payloads, is dead-lettered with the payload it
// arrived with. Cancelling the Run context stops new pops; the job in flight
// runs to completion on a context detached from that cancellation.
type QueueWorker struct {
	Name       string
	Dequeuer   JobDequeuer
	Enqueuer   JobEnqueuer
	Handler    JobHandler
	MaxRetries int
	Hook       JobWorkerHook
	Logger     Logger
	IdleDelay  time.Duration
	Now        func() time.Time
}

func NewQueueWorker(
	name string,
	dequeuer JobDequeuer,
	enqueuer JobEnqueuer,
	handler JobHandler,
	maxRetries int,
) (*QueueWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("core: worker dequeuer is required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("core: worker enqueuer is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("core: worker handler is required")
	}
	if maxRetries < 0 {
		maxRetries = defaultWorkerMaxRetries
	}
	return &QueueWorker{
		Name:       strings.TrimSpace(name),
		Dequeuer:   dequeuer,
		Enqueuer:   enqueuer,
		Handler:    handler,
		MaxRetries: maxRetries,
		IdleDelay:  defaultWorkerIdleDelay,
		Now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run consumes jobs until ctx is cancelled.
func (w *QueueWorker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("core: worker is not configured")
	}
	w.logInfo(ctx, "worker started", "worker", w.Name)
	defer w.logInfo(context.WithoutCancel(ctx), "worker stopped", "worker", w.Name)

	for {
		if ctx.Err() != nil {
			return nil
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logError(ctx, "worker iteration failed", "worker", w.Name, "error", err)
		}
		if processed {
			continue
		}
		if err := SleepContext(ctx, w.idleDelay(err)); err != nil {
			return nil
		}
	}
}

// ProcessNext pops and handles at most one job. It reports whether a job was
// consumed.
func (w *QueueWorker) ProcessNext(ctx context.Context) (bool, error) {
	delivery, err := w.Dequeuer.Dequeue(ctx)
	if err != nil {
		if errors.Is(err, ErrJobQueueEmpty) {
			return false, nil
		}
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	jobCtx := context.WithoutCancel(ctx)
	msg := delivery.Message()
	attempt := JobRetries(msg) + 1
	startedAt := w.now()
	event := JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt}
	w.hookStart(jobCtx, event)

	handleErr := w.handle(jobCtx, msg)
	event.Duration = w.now().Sub(startedAt)
	if handleErr == nil {
		w.hookSuccess(jobCtx, event)
		return true, delivery.Ack(jobCtx)
	}

	event.Err = handleErr
	if IsRetryable(handleErr) && JobRetries(msg) < w.MaxRetries {
		retry := cloneJobMessage(msg)
		retry.Parameters[ParamRetries] = JobRetries(msg) + 1
		if err := w.Enqueuer.Enqueue(jobCtx, retry); err != nil {
			w.logError(jobCtx, "job retry enqueue failed", "worker", w.Name, "error", err)
			return true, w.deadLetter(jobCtx, delivery, event, "retry enqueue failed: "+err.Error())
		}
		w.hookRetry(jobCtx, event)
		w.logWarn(jobCtx, "job failed, retry scheduled",
			"worker", w.Name, "job_id", msg.JobID, "attempt", attempt, "error", handleErr)
		return true, delivery.Ack(jobCtx)
	}
	return true, w.deadLetter(jobCtx, delivery, event, handleErr.Error())
}

func (w *QueueWorker) handle(ctx context.Context, msg *JobExecutionMessage) (err error) {
	if msg == nil {
		return ValidationError("message", "job message is required")
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("core: job handler panic: %v", recovered)
		}
	}()
	return w.Handler(ctx, msg)
}

func (w *QueueWorker) deadLetter(ctx context.Context, delivery JobDelivery, event JobWorkerEvent, reason string) error {
	w.hookFailure(ctx, event)
	fields := []any{"worker", w.Name, "attempt", event.Attempt, "reason", reason}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID)
	}
	w.logError(ctx, "job dead-lettered", fields...)
	return delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: reason})
}

func (w *QueueWorker) idleDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	if w.IdleDelay > 0 {
		return w.IdleDelay
	}
	return defaultWorkerIdleDelay
}

func (w *QueueWorker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *QueueWorker) hookStart(ctx context.Context, event JobWorkerEvent) {
	if w.Hook != nil {
		w.Hook.OnStart(ctx, event)
	}
}

func (w *QueueWorker) hookSuccess(ctx context.Context, event JobWorkerEvent) {
	if w.Hook != nil {
		w.Hook.OnSuccess(ctx, event)
	}
}

func (w *QueueWorker) hookFailure(ctx context.Context, event JobWorkerEvent) {
	if w.Hook != nil {
		w.Hook.OnFailure(ctx, event)
	}
}

func (w *QueueWorker) hookRetry(ctx context.Context, event JobWorkerEvent) {
	if w.Hook != nil {
		w.Hook.OnRetry(ctx, event)
	}
}

func (w *QueueWorker) logInfo(ctx context.Context, msg string, args ...any) {
	if w.Logger != nil {
		w.Logger.WithContext(ctx).Info(msg, args...)
	}
}

func (w *QueueWorker) logWarn(ctx context.Context, msg string, args ...any) {
	if w.Logger != nil {
		w.Logger.WithContext(ctx).Warn(msg, args...)
	}
}

func (w *QueueWorker) logError(ctx context.Context, msg string, args ...any) {
	if w.Logger != nil {
		w.Logger.WithContext(ctx).Error(msg, args...)
	}
}
