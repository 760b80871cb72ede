// Package redisqueue is the redis list backend for gateway jobs. Producers
// RPUSH the JSON parameters; consumers BLPOP with a timeout.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-payments/core"
)

const defaultPopTimeout = 5 * time.Second

type Queue struct {
	client *redis.Client
	cfg    core.QueueConfig
	logger core.Logger
}

// Open parses cfg.RedisURL, connects and pings the server.
func Open(ctx context.Context, cfg core.QueueConfig, logger core.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(cfg.RedisURL))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "redisqueue: invalid redis url").
			WithTextCode(core.ErrorCodeBadRequest)
	}
	q := New(redis.NewClient(opts), cfg, logger)
	if err := q.Ping(ctx); err != nil {
		_ = q.client.Close()
		return nil, err
	}
	return q, nil
}

func New(client *redis.Client, cfg core.QueueConfig, logger core.Logger) *Queue {
	return &Queue{client: client, cfg: cfg, logger: logger}
}

func (q *Queue) Client() *redis.Client { return q.client }

func (q *Queue) Ping(ctx context.Context) error {
	if _, err := q.client.Ping(ctx).Result(); err != nil {
		return core.TransientError(err, "redisqueue: ping failed")
	}
	return nil
}

func (q *Queue) Close() error { return q.client.Close() }

func (q *Queue) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if msg == nil {
		return core.ValidationError("message", "job message is required")
	}
	queue, ok := q.cfg.Routes()[msg.JobID]
	if !ok || strings.TrimSpace(queue) == "" {
		return core.ValidationError("job_id", fmt.Sprintf("no queue routed for job %q", msg.JobID))
	}
	raw, err := core.EncodeJobPayload(msg)
	if err != nil {
		return err
	}
	return q.push(ctx, queue, raw)
}

func (q *Queue) push(ctx context.Context, queue string, raw []byte) error {
	if err := q.client.RPush(ctx, queue, raw).Err(); err != nil {
		return core.TransientError(err, "redisqueue: push failed")
	}
	return nil
}

func (q *Queue) Stats(ctx context.Context) ([]core.QueueStats, error) {
	out := []core.QueueStats{}
	for _, jobID := range []string{core.JobIDPaymentProcess, core.JobIDRefundProcess, core.JobIDWebhookDeliver, core.JobIDAlert} {
		queue := q.cfg.Routes()[jobID]
		depth, err := q.client.LLen(ctx, queue).Result()
		if err != nil {
			return nil, core.TransientError(err, "redisqueue: llen failed")
		}
		dead, err := q.client.LLen(ctx, q.cfg.DeadLetterQueue(queue)).Result()
		if err != nil {
			return nil, core.TransientError(err, "redisqueue: llen failed")
		}
		out = append(out, core.QueueStats{Queue: queue, Depth: depth, DeadLetter: dead})
	}
	return out, nil
}

func (q *Queue) Dequeuer(queue string) (*Dequeuer, error) {
	jobID, ok := q.cfg.JobIDForQueue(queue)
	if !ok {
		return nil, fmt.Errorf("redisqueue: queue %q has no job route", queue)
	}
	timeout := q.cfg.PopTimeout()
	if timeout <= 0 {
		timeout = defaultPopTimeout
	}
	return &Dequeuer{queue: q, name: queue, jobID: jobID, timeout: timeout}, nil
}

type Dequeuer struct {
	queue   *Queue
	name    string
	jobID   string
	timeout time.Duration
}

func (d *Dequeuer) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	result, err := d.queue.client.BLPop(ctx, d.timeout, d.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrJobQueueEmpty
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.TransientError(err, "redisqueue: pop failed")
	}
	if len(result) != 2 {
		return nil, core.ErrJobQueueEmpty
	}
	raw := []byte(result[1])
	msg, err := core.DecodeJobPayload(d.jobID, raw)
	if err != nil {
		if d.queue.logger != nil {
			d.queue.logger.WithContext(ctx).Error("undecodable job payload dead-lettered",
				"queue", d.name, "error", err)
		}
		return nil, d.queue.push(ctx, d.queue.cfg.DeadLetterQueue(d.name), raw)
	}
	return &delivery{dequeuer: d, raw: raw, msg: msg}, nil
}

type delivery struct {
	dequeuer *Dequeuer
	raw      []byte
	msg      *core.JobExecutionMessage
}

func (d *delivery) Message() *core.JobExecutionMessage { return d.msg }

// Ack is a no-op: BLPOP already removed the entry.
func (d *delivery) Ack(context.Context) error { return nil }

func (d *delivery) Nack(ctx context.Context, opts core.JobNackOptions) error {
	q := d.dequeuer.queue
	switch {
	case opts.DeadLetter:
		return q.push(ctx, q.cfg.DeadLetterQueue(d.dequeuer.name), d.raw)
	case opts.Requeue:
		if opts.Delay > 0 {
			if err := core.SleepContext(ctx, opts.Delay); err != nil {
				return err
			}
		}
		return q.push(ctx, d.dequeuer.name, d.raw)
	default:
		return nil
	}
}

var (
	_ core.JobEnqueuer    = (*Queue)(nil)
	_ core.QueueInspector = (*Queue)(nil)
	_ core.JobDequeuer    = (*Dequeuer)(nil)
)
