// Package memqueue is an in-process job broker with the same wire behaviour
// as the redis backend: payloads are stored as JSON bytes and dead letters
// keep the payload unchanged.
package memqueue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-payments/core"
)

type Broker struct {
	cfg core.QueueConfig

	mu     sync.Mutex
	lists  map[string][][]byte
	wake   chan struct{}
	closed bool
}

func New(cfg core.QueueConfig) *Broker {
	return &Broker{
		cfg:   cfg,
		lists: map[string][][]byte{},
		wake:  make(chan struct{}),
	}
}

// Enqueue routes msg by job id and appends its payload to the tail.
func (b *Broker) Enqueue(_ context.Context, msg *core.JobExecutionMessage) error {
	if msg == nil {
		return core.ValidationError("message", "job message is required")
	}
	queue, ok := b.cfg.Routes()[msg.JobID]
	if !ok || strings.TrimSpace(queue) == "" {
		return core.ValidationError("job_id", fmt.Sprintf("no queue routed for job %q", msg.JobID))
	}
	raw, err := core.EncodeJobPayload(msg)
	if err != nil {
		return err
	}
	return b.PushRaw(queue, raw)
}

// PushRaw appends an already encoded payload to queue.
func (b *Broker) PushRaw(queue string, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("memqueue: broker closed")
	}
	b.lists[queue] = append(b.lists[queue], append([]byte(nil), raw...))
	close(b.wake)
	b.wake = make(chan struct{})
	return nil
}

func (b *Broker) pop(queue string) ([]byte, <-chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.lists[queue]
	if len(items) == 0 {
		return nil, b.wake, false
	}
	head := items[0]
	b.lists[queue] = items[1:]
	return head, nil, true
}

// Len returns the number of payloads waiting on queue.
func (b *Broker) Len(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lists[queue])
}

// Payloads returns a copy of the payloads waiting on queue, head first.
func (b *Broker) Payloads(queue string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, 0, len(b.lists[queue]))
	for _, raw := range b.lists[queue] {
		out = append(out, append([]byte(nil), raw...))
	}
	return out
}

// Messages decodes the payloads waiting on the queue routed for jobID.
func (b *Broker) Messages(jobID string) []*core.JobExecutionMessage {
	queue := b.cfg.Routes()[jobID]
	out := []*core.JobExecutionMessage{}
	for _, raw := range b.Payloads(queue) {
		msg, err := core.DecodeJobPayload(jobID, raw)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func (b *Broker) Stats(_ context.Context) ([]core.QueueStats, error) {
	out := []core.QueueStats{}
	for _, jobID := range []string{core.JobIDPaymentProcess, core.JobIDRefundProcess, core.JobIDWebhookDeliver, core.JobIDAlert} {
		queue := b.cfg.Routes()[jobID]
		out = append(out, core.QueueStats{
			Queue:      queue,
			Depth:      int64(b.Len(queue)),
			DeadLetter: int64(b.Len(b.cfg.DeadLetterQueue(queue))),
		})
	}
	return out, nil
}

// Close wakes blocked consumers and rejects further pushes.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.wake)
}

// Dequeuer returns a blocking consumer for one queue.
func (b *Broker) Dequeuer(queue string) (*Dequeuer, error) {
	jobID, ok := b.cfg.JobIDForQueue(queue)
	if !ok {
		return nil, fmt.Errorf("memqueue: queue %q has no job route", queue)
	}
	return &Dequeuer{broker: b, queue: queue, jobID: jobID, timeout: b.cfg.PopTimeout()}, nil
}

type Dequeuer struct {
	broker  *Broker
	queue   string
	jobID   string
	timeout time.Duration
}

// Dequeue blocks until a payload arrives, the pop timeout elapses
// (core.ErrJobQueueEmpty) or ctx is done. Undecodable payloads are moved to
// the dead-letter queue and reported as nil, nil.
func (d *Dequeuer) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	var timer <-chan time.Time
	if d.timeout > 0 {
		t := time.NewTimer(d.timeout)
		defer t.Stop()
		timer = t.C
	}
	for {
		raw, wake, ok := d.broker.pop(d.queue)
		if ok {
			msg, err := core.DecodeJobPayload(d.jobID, raw)
			if err != nil {
				return nil, d.broker.PushRaw(d.broker.cfg.DeadLetterQueue(d.queue), raw)
			}
			return &delivery{dequeuer: d, raw: raw, msg: msg}, nil
		}
		if d.broker.isClosed() {
			return nil, core.ErrJobQueueEmpty
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
			return nil, core.ErrJobQueueEmpty
		case <-wake:
		}
	}
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type delivery struct {
	dequeuer *Dequeuer
	raw      []byte
	msg      *core.JobExecutionMessage
}

func (d *delivery) Message() *core.JobExecutionMessage { return d.msg }

func (d *delivery) Ack(context.Context) error { return nil }

func (d *delivery) Nack(_ context.Context, opts core.JobNackOptions) error {
	broker := d.dequeuer.broker
	switch {
	case opts.DeadLetter:
		return broker.PushRaw(broker.cfg.DeadLetterQueue(d.dequeuer.queue), d.raw)
	case opts.Requeue && opts.Delay > 0:
		raw := d.raw
		time.AfterFunc(opts.Delay, func() { _ = broker.PushRaw(d.dequeuer.queue, raw) })
		return nil
	case opts.Requeue:
		return broker.PushRaw(d.dequeuer.queue, d.raw)
	default:
		return nil
	}
}

var (
	_ core.JobEnqueuer    = (*Broker)(nil)
	_ core.QueueInspector = (*Broker)(nil)
	_ core.JobDequeuer    = (*Dequeuer)(nil)
)
