package redisqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-payments/core"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	cfg := core.DefaultConfig().Queue
	cfg.Backend = core.QueueBackendRedis
	cfg.RedisURL = "redis://" + server.Addr() + "/0"
	cfg.PopTimeoutSeconds = 1
	q, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q, server
}

func TestEnqueuePushesParametersToRoutedList(t *testing.T) {
	q, server := newTestQueue(t)

	if err := q.Enqueue(context.Background(), core.PaymentJob{PaymentID: "pay_1"}.Message()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	items, err := server.List("gateway_jobs")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0] != `{"payment_id":"pay_1"}` {
		t.Fatalf("unexpected list %q", items)
	}
}

func TestDequeueDecodesAndDeadLettersUnchanged(t *testing.T) {
	q, server := newTestQueue(t)
	ctx := context.Background()
	server.Push("gateway_refunds", `{"refund_id":"refund_1","retries":2}`)

	dq, err := q.Dequeuer("gateway_refunds")
	if err != nil {
		t.Fatalf("dequeuer: %v", err)
	}
	delivery, err := dq.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	msg := delivery.Message()
	if msg.JobID != core.JobIDRefundProcess || core.JobRetries(msg) != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if err := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	dead, _ := server.List("gateway_refunds_dlq")
	if len(dead) != 1 || dead[0] != `{"refund_id":"refund_1","retries":2}` {
		t.Fatalf("unexpected dead letters %q", dead)
	}
}

func TestDequeueMovesGarbageToDeadLetter(t *testing.T) {
	q, server := newTestQueue(t)
	server.Push("gateway_webhooks", "{broken")

	dq, _ := q.Dequeuer("gateway_webhooks")
	delivery, err := dq.Dequeue(context.Background())
	if err != nil || delivery != nil {
		t.Fatalf("expected nil delivery, got %v %v", delivery, err)
	}
	dead, _ := server.List("gateway_webhooks_dlq")
	if len(dead) != 1 || dead[0] != "{broken" {
		t.Fatalf("expected raw payload dead-lettered, got %q", dead)
	}
}

func TestDequeueReportsEmptyAfterTimeout(t *testing.T) {
	q, _ := newTestQueue(t)
	dq, _ := q.Dequeuer("gateway_alerts")

	_, err := dq.Dequeue(context.Background())
	if !errors.Is(err, core.ErrJobQueueEmpty) {
		t.Fatalf("expected empty queue error, got %v", err)
	}
}

func TestStatsReportsDepths(t *testing.T) {
	q, server := newTestQueue(t)
	server.Push("gateway_jobs", `{"payment_id":"a"}`, `{"payment_id":"b"}`)
	server.Push("gateway_jobs_dlq", `{"payment_id":"c"}`)

	stats, err := q.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[0].Queue != "gateway_jobs" || stats[0].Depth != 2 || stats[0].DeadLetter != 1 {
		t.Fatalf("unexpected stats %+v", stats[0])
	}
}

func TestOpenFailsWhenServerIsDown(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	cfg := core.DefaultConfig().Queue
	cfg.RedisURL = "redis://" + addr
	_, err := Open(context.Background(), cfg, nil)
	if err == nil || !core.IsRetryable(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestNewAcceptsExistingClient(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), Password: "", DB: 0})
	q := New(client, core.DefaultConfig().Queue, nil)
	if err := q.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
