package memqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
)

func testConfig() core.QueueConfig {
	cfg := core.DefaultConfig().Queue
	cfg.PopTimeoutSeconds = 1
	return cfg
}

func TestEnqueueRoutesByJobID(t *testing.T) {
	broker := New(testConfig())
	ctx := context.Background()

	if err := broker.Enqueue(ctx, core.PaymentJob{PaymentID: "pay_1"}.Message()); err != nil {
		t.Fatalf("enqueue payment: %v", err)
	}
	if err := broker.Enqueue(ctx, core.RefundJob{RefundID: "refund_1"}.Message()); err != nil {
		t.Fatalf("enqueue refund: %v", err)
	}
	if broker.Len("gateway_jobs") != 1 || broker.Len("gateway_refunds") != 1 {
		t.Fatalf("unexpected depths jobs=%d refunds=%d", broker.Len("gateway_jobs"), broker.Len("gateway_refunds"))
	}
	if got := string(broker.Payloads("gateway_jobs")[0]); got != `{"payment_id":"pay_1"}` {
		t.Fatalf("unexpected wire payload %s", got)
	}

	err := broker.Enqueue(ctx, &core.JobExecutionMessage{JobID: "unknown"})
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error for unknown job, got %v", err)
	}
}

func TestDequeueIsFIFOAndRecoversJobID(t *testing.T) {
	broker := New(testConfig())
	ctx := context.Background()
	for _, id := range []string{"pay_1", "pay_2"} {
		if err := broker.Enqueue(ctx, core.PaymentJob{PaymentID: id}.Message()); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	dq, err := broker.Dequeuer("gateway_jobs")
	if err != nil {
		t.Fatalf("dequeuer: %v", err)
	}
	for _, want := range []string{"pay_1", "pay_2"} {
		delivery, err := dq.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		msg := delivery.Message()
		if msg.JobID != core.JobIDPaymentProcess || msg.Parameters["payment_id"] != want {
			t.Fatalf("unexpected message %+v", msg)
		}
	}
}

func TestDequeueTimesOutWhenEmpty(t *testing.T) {
	cfg := testConfig()
	broker := New(cfg)
	dq, err := broker.Dequeuer(cfg.PaymentQueue)
	if err != nil {
		t.Fatalf("dequeuer: %v", err)
	}
	dq.timeout = 20 * time.Millisecond

	_, err = dq.Dequeue(context.Background())
	if !errors.Is(err, core.ErrJobQueueEmpty) {
		t.Fatalf("expected empty queue error, got %v", err)
	}
}

func TestDequeueWakesOnPush(t *testing.T) {
	broker := New(testConfig())
	dq, err := broker.Dequeuer("gateway_webhooks")
	if err != nil {
		t.Fatalf("dequeuer: %v", err)
	}
	got := make(chan core.JobDelivery, 1)
	go func() {
		delivery, _ := dq.Dequeue(context.Background())
		got <- delivery
	}()
	time.Sleep(10 * time.Millisecond)
	job := core.WebhookJob{MerchantID: "mrc_1", Event: core.EventPaymentSuccess, Payload: map[string]any{}}
	if err := broker.Enqueue(context.Background(), job.Message()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case delivery := <-got:
		if delivery == nil || delivery.Message().JobID != core.JobIDWebhookDeliver {
			t.Fatalf("unexpected delivery %+v", delivery)
		}
	case <-time.After(time.Second):
		t.Fatalf("consumer was not woken")
	}
}

func TestNackDeadLetterKeepsOriginalPayload(t *testing.T) {
	broker := New(testConfig())
	ctx := context.Background()
	if err := broker.PushRaw("gateway_refunds", []byte(`{"refund_id":"refund_1","note":"x"}`)); err != nil {
		t.Fatalf("push: %v", err)
	}
	dq, _ := broker.Dequeuer("gateway_refunds")
	delivery, err := dq.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "boom"}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	dlq := broker.Payloads("gateway_refunds_dlq")
	if len(dlq) != 1 || string(dlq[0]) != `{"refund_id":"refund_1","note":"x"}` {
		t.Fatalf("unexpected dead letters %q", dlq)
	}
}

func TestUndecodablePayloadGoesToDeadLetter(t *testing.T) {
	broker := New(testConfig())
	if err := broker.PushRaw("gateway_jobs", []byte("not json")); err != nil {
		t.Fatalf("push: %v", err)
	}
	dq, _ := broker.Dequeuer("gateway_jobs")
	delivery, err := dq.Dequeue(context.Background())
	if err != nil || delivery != nil {
		t.Fatalf("expected nil delivery, got %v %v", delivery, err)
	}
	if broker.Len("gateway_jobs_dlq") != 1 {
		t.Fatalf("expected payload in dead-letter queue")
	}

	stats, err := broker.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[0].Queue != "gateway_jobs" || stats[0].Depth != 0 || stats[0].DeadLetter != 1 {
		t.Fatalf("unexpected stats %+v", stats[0])
	}
}
