package core

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestConfiguredOutcomes_TestModeIsDeterministic(t *testing.T) {
	cfg := DefaultConfig().Processing
	cfg.Mode = ModeTest
	cfg.TestDelayMS = 250
	cfg.TestOutcome = OutcomeFailure

	outcomes := NewConfiguredOutcomes(cfg, rand.NewPCG(1, 2))
	for range 5 {
		if outcomes.Delay() != 250*time.Millisecond {
			t.Fatalf("expected fixed delay")
		}
		if outcomes.PaymentSucceeds(PaymentMethodCard) || outcomes.PaymentSucceeds(PaymentMethodUPI) {
			t.Fatalf("expected configured failure")
		}
		if !outcomes.RefundSucceeds() {
			t.Fatalf("refunds always succeed in test mode")
		}
	}
}

func TestConfiguredOutcomes_LiveDelayWithinRange(t *testing.T) {
	cfg := DefaultConfig().Processing
	cfg.Mode = ModeLive
	cfg.LiveDelayMinMS = 10
	cfg.LiveDelayMaxMS = 20

	outcomes := NewConfiguredOutcomes(cfg, rand.NewPCG(7, 9))
	for range 50 {
		d := outcomes.Delay()
		if d < 10*time.Millisecond || d > 20*time.Millisecond {
			t.Fatalf("delay %s outside range", d)
		}
	}
}

func TestConfiguredOutcomes_LiveRatesAtBounds(t *testing.T) {
	cfg := DefaultConfig().Processing
	cfg.Mode = ModeLive
	cfg.UPISuccessRate = 1
	cfg.CardSuccessRate = 0
	cfg.RefundSuccessRate = 1

	outcomes := NewConfiguredOutcomes(cfg, rand.NewPCG(3, 4))
	if !outcomes.PaymentSucceeds(PaymentMethodUPI) {
		t.Fatalf("expected upi success at rate 1")
	}
	if outcomes.PaymentSucceeds(PaymentMethodCard) {
		t.Fatalf("expected card failure at rate 0")
	}
	if !outcomes.RefundSucceeds() {
		t.Fatalf("expected refund success at rate 1")
	}
}
