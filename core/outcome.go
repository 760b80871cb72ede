package core

import (
	"math/rand/v2"
	"sync"
	"time"
)

// OutcomeSimulator stands in for a payment network. Test mode yields a fixed
// outcome after a fixed delay; live mode draws the outcome per method.
type OutcomeSimulator interface {
	Delay() time.Duration
	PaymentSucceeds(method PaymentMethod) bool
	RefundSucceeds() bool
}

type ConfiguredOutcomes struct {
	config ProcessingConfig
	mu     sync.Mutex
	rand   *rand.Rand
}

func NewConfiguredOutcomes(config ProcessingConfig, source rand.Source) *ConfiguredOutcomes {
	if source == nil {
		source = rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)
	}
	return &ConfiguredOutcomes{config: config, rand: rand.New(source)}
}

func (o *ConfiguredOutcomes) Delay() time.Duration {
	if o.config.TestMode() {
		return time.Duration(o.config.TestDelayMS) * time.Millisecond
	}
	minimum := o.config.LiveDelayMinMS
	spread := o.config.LiveDelayMaxMS - minimum
	if spread <= 0 {
		return time.Duration(minimum) * time.Millisecond
	}
	o.mu.Lock()
	offset := o.rand.IntN(spread + 1)
	o.mu.Unlock()
	return time.Duration(minimum+offset) * time.Millisecond
}

func (o *ConfiguredOutcomes) PaymentSucceeds(method PaymentMethod) bool {
	if o.config.TestMode() {
		return o.config.TestOutcome != OutcomeFailure
	}
	rate := o.config.CardSuccessRate
	if method == PaymentMethodUPI {
		rate = o.config.UPISuccessRate
	}
	return o.draw(rate)
}

// RefundSucceeds always succeeds in test mode.
func (o *ConfiguredOutcomes) RefundSucceeds() bool {
	if o.config.TestMode() {
		return true
	}
	return o.draw(o.config.RefundSuccessRate)
}

func (o *ConfiguredOutcomes) draw(rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rand.Float64() < rate
}

var _ OutcomeSimulator = (*ConfiguredOutcomes)(nil)
