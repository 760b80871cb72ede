package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	ModeTest = "test"
	ModeLive = "live"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

type StoreConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type QueueConfig struct {
	Backend           string `koanf:"backend" mapstructure:"backend"`
	RedisURL          string `koanf:"redis_url" mapstructure:"redis_url"`
	PaymentQueue      string `koanf:"payment_queue" mapstructure:"payment_queue"`
	RefundQueue       string `koanf:"refund_queue" mapstructure:"refund_queue"`
	WebhookQueue      string `koanf:"webhook_queue" mapstructure:"webhook_queue"`
	AlertQueue        string `koanf:"alert_queue" mapstructure:"alert_queue"`
	DeadLetterSuffix  string `koanf:"dead_letter_suffix" mapstructure:"dead_letter_suffix"`
	PopTimeoutSeconds int    `koanf:"pop_timeout_seconds" mapstructure:"pop_timeout_seconds"`
}

// Routes maps job ids to queue names.
func (c QueueConfig) Routes() map[string]string {
	return map[string]string{
		JobIDPaymentProcess: c.PaymentQueue,
		JobIDRefundProcess:  c.RefundQueue,
		JobIDWebhookDeliver: c.WebhookQueue,
		JobIDAlert:          c.AlertQueue,
	}
}

// JobIDForQueue reverses Routes. The wire payload carries only the
// parameters so the job id is recovered from the queue it was popped from.
func (c QueueConfig) JobIDForQueue(queue string) (string, bool) {
	for jobID, name := range c.Routes() {
		if name == queue {
			return jobID, true
		}
	}
	return "", false
}

func (c QueueConfig) DeadLetterQueue(queue string) string {
	return queue + c.DeadLetterSuffix
}

func (c QueueConfig) PopTimeout() time.Duration {
	return time.Duration(c.PopTimeoutSeconds) * time.Second
}

type ProcessingConfig struct {
	Mode              string  `koanf:"mode" mapstructure:"mode"`
	TestOutcome       string  `koanf:"test_outcome" mapstructure:"test_outcome"`
	TestDelayMS       int     `koanf:"test_delay_ms" mapstructure:"test_delay_ms"`
	LiveDelayMinMS    int     `koanf:"live_delay_min_ms" mapstructure:"live_delay_min_ms"`
	LiveDelayMaxMS    int     `koanf:"live_delay_max_ms" mapstructure:"live_delay_max_ms"`
	UPISuccessRate    float64 `koanf:"upi_success_rate" mapstructure:"upi_success_rate"`
	CardSuccessRate   float64 `koanf:"card_success_rate" mapstructure:"card_success_rate"`
	RefundSuccessRate float64 `koanf:"refund_success_rate" mapstructure:"refund_success_rate"`
	MaxRetries        int     `koanf:"max_retries" mapstructure:"max_retries"`
}

func (c ProcessingConfig) TestMode() bool {
	return c.Mode == ModeTest
}

type IdempotencyConfig struct {
	TTLSeconds int `koanf:"ttl_seconds" mapstructure:"ttl_seconds"`
}

func (c IdempotencyConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type ReconciliationConfig struct {
	IntervalSeconds  int `koanf:"interval_seconds" mapstructure:"interval_seconds"`
	ThresholdSeconds int `koanf:"threshold_seconds" mapstructure:"threshold_seconds"`
	BatchSize        int `koanf:"batch_size" mapstructure:"batch_size"`
}

func (c ReconciliationConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c ReconciliationConfig) Threshold() time.Duration {
	return time.Duration(c.ThresholdSeconds) * time.Second
}

type WebhookConfig struct {
	Mode                        string `koanf:"mode" mapstructure:"mode"`
	TimeoutSeconds              int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	ScheduleIntervalSeconds     int    `koanf:"schedule_interval_seconds" mapstructure:"schedule_interval_seconds"`
	BatchSize                   int    `koanf:"batch_size" mapstructure:"batch_size"`
	ResponseBodyLimit           int    `koanf:"response_body_limit" mapstructure:"response_body_limit"`
	RetryScheduleSeconds        []int  `koanf:"retry_schedule_seconds" mapstructure:"retry_schedule_seconds"`
	TestRetryScheduleSeconds    []int  `koanf:"test_retry_schedule_seconds" mapstructure:"test_retry_schedule_seconds"`
	SubscriptionCacheTTLSeconds int    `koanf:"subscription_cache_ttl_seconds" mapstructure:"subscription_cache_ttl_seconds"`
}

// RetrySchedule returns the backoff table for the configured mode.
func (c WebhookConfig) RetrySchedule() []time.Duration {
	source := c.RetryScheduleSeconds
	if c.Mode == ModeTest {
		source = c.TestRetryScheduleSeconds
	}
	out := make([]time.Duration, 0, len(source))
	for _, seconds := range source {
		out = append(out, time.Duration(seconds)*time.Second)
	}
	return out
}

func (c WebhookConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c WebhookConfig) ScheduleInterval() time.Duration {
	return time.Duration(c.ScheduleIntervalSeconds) * time.Second
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type Config struct {
	ServiceName    string               `koanf:"service_name" mapstructure:"service_name"`
	Store          StoreConfig          `koanf:"store" mapstructure:"store"`
	Queue          QueueConfig          `koanf:"queue" mapstructure:"queue"`
	Processing     ProcessingConfig     `koanf:"processing" mapstructure:"processing"`
	Idempotency    IdempotencyConfig    `koanf:"idempotency" mapstructure:"idempotency"`
	Reconciliation ReconciliationConfig `koanf:"reconciliation" mapstructure:"reconciliation"`
	Webhooks       WebhookConfig        `koanf:"webhooks" mapstructure:"webhooks"`
	HTTP           HTTPConfig           `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "payments",
		Store: StoreConfig{
			Driver: "sqlite3",
			DSN:    "file:gateway.db?cache=shared&_foreign_keys=on",
		},
		Queue: QueueConfig{
			Backend:           QueueBackendMemory,
			RedisURL:          "redis://localhost:6379/0",
			PaymentQueue:      "gateway_jobs",
			RefundQueue:       "gateway_refunds",
			WebhookQueue:      "gateway_webhooks",
			AlertQueue:        "gateway_alerts",
			DeadLetterSuffix:  "_dlq",
			PopTimeoutSeconds: 5,
		},
		Processing: ProcessingConfig{
			Mode:              ModeLive,
			TestOutcome:       OutcomeSuccess,
			TestDelayMS:       1000,
			LiveDelayMinMS:    5000,
			LiveDelayMaxMS:    10000,
			UPISuccessRate:    0.90,
			CardSuccessRate:   0.95,
			RefundSuccessRate: 1.0,
			MaxRetries:        3,
		},
		Idempotency: IdempotencyConfig{
			TTLSeconds: int((24 * time.Hour).Seconds()),
		},
		Reconciliation: ReconciliationConfig{
			IntervalSeconds:  60,
			ThresholdSeconds: 300,
			BatchSize:        100,
		},
		Webhooks: WebhookConfig{
			Mode:                        ModeLive,
			TimeoutSeconds:              5,
			ScheduleIntervalSeconds:     5,
			BatchSize:                   10,
			ResponseBodyLimit:           1000,
			RetryScheduleSeconds:        []int{0, 60, 300, 1800, 7200},
			TestRetryScheduleSeconds:    []int{0, 5, 10, 15, 20},
			SubscriptionCacheTTLSeconds: 30,
		},
		HTTP: HTTPConfig{
			Addr: ":8000",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch c.Processing.Mode {
	case ModeTest, ModeLive:
	default:
		return fmt.Errorf("core: processing.mode must be %q or %q", ModeTest, ModeLive)
	}
	switch c.Processing.TestOutcome {
	case OutcomeSuccess, OutcomeFailure:
	default:
		return fmt.Errorf("core: processing.test_outcome must be %q or %q", OutcomeSuccess, OutcomeFailure)
	}
	for name, rate := range map[string]float64{
		"upi_success_rate":    c.Processing.UPISuccessRate,
		"card_success_rate":   c.Processing.CardSuccessRate,
		"refund_success_rate": c.Processing.RefundSuccessRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("core: processing.%s must be within [0,1]", name)
		}
	}
	if c.Processing.LiveDelayMaxMS < c.Processing.LiveDelayMinMS {
		return fmt.Errorf("core: processing.live_delay_max_ms must be >= live_delay_min_ms")
	}
	if c.Processing.MaxRetries < 0 {
		return fmt.Errorf("core: processing.max_retries must be >= 0")
	}
	switch c.Queue.Backend {
	case QueueBackendMemory, QueueBackendRedis:
	default:
		return fmt.Errorf("core: queue.backend %q is not supported", c.Queue.Backend)
	}
	for name, queue := range map[string]string{
		"payment_queue": c.Queue.PaymentQueue,
		"refund_queue":  c.Queue.RefundQueue,
		"webhook_queue": c.Queue.WebhookQueue,
		"alert_queue":   c.Queue.AlertQueue,
	} {
		if strings.TrimSpace(queue) == "" {
			return fmt.Errorf("core: queue.%s is required", name)
		}
	}
	if strings.TrimSpace(c.Queue.DeadLetterSuffix) == "" {
		return fmt.Errorf("core: queue.dead_letter_suffix is required")
	}
	if c.Idempotency.TTLSeconds <= 0 {
		return fmt.Errorf("core: idempotency.ttl_seconds must be positive")
	}
	if c.Reconciliation.ThresholdSeconds <= 0 || c.Reconciliation.IntervalSeconds <= 0 {
		return fmt.Errorf("core: reconciliation interval and threshold must be positive")
	}
	if len(c.Webhooks.RetrySchedule()) == 0 {
		return fmt.Errorf("core: webhooks retry schedule is required")
	}
	if c.Webhooks.TimeoutSeconds <= 0 {
		return fmt.Errorf("core: webhooks.timeout_seconds must be positive")
	}
	return nil
}
