package gatewayconfig

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/goliatone/go-payments/core"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func staticEnv(entries ...string) func() []string {
	return func() []string { return entries }
}

func TestLoader_LayersYAMLDotenvAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "gateway.yaml", `
service_name: gateway
processing:
  mode: live
  max_retries: 5
queue:
  payment_queue: jobs_from_yaml
`)
	envPath := writeFile(t, dir, ".env", "GATEWAY_PROCESSING_MAX_RETRIES=2\nGATEWAY_QUEUE_REFUND_QUEUE=refunds_from_dotenv\n")

	loader := &Loader{
		Path:    yamlPath,
		EnvFile: envPath,
		Environ: staticEnv(
			"GATEWAY_PROCESSING_MODE=test",
			"GATEWAY_WEBHOOKS_TEST_RETRY_SCHEDULE_SECONDS=0,1,2",
			"GATEWAY_STORE_DSN=postgres://u:p@db:5432/gateway?sslmode=disable&x=1,2",
			"UNRELATED=1",
		),
	}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}

	if raw["service_name"] != "gateway" {
		t.Fatalf("expected yaml service name, got %v", raw["service_name"])
	}
	processing := raw["processing"].(map[string]any)
	if processing["mode"] != "test" {
		t.Fatalf("expected environment to win over yaml, got %v", processing["mode"])
	}
	if processing["max_retries"] != 2 {
		t.Fatalf("expected dotenv to win over yaml, got %#v", processing["max_retries"])
	}
	queue := raw["queue"].(map[string]any)
	if queue["payment_queue"] != "jobs_from_yaml" || queue["refund_queue"] != "refunds_from_dotenv" {
		t.Fatalf("unexpected queue section %#v", queue)
	}
	webhooks := raw["webhooks"].(map[string]any)
	if !reflect.DeepEqual(webhooks["test_retry_schedule_seconds"], []any{0, 1, 2}) {
		t.Fatalf("expected comma list to decode, got %#v", webhooks["test_retry_schedule_seconds"])
	}
	store := raw["store"].(map[string]any)
	if store["dsn"] != "postgres://u:p@db:5432/gateway?sslmode=disable&x=1,2" {
		t.Fatalf("expected dsn to stay literal, got %#v", store["dsn"])
	}
	if _, ok := raw["unrelated"]; ok {
		t.Fatalf("expected unprefixed variables to be ignored")
	}
}

func TestLoader_MapsLegacyVariables(t *testing.T) {
	loader := &Loader{Environ: staticEnv(
		"DATABASE_URL=postgres://db/gateway",
		"REDIS_URL=redis://redis:6379",
		"TEST_MODE=true",
		"TEST_PAYMENT_SUCCESS=false",
		"WEBHOOK_RETRY_INTERVALS_TEST=true",
		"TEST_PROCESSING_DELAY=500",
		"PORT=9000",
		"WORKER_QUEUE=gateway_jobs_v2",
	)}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	store := raw["store"].(map[string]any)
	if store["driver"] != "postgres" || store["dsn"] != "postgres://db/gateway" {
		t.Fatalf("unexpected store section %#v", store)
	}
	queue := raw["queue"].(map[string]any)
	if queue["backend"] != core.QueueBackendRedis || queue["payment_queue"] != "gateway_jobs_v2" {
		t.Fatalf("unexpected queue section %#v", queue)
	}
	processing := raw["processing"].(map[string]any)
	if processing["mode"] != core.ModeTest || processing["test_outcome"] != core.OutcomeFailure {
		t.Fatalf("unexpected processing section %#v", processing)
	}
	if processing["test_delay_ms"] != 500 {
		t.Fatalf("expected numeric delay, got %#v", processing["test_delay_ms"])
	}
	if raw["webhooks"].(map[string]any)["mode"] != core.ModeTest {
		t.Fatalf("expected test webhook schedule")
	}
	if raw["http"].(map[string]any)["addr"] != ":9000" {
		t.Fatalf("expected port to map to addr")
	}
}

func TestLoader_PrefixedVariablesOverrideLegacy(t *testing.T) {
	loader := &Loader{Environ: staticEnv("TEST_MODE=true", "GATEWAY_PROCESSING_MODE=live")}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["processing"].(map[string]any)["mode"] != core.ModeLive {
		t.Fatalf("expected prefixed variable to win")
	}
}

func TestLoader_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	loader := &Loader{
		Path:    filepath.Join(dir, "absent.yaml"),
		EnvFile: filepath.Join(dir, "absent.env"),
		Environ: staticEnv(),
	}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("expected optional files to be skipped, got %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty raw config, got %#v", raw)
	}

	loader.Required = true
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected error for required missing file")
	}
}

func TestLoader_RejectsMalformedYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "processing: [unclosed")
	loader := &Loader{Path: path, Environ: staticEnv()}
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_ResolvesAgainstDefaults(t *testing.T) {
	loader := &Loader{Environ: staticEnv(
		"GATEWAY_PROCESSING_MODE=test",
		"GATEWAY_QUEUE_ALERT_QUEUE=alerts_custom",
	)}
	cfg, err := Load(context.Background(), loader, core.Config{HTTP: core.HTTPConfig{Addr: ":9100"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Processing.TestMode() {
		t.Fatalf("expected test mode from environment")
	}
	if cfg.Queue.AlertQueue != "alerts_custom" {
		t.Fatalf("expected alert queue override, got %q", cfg.Queue.AlertQueue)
	}
	if cfg.Queue.PaymentQueue != core.DefaultConfig().Queue.PaymentQueue {
		t.Fatalf("expected default payment queue, got %q", cfg.Queue.PaymentQueue)
	}
	if cfg.HTTP.Addr != ":9100" {
		t.Fatalf("expected runtime override to win, got %q", cfg.HTTP.Addr)
	}

	bad := &Loader{Environ: staticEnv("GATEWAY_PROCESSING_MODE=sandbox")}
	if _, err := Load(context.Background(), bad, core.Config{}); err == nil {
		t.Fatalf("expected validation error for unknown mode")
	}
}
