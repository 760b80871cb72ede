// Package gatewayconfig loads raw gateway configuration from a YAML file, an
// optional dotenv file and the process environment.
package gatewayconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-payments/core"
)

const DefaultEnvPrefix = "GATEWAY_"

// sections lists the nested config blocks an env key may address. Keys that
// do not start with one of them land at the top level.
var sections = []string{
	"store",
	"queue",
	"processing",
	"idempotency",
	"reconciliation",
	"webhooks",
	"http",
}

// Loader implements core.RawConfigLoader.
//
// Precedence, lowest first: YAML file, dotenv file, legacy variables, prefixed
// variables. A missing file is not an error unless Required is set.
type Loader struct {
	Path     string
	EnvFile  string
	Prefix   string
	Required bool
	Environ  func() []string
}

func NewLoader(path string) *Loader {
	return &Loader{Path: path, EnvFile: ".env", Prefix: DefaultEnvPrefix, Environ: os.Environ}
}

func (l *Loader) LoadRaw(_ context.Context) (map[string]any, error) {
	raw := map[string]any{}
	if l == nil {
		return raw, nil
	}
	if err := l.loadYAML(raw); err != nil {
		return nil, err
	}

	env, err := l.environment()
	if err != nil {
		return nil, err
	}
	applyLegacy(raw, env)

	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		path := envPath(strings.TrimPrefix(key, prefix))
		if len(path) == 0 {
			continue
		}
		value := env[key]
		if literalKey(path[len(path)-1]) {
			setPath(raw, path, strings.TrimSpace(value))
			continue
		}
		setPath(raw, path, parseScalar(value))
	}
	return raw, nil
}

func (l *Loader) loadYAML(raw map[string]any) error {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !l.Required {
			return nil
		}
		return fmt.Errorf("gatewayconfig: read %s: %w", path, err)
	}
	parsed := map[string]any{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("gatewayconfig: parse %s: %w", path, err)
	}
	for key, value := range parsed {
		raw[key] = value
	}
	return nil
}

// environment merges the dotenv file under the process environment.
func (l *Loader) environment() (map[string]string, error) {
	env := map[string]string{}
	if file := strings.TrimSpace(l.EnvFile); file != "" {
		values, err := godotenv.Read(file)
		switch {
		case err == nil:
			for key, value := range values {
				env[key] = value
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("gatewayconfig: read %s: %w", file, err)
		}
	}
	environ := l.Environ
	if environ == nil {
		environ = os.Environ
	}
	for _, entry := range environ() {
		key, value, ok := strings.Cut(entry, "=")
		if ok {
			env[key] = value
		}
	}
	return env, nil
}

// applyLegacy maps the variable names the gateway containers already set.
func applyLegacy(raw map[string]any, env map[string]string) {
	if dsn := strings.TrimSpace(env["DATABASE_URL"]); dsn != "" {
		setPath(raw, []string{"store", "dsn"}, dsn)
		if strings.HasPrefix(dsn, "postgres") {
			setPath(raw, []string{"store", "driver"}, "postgres")
		}
	}
	if url := strings.TrimSpace(env["REDIS_URL"]); url != "" {
		setPath(raw, []string{"queue", "redis_url"}, url)
		setPath(raw, []string{"queue", "backend"}, core.QueueBackendRedis)
	}
	if port := strings.TrimSpace(env["PORT"]); port != "" {
		setPath(raw, []string{"http", "addr"}, ":"+port)
	}
	for name, key := range map[string]string{
		"WORKER_QUEUE":  "payment_queue",
		"REFUND_QUEUE":  "refund_queue",
		"WEBHOOK_QUEUE": "webhook_queue",
	} {
		if value := strings.TrimSpace(env[name]); value != "" {
			setPath(raw, []string{"queue", key}, value)
		}
	}
	if value, ok := env["TEST_MODE"]; ok {
		mode := core.ModeLive
		if truthy(value) {
			mode = core.ModeTest
		}
		setPath(raw, []string{"processing", "mode"}, mode)
	}
	if value, ok := env["TEST_PAYMENT_SUCCESS"]; ok {
		outcome := core.OutcomeFailure
		if truthy(value) {
			outcome = core.OutcomeSuccess
		}
		setPath(raw, []string{"processing", "test_outcome"}, outcome)
	}
	if value, ok := env["WEBHOOK_RETRY_INTERVALS_TEST"]; ok {
		mode := core.ModeLive
		if truthy(value) {
			mode = core.ModeTest
		}
		setPath(raw, []string{"webhooks", "mode"}, mode)
	}
	for name, key := range map[string]string{
		"TEST_PROCESSING_DELAY": "test_delay_ms",
		"UPI_SUCCESS_RATE":      "upi_success_rate",
		"CARD_SUCCESS_RATE":     "card_success_rate",
		"WORKER_MAX_RETRIES":    "max_retries",
	} {
		if value := strings.TrimSpace(env[name]); value != "" {
			setPath(raw, []string{"processing", key}, parseScalar(value))
		}
	}
	if value := strings.TrimSpace(env["PROCESSING_THRESHOLD_SEC"]); value != "" {
		setPath(raw, []string{"reconciliation", "threshold_seconds"}, parseScalar(value))
	}
}

func envPath(name string) []string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil
	}
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok && rest != "" {
			return []string{section, rest}
		}
	}
	return []string{key}
}

// parseScalar decodes an env value as a YAML scalar or flow sequence. A comma
// separated value becomes a list.
func parseScalar(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, ",") && !strings.HasPrefix(trimmed, "[") {
		trimmed = "[" + trimmed + "]"
	}
	var out any
	if err := yaml.Unmarshal([]byte(trimmed), &out); err != nil || out == nil {
		return value
	}
	if _, isMap := out.(map[string]any); isMap {
		return value
	}
	return out
}

// literalKey reports keys whose values are passed through untouched.
func literalKey(key string) bool {
	return strings.HasSuffix(key, "dsn") || strings.HasSuffix(key, "url") || key == "addr"
}

func setPath(raw map[string]any, path []string, value any) {
	current := raw
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Load resolves the full gateway config: defaults, then the loader output,
// then runtime overrides.
func Load(ctx context.Context, loader core.RawConfigLoader, runtime core.Config) (core.Config, error) {
	defaults := core.DefaultConfig()
	loaded, err := core.NewCfgxConfigProvider(loader).Load(ctx, defaults)
	if err != nil {
		return core.Config{}, err
	}
	return core.GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

var _ core.RawConfigLoader = (*Loader)(nil)
