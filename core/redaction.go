package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactFields masks card data and credentials in log fields. Nested maps
// and slices are walked; the input is not modified.
func RedactFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return redactMap(fields)
}

func redactMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactValue(value)
	}
	return target
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	for _, token := range []string{
		"card_number",
		"cardnumber",
		"cvv",
		"expiry",
		"secret",
		"password",
		"authorization",
		"api_key",
		"apikey",
		"signature",
	} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

// isTraceabilityKey lists identifiers that contain a sensitive token but
// must stay readable in logs.
func isTraceabilityKey(key string) bool {
	switch key {
	case "merchant_id",
		"order_id",
		"payment_id",
		"refund_id",
		"webhook_id",
		"log_id",
		"idempotency_key",
		"card_last4",
		"card_network",
		"request_id":
		return true
	default:
		return false
	}
}
