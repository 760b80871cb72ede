package core

import "testing"

func TestRedactFields_MasksCardDataAndCredentials(t *testing.T) {
	input := map[string]any{
		"payment_id":  "pay_1",
		"card_number": "4111111111111111",
		"card_last4":  "1111",
		"API_Secret":  "secret_abc",
		"request": map[string]any{
			"cvv":          "123",
			"expiry_month": "12",
			"method":       "card",
		},
		"headers": []any{
			map[string]any{"authorization": "Basic abc"},
			"plain",
		},
	}

	out := RedactFields(input)

	for _, key := range []string{"card_number", "API_Secret"} {
		if out[key] != RedactedValue {
			t.Fatalf("expected %s to be redacted, got %v", key, out[key])
		}
	}
	if out["payment_id"] != "pay_1" || out["card_last4"] != "1111" {
		t.Fatalf("expected traceability fields to stay readable: %v", out)
	}
	nested := out["request"].(map[string]any)
	if nested["cvv"] != RedactedValue || nested["expiry_month"] != RedactedValue || nested["method"] != "card" {
		t.Fatalf("unexpected nested redaction %v", nested)
	}
	headers := out["headers"].([]any)
	if headers[0].(map[string]any)["authorization"] != RedactedValue || headers[1] != "plain" {
		t.Fatalf("unexpected slice redaction %v", headers)
	}
	if input["card_number"] != "4111111111111111" {
		t.Fatalf("input must not be modified")
	}
}

func TestRedactFields_Empty(t *testing.T) {
	if out := RedactFields(nil); out == nil || len(out) != 0 {
		t.Fatalf("expected empty map, got %v", out)
	}
}
