package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"event_id":      "tx1",
		"property_id":   "p1",
		"access_token":  "secret-token",
		"authorization": "Bearer secret-token",
		"nested":        map[string]any{"client_secret": "s", "reference_id": "tx1"},
		"attempts":      []any{map[string]any{"api_key": "key_1"}, map[string]any{"status_code": 503}},
	})

	if redacted["event_id"] != "tx1" || redacted["property_id"] != "p1" {
		t.Fatalf("expected identifiers to remain visible, got %#v", redacted)
	}
	if redacted["access_token"] != RedactedValue || redacted["authorization"] != RedactedValue {
		t.Fatalf("expected credentials to be redacted, got %#v", redacted)
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["client_secret"] != RedactedValue || nested["reference_id"] != "tx1" {
		t.Fatalf("unexpected nested map: %#v", nested)
	}
	attempts, _ := redacted["attempts"].([]any)
	first, _ := attempts[0].(map[string]any)
	if first["api_key"] != RedactedValue {
		t.Fatalf("expected slice entries to be redacted, got %#v", first)
	}
}

func TestRedactHeaders(t *testing.T) {
	headers := RedactHeaders(map[string]string{
		"X-Webhook-Secret": "s3cret",
		"X-Custom-Auth":    "abc",
		"Authorization":    "Bearer t",
		"Content-Type":     "application/json",
		" ":                "dropped",
	}, "x-custom-auth")

	if headers["x-webhook-secret"] != RedactedValue || headers["authorization"] != RedactedValue {
		t.Fatalf("expected credential headers redacted, got %#v", headers)
	}
	if headers["x-custom-auth"] != RedactedValue {
		t.Fatalf("expected extra header redacted, got %#v", headers)
	}
	if headers["content-type"] != "application/json" {
		t.Fatalf("expected other headers preserved, got %#v", headers)
	}
	if len(headers) != 4 {
		t.Fatalf("expected blank header name dropped, got %#v", headers)
	}
}
