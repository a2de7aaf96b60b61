package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap copies metadata with credential-like values replaced.
// Identifiers used to trace an event through the pipeline stay visible.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

// RedactHeaders lowercases header names and hides credential headers plus
// any extra names given, such as the configured webhook secret header.
func RedactHeaders(headers map[string]string, extra ...string) map[string]string {
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		name := strings.ToLower(strings.TrimSpace(key))
		if name == "" {
			continue
		}
		if shouldRedactKey(name) || matchesAny(name, extra) {
			value = RedactedValue
		}
		out[name] = value
	}
	return out
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return redactSensitiveMap(out)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
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
	sensitiveTokens := []string{
		"password",
		"secret",
		"token",
		"authorization",
		"api_key",
		"apikey",
		"credential",
		"signature",
	}
	for _, token := range sensitiveTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "event_id",
		"property_id",
		"reference_id",
		"reservation_id",
		"origin_transaction_id",
		"log_id",
		"token_url",
		"trace_id",
		"request_id":
		return true
	default:
		return false
	}
}

func matchesAny(name string, candidates []string) bool {
	for _, candidate := range candidates {
		if candidate = strings.TrimSpace(candidate); candidate != "" && strings.EqualFold(name, candidate) {
			return true
		}
	}
	return false
}
