package webhooks

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/goliatone/go-folio/core"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// SharedSecretVerifier compares a header against a configured secret in
// constant time. Surrounding whitespace is ignored on both sides and an empty
// Secret disables the check.
type SharedSecretVerifier struct {
	Header string
	Secret string
}

func NewSharedSecretVerifier(header string, secret string) SharedSecretVerifier {
	header = strings.TrimSpace(header)
	if header == "" {
		header = core.DefaultWebhookSecretHeader
	}
	return SharedSecretVerifier{Header: header, Secret: strings.TrimSpace(secret)}
}

func (v SharedSecretVerifier) Enabled() bool {
	return strings.TrimSpace(v.Secret) != ""
}

func (v SharedSecretVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if !v.Enabled() {
		return nil
	}
	header := v.header()
	actual, present := lookupHeader(req.Headers, header)
	if !present {
		return core.NewWebhookAuthenticationError(
			"webhooks: "+header+" header is required",
			map[string]any{"header": header},
		)
	}
	expected := strings.TrimSpace(v.Secret)
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(actual)), []byte(expected)) != 1 {
		return core.NewWebhookAuthenticationError(
			"webhooks: invalid webhook secret",
			map[string]any{"header": header},
		)
	}
	return nil
}

func (v SharedSecretVerifier) header() string {
	if header := strings.TrimSpace(v.Header); header != "" {
		return header
	}
	return core.DefaultWebhookSecretHeader
}

// VerifierFunc adapts a function into a Verifier.
type VerifierFunc func(ctx context.Context, req core.InboundRequest) error

func (f VerifierFunc) Verify(ctx context.Context, req core.InboundRequest) error {
	return f(ctx, req)
}

func lookupHeader(headers map[string]string, key string) (string, bool) {
	key = strings.TrimSpace(key)
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return value, true
		}
	}
	return "", false
}

// redactHeaders copies headers and masks the named secret header.
func redactHeaders(headers map[string]string, secretHeader string) map[string]string {
	return core.RedactHeaders(headers, secretHeader)
}
