package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorAuthenticationFailed = "FOLIO_AUTHENTICATION_FAILED"
	ErrorWebhookUnauthorized  = "FOLIO_WEBHOOK_UNAUTHORIZED"
	ErrorConfigurationInvalid = "FOLIO_CONFIGURATION_INVALID"
	ErrorDownstreamTransient  = "FOLIO_DOWNSTREAM_TRANSIENT"
	ErrorDownstreamPermanent  = "FOLIO_DOWNSTREAM_PERMANENT"
	ErrorTokenExchangeFailed  = "FOLIO_TOKEN_EXCHANGE_FAILED"
	ErrorUpstreamFailed       = "FOLIO_UPSTREAM_FAILED"
	ErrorBadInput             = "FOLIO_BAD_INPUT"
	ErrorStoreUnavailable     = "FOLIO_STORE_UNAVAILABLE"
	ErrorInvalidTransition    = "FOLIO_INVALID_TRANSITION"
	ErrorNotFound             = "FOLIO_NOT_FOUND"
	ErrorUnsupported          = "FOLIO_UNSUPPORTED"
	ErrorInternal             = "FOLIO_INTERNAL_ERROR"
)

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return newError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewAuthenticationError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorAuthenticationFailed, metadata)
}

// NewWebhookAuthenticationError rejects an inbound delivery whose shared
// secret does not match.
func NewWebhookAuthenticationError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorWebhookUnauthorized, metadata)
}

// NewConfigurationError signals missing or invalid credentials and endpoints.
// It is never retried.
func NewConfigurationError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorConfigurationInvalid, metadata)
}

func NewTransientDownstreamError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryExternal, message, http.StatusBadGateway, ErrorDownstreamTransient, metadata)
}

func NewPermanentDownstreamError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryExternal, message, http.StatusBadGateway, ErrorDownstreamPermanent, metadata)
}

func NewTokenExchangeError(source error, message string, statusCode int, metadata map[string]any) error {
	category := goerrors.CategoryExternal
	if statusCode == http.StatusBadRequest || statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		category = goerrors.CategoryAuth
	}
	return wrapError(source, category, message, http.StatusBadGateway, ErrorTokenExchangeFailed, metadata)
}

func NewUpstreamError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryExternal, message, http.StatusBadGateway, ErrorUpstreamFailed, metadata)
}

func NewBadInputError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput, metadata)
}

func WrapBadInputError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryBadInput, message, http.StatusBadRequest, ErrorBadInput, metadata)
}

func NewStoreUnavailableError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryInternal, message, http.StatusInternalServerError, ErrorStoreUnavailable, metadata)
}

func NewInvalidTransitionError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryConflict, http.StatusConflict, ErrorInvalidTransition, metadata)
}

func NewNotFoundError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryNotFound, http.StatusNotFound, ErrorNotFound, metadata)
}

func NewUnsupportedError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryOperation, http.StatusNotImplemented, ErrorUnsupported, metadata)
}

func NewInternalError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal, metadata)
}

// TextCode returns the text code of the outermost go-errors envelope.
func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return strings.TrimSpace(richErr.TextCode)
	}
	return ""
}

func hasTextCode(err error, code string) bool {
	return err != nil && TextCode(err) == code
}

func IsAuthentication(err error) bool {
	return hasTextCode(err, ErrorAuthenticationFailed) || hasTextCode(err, ErrorWebhookUnauthorized)
}

func IsWebhookUnauthorized(err error) bool {
	return hasTextCode(err, ErrorWebhookUnauthorized)
}

func IsConfiguration(err error) bool {
	return hasTextCode(err, ErrorConfigurationInvalid)
}

func IsTransient(err error) bool {
	return hasTextCode(err, ErrorDownstreamTransient)
}

func IsPermanent(err error) bool {
	return hasTextCode(err, ErrorDownstreamPermanent)
}

func IsTokenExchange(err error) bool {
	return hasTextCode(err, ErrorTokenExchangeFailed)
}

func IsBadInput(err error) bool {
	return hasTextCode(err, ErrorBadInput)
}

func IsNotFound(err error) bool {
	return hasTextCode(err, ErrorNotFound)
}

func IsInvalidTransition(err error) bool {
	return hasTextCode(err, ErrorInvalidTransition)
}

// HTTPStatus maps an error onto the inbound webhook response code. Only a bad
// shared secret and malformed input are surfaced as client errors; every other
// failure, downstream authentication included, returns 500 so the sender
// retries against the dedup ledger.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsWebhookUnauthorized(err):
		return http.StatusUnauthorized
	case IsBadInput(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
