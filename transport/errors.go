package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio/core"
)

const (
	TextCodeNetworkFailure  = "FOLIO_TRANSPORT_NETWORK"
	TextCodeResponseFailure = "FOLIO_TRANSPORT_RESPONSE"
	TextCodeBadRequest      = "FOLIO_TRANSPORT_BAD_REQUEST"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// IsNetworkError reports failures that never produced an HTTP response.
func IsNetworkError(err error) bool {
	code := core.TextCode(err)
	return code == TextCodeNetworkFailure || code == TextCodeResponseFailure
}
