package webhooks

import (
	"bytes"
	"encoding/json"

	"github.com/goliatone/go-folio/core"
)

// FieldError reports an envelope field whose value could not be coerced. The
// field is treated as absent.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return "webhooks: field " + e.Field + ": " + e.Err.Error()
}

// ParseEvent decodes a delivery body. Only a body that is not a JSON object is
// rejected; a mistyped field is left unset and returned as a FieldError. The
// returned event has an empty EventID when the payload carries no usable
// transaction id.
func ParseEvent(body []byte) (core.InboundEvent, []FieldError, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return core.InboundEvent{}, nil, core.NewBadInputError("webhooks: empty request body", nil)
	}
	if trimmed[0] != '{' {
		return core.InboundEvent{}, nil, core.NewBadInputError("webhooks: request body must be a JSON object", nil)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return core.InboundEvent{}, nil, core.WrapBadInputError(err, "webhooks: malformed request body", nil)
	}

	var skipped []FieldError
	text := func(name string) string {
		raw, ok := fields[name]
		if !ok {
			return ""
		}
		var value core.FlexString
		if err := json.Unmarshal(raw, &value); err != nil {
			skipped = append(skipped, FieldError{Field: name, Err: err})
			return ""
		}
		return value.String()
	}

	transactionID := text("transactionId")
	event := core.InboundEvent{
		EventID:             transactionID,
		PropertyID:          text("propertyId"),
		ReferenceID:         transactionID,
		TransactionDateTime: text("transactionDateTime"),
		ServiceDate:         text("serviceDate"),
		GuestName:           text("guestName"),
		RawPayload:          json.RawMessage(append([]byte(nil), trimmed...)),
	}
	if raw, ok := fields["amount"]; ok {
		var amount core.FlexFloat
		if err := json.Unmarshal(raw, &amount); err != nil {
			skipped = append(skipped, FieldError{Field: "amount", Err: err})
		} else {
			event.Amount = amount.Ptr()
		}
	}
	return event, skipped, nil
}

// auditPayload keeps an undecodable body as a JSON string so the event log
// holds valid JSON for every delivery.
func auditPayload(body []byte) json.RawMessage {
	encoded, err := json.Marshal(string(body))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return encoded
}
