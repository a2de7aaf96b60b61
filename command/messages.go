package command

import (
	"strings"

	"github.com/goliatone/go-folio/core"
)

const (
	TypeProcessWebhook = "folio.command.webhook.process"
	TypeReplayEvent    = "folio.command.event.replay"
)

// ProcessWebhookMessage carries one raw delivery. Body validation happens in
// the processor so that secret verification runs first.
type ProcessWebhookMessage struct {
	Request core.InboundRequest
}

func (ProcessWebhookMessage) Type() string { return TypeProcessWebhook }

type ReplayEventMessage struct {
	EventID string
}

func (ReplayEventMessage) Type() string { return TypeReplayEvent }

func (m ReplayEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return commandValidationError("event_id", "event id is required")
	}
	return nil
}
