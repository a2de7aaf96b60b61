package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-folio/core"
)

type WebhookService interface {
	Process(ctx context.Context, req core.InboundRequest) (core.Outcome, error)
	Replay(ctx context.Context, eventID string) (core.Outcome, error)
}

type ProcessWebhookCommand struct {
	service WebhookService
}

func NewProcessWebhookCommand(service WebhookService) *ProcessWebhookCommand {
	return &ProcessWebhookCommand{service: service}
}

// Execute stores the outcome before returning, including on failure, so
// callers can report the state the delivery reached.
func (c *ProcessWebhookCommand) Execute(ctx context.Context, msg ProcessWebhookMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	out, err := c.service.Process(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

type ReplayEventCommand struct {
	service WebhookService
}

func NewReplayEventCommand(service WebhookService) *ReplayEventCommand {
	return &ReplayEventCommand{service: service}
}

func (c *ReplayEventCommand) Execute(ctx context.Context, msg ReplayEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Replay(ctx, strings.TrimSpace(msg.EventID))
	storeResult(ctx, out)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
