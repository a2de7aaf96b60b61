package gocommand

import (
	"context"
	"fmt"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	foliocommand "github.com/goliatone/go-folio/command"
	"github.com/goliatone/go-folio/core"
	folioquery "github.com/goliatone/go-folio/query"
)

// RegistryAdapter owns the go-command registry the folio handlers are
// registered on.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

// Initialize runs the registry resolvers once every handler is registered.
func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// Subscriptions groups the handles returned by RegisterHandlers.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterHandlers subscribes the webhook commands and record queries. The
// reader may be nil when the store cannot be inspected.
func RegisterHandlers(
	adapter *RegistryAdapter,
	service foliocommand.WebhookService,
	reader core.RecordReader,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: webhook service is required")
	}

	process := foliocommand.NewProcessWebhookCommand(service)
	replay := foliocommand.NewReplayEventCommand(service)
	handlers := []any{process, replay}
	subs := Subscriptions{
		commanddispatcher.SubscribeCommand[foliocommand.ProcessWebhookMessage](process, runnerOpts...),
		commanddispatcher.SubscribeCommand[foliocommand.ReplayEventMessage](replay, runnerOpts...),
	}
	if reader != nil {
		getRecord := folioquery.NewGetRecordQuery(reader)
		listRecords := folioquery.NewListRecordsQuery(reader)
		handlers = append(handlers, getRecord, listRecords)
		subs = append(subs,
			commanddispatcher.SubscribeQuery[folioquery.GetRecordMessage, core.ProcessingRecord](getRecord, runnerOpts...),
			commanddispatcher.SubscribeQuery[folioquery.ListRecordsMessage, []core.ProcessingRecord](listRecords, runnerOpts...),
		)
	}

	for _, handler := range handlers {
		if err := adapter.registry.RegisterCommand(handler); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	return subs, nil
}

// ReplayEvent dispatches a replay and returns the stored outcome.
func ReplayEvent(ctx context.Context, eventID string) (core.Outcome, error) {
	return dispatchForOutcome(ctx, foliocommand.ReplayEventMessage{EventID: eventID})
}

// Query dispatches a registered record query.
func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func dispatchForOutcome[T any](ctx context.Context, msg T) (core.Outcome, error) {
	collector := command.NewResult[core.Outcome]()
	err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, collector), msg)
	outcome, _ := collector.Load()
	return outcome, err
}
