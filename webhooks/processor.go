package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// NoopResult is stored for events whose reference does not resolve.
var NoopResult = json.RawMessage(`{"handled":"no_op","reason":"reference_not_resolved"}`)

type Processor struct {
	Verifier     Verifier
	Store        core.IdempotencyStore
	EventLog     core.EventLog
	Resolver     core.DetailResolver
	Mapper       core.InvoiceMapper
	Submitter    core.InvoiceSubmitter
	SecretHeader string
	Logger       core.Logger
	Metrics      core.MetricsRecorder
	Now          func() time.Time
	NewID        func() string
}

func NewProcessor(
	store core.IdempotencyStore,
	resolver core.DetailResolver,
	mapper core.InvoiceMapper,
	submitter core.InvoiceSubmitter,
) *Processor {
	return &Processor{
		Store:        store,
		Resolver:     resolver,
		Mapper:       mapper,
		Submitter:    submitter,
		SecretHeader: core.DefaultWebhookSecretHeader,
		Logger:       glog.Nop(),
		Metrics:      core.NopMetricsRecorder{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
}

// Process runs one delivery through the pipeline. Duplicates return a
// rejected outcome with a nil error.
func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.Outcome, error) {
	startedAt := time.Now()
	if err := p.validate(); err != nil {
		return core.Outcome{State: core.PipelineStateFailed}, err
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			outcome := core.Outcome{State: core.PipelineStateRejected}
			p.observe(ctx, startedAt, "process", outcome, err, nil)
			return outcome, err
		}
	}

	event, skipped, err := ParseEvent(req.Body)
	if err != nil {
		// Undecodable bodies are still audited, without a processing record.
		event = core.InboundEvent{RawPayload: auditPayload(req.Body)}
	}
	event.ReceivedAt = req.ReceivedAt
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = p.now()
	}
	if strings.TrimSpace(event.EventID) == "" {
		event.EventID = core.SynthesizedEventIDPrefix + p.newID()
		event.Synthesized = true
	}

	logID := p.appendEvent(ctx, event, req.Headers)
	if err != nil {
		p.setOutcome(ctx, logID, core.EventOutcomeFailed)
		outcome := core.Outcome{EventID: event.EventID, State: core.PipelineStateFailed}
		p.observe(ctx, startedAt, "process", outcome, err, eventFields(event))
		return outcome, err
	}
	p.logSkipped(ctx, event.EventID, skipped)

	outcome := core.Outcome{EventID: event.EventID, State: core.PipelineStateClaiming}
	claim, err := p.Store.Claim(ctx, core.ClaimInput{
		EventID:    event.EventID,
		PropertyID: event.PropertyID,
		RawPayload: event.RawPayload,
	})
	if err != nil {
		outcome.State = core.PipelineStateFailed
		p.setOutcome(ctx, logID, core.EventOutcomeFailed)
		p.observe(ctx, startedAt, "process", outcome, err, eventFields(event))
		return outcome, err
	}
	if !claim.Claimed {
		outcome.State = core.PipelineStateRejected
		outcome.Duplicate = true
		p.setOutcome(ctx, logID, core.EventOutcomeDuplicate)
		p.observe(ctx, startedAt, "process", outcome, nil, eventFields(event))
		return outcome, nil
	}
	outcome.Status = core.ProcessingStatusReceived

	outcome, err = p.run(ctx, event, outcome)
	p.setOutcome(ctx, logID, logOutcome(outcome, err))
	p.observe(ctx, startedAt, "process", outcome, err, eventFields(event))
	return outcome, err
}

// Replay reprocesses a failed event from its stored payload. Only records in
// the failed status can be replayed.
func (p *Processor) Replay(ctx context.Context, eventID string) (core.Outcome, error) {
	startedAt := time.Now()
	eventID = strings.TrimSpace(eventID)
	outcome := core.Outcome{EventID: eventID, State: core.PipelineStateClaiming}
	if eventID == "" {
		outcome.State = core.PipelineStateFailed
		return outcome, core.NewBadInputError("webhooks: event id is required", nil)
	}
	if err := p.validate(); err != nil {
		outcome.State = core.PipelineStateFailed
		return outcome, err
	}
	store, ok := p.Store.(core.ReclaimableStore)
	if !ok {
		outcome.State = core.PipelineStateFailed
		return outcome, core.NewUnsupportedError("webhooks: store does not support replay", nil)
	}

	record, reclaimed, err := store.Reclaim(ctx, eventID)
	if err != nil {
		outcome.State = core.PipelineStateFailed
		p.observe(ctx, startedAt, "replay", outcome, err, map[string]any{"event_id": eventID})
		return outcome, err
	}
	if !reclaimed {
		outcome.State = core.PipelineStateRejected
		outcome.Status = record.Status
		err := core.NewInvalidTransitionError(
			fmt.Sprintf("webhooks: event %q is %s, only failed events can be replayed", eventID, record.Status),
			map[string]any{"event_id": eventID, "status": string(record.Status)},
		)
		p.observe(ctx, startedAt, "replay", outcome, err, map[string]any{"event_id": eventID})
		return outcome, err
	}

	event, skipped, err := ParseEvent(record.RawPayload)
	if err != nil {
		// Stored payload was accepted once; a decode failure here is final.
		p.recordFailure(ctx, eventID, err)
		outcome.State = core.PipelineStateFailed
		outcome.Status = core.ProcessingStatusFailed
		p.observe(ctx, startedAt, "replay", outcome, err, map[string]any{"event_id": eventID})
		return outcome, err
	}
	p.logSkipped(ctx, record.EventID, skipped)
	event.EventID = record.EventID
	event.Synthesized = strings.HasPrefix(record.EventID, core.SynthesizedEventIDPrefix)
	if event.PropertyID == "" {
		event.PropertyID = record.PropertyID
	}
	event.ReceivedAt = p.now()

	outcome.Status = core.ProcessingStatusReceived
	outcome, err = p.run(ctx, event, outcome)
	p.observe(ctx, startedAt, "replay", outcome, err, eventFields(event))
	return outcome, err
}

func (p *Processor) run(ctx context.Context, event core.InboundEvent, outcome core.Outcome) (core.Outcome, error) {
	outcome.State = core.PipelineStateResolving
	detail, err := p.Resolver.ResolveByReference(ctx, event.ReferenceID, event.PropertyID)
	if err != nil {
		return p.fail(ctx, outcome, err)
	}
	if detail == nil {
		p.log(ctx, "info", "webhook reference not resolved", eventFields(event))
		return p.record(ctx, outcome, NoopResult)
	}

	outcome.State = core.PipelineStateMapping
	payload := p.Mapper.MapToInvoice(event, detail)

	outcome.State = core.PipelineStateSubmitting
	result, err := p.Submitter.SubmitInvoice(ctx, payload)
	if err != nil {
		return p.fail(ctx, outcome, err)
	}
	outcome.Submitted = true
	return p.record(ctx, outcome, result)
}

// record marks the event sent. A failure here leaves the record in received,
// so redelivery stays deduplicated and the submission is not repeated.
func (p *Processor) record(ctx context.Context, outcome core.Outcome, result json.RawMessage) (core.Outcome, error) {
	outcome.State = core.PipelineStateRecording
	outcome.Result = result
	if err := p.Store.Record(context.WithoutCancel(ctx), outcome.EventID, core.ProcessingStatusSent, result, ""); err != nil {
		outcome.State = core.PipelineStateFailed
		p.log(ctx, "error", "webhook result not recorded", map[string]any{
			"event_id":  outcome.EventID,
			"submitted": outcome.Submitted,
			"error":     err.Error(),
		})
		return outcome, err
	}
	outcome.State = core.PipelineStateDone
	outcome.Status = core.ProcessingStatusSent
	return outcome, nil
}

func (p *Processor) fail(ctx context.Context, outcome core.Outcome, cause error) (core.Outcome, error) {
	failedAt := outcome.State
	outcome.State = core.PipelineStateFailed
	if p.recordFailure(ctx, outcome.EventID, cause) {
		outcome.Status = core.ProcessingStatusFailed
	}
	p.log(ctx, "warn", "webhook processing failed", map[string]any{
		"event_id": outcome.EventID,
		"stage":    string(failedAt),
		"error":    cause.Error(),
	})
	return outcome, cause
}

func (p *Processor) recordFailure(ctx context.Context, eventID string, cause error) bool {
	message := cause.Error()
	if code := core.TextCode(cause); code != "" {
		message = code + ": " + message
	}
	if err := p.Store.Record(context.WithoutCancel(ctx), eventID, core.ProcessingStatusFailed, nil, message); err != nil {
		p.log(ctx, "error", "webhook failure not recorded", map[string]any{
			"event_id": eventID,
			"error":    err.Error(),
		})
		return false
	}
	return true
}

func (p *Processor) appendEvent(ctx context.Context, event core.InboundEvent, headers map[string]string) string {
	if p.EventLog == nil {
		return ""
	}
	id, err := p.EventLog.Append(ctx, core.EventLogEntry{
		EventID:     event.EventID,
		PropertyID:  event.PropertyID,
		Synthesized: event.Synthesized,
		Headers:     redactHeaders(headers, p.secretHeader()),
		RawPayload:  event.RawPayload,
		Outcome:     core.EventOutcomeReceived,
		ReceivedAt:  event.ReceivedAt,
	})
	if err != nil {
		p.log(ctx, "warn", "webhook event not logged", map[string]any{
			"event_id": event.EventID,
			"error":    err.Error(),
		})
		return ""
	}
	return id
}

func (p *Processor) setOutcome(ctx context.Context, logID string, outcome string) {
	if p.EventLog == nil || logID == "" {
		return
	}
	if err := p.EventLog.SetOutcome(context.WithoutCancel(ctx), logID, outcome); err != nil {
		p.log(ctx, "warn", "webhook event outcome not logged", map[string]any{
			"log_id":  logID,
			"outcome": outcome,
			"error":   err.Error(),
		})
	}
}

func (p *Processor) logSkipped(ctx context.Context, eventID string, skipped []FieldError) {
	for _, field := range skipped {
		p.log(ctx, "warn", "webhook field ignored", map[string]any{
			"event_id": eventID,
			"field":    field.Field,
			"error":    field.Err.Error(),
		})
	}
}

func (p *Processor) validate() error {
	if p == nil || p.Store == nil || p.Resolver == nil || p.Mapper == nil || p.Submitter == nil {
		return core.NewConfigurationError("webhooks: processor requires store, resolver, mapper and submitter", nil)
	}
	return nil
}

func (p *Processor) observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	outcome core.Outcome,
	err error,
	fields map[string]any,
) {
	merged := map[string]any{
		"state": string(outcome.State),
	}
	for key, value := range fields {
		merged[key] = value
	}
	if outcome.EventID != "" {
		merged["event_id"] = outcome.EventID
	}
	if outcome.Duplicate {
		merged["duplicate"] = true
	}
	core.NewObserver("folio.webhook", p.Logger, p.Metrics).
		Observe(ctx, startedAt, operation, string(outcome.State), err, merged)
}

func (p *Processor) log(ctx context.Context, level string, message string, fields map[string]any) {
	core.NewObserver("folio.webhook", p.Logger, p.Metrics).Log(ctx, level, message, fields)
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) newID() string {
	if p != nil && p.NewID != nil {
		if id := strings.TrimSpace(p.NewID()); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func (p *Processor) secretHeader() string {
	if header := strings.TrimSpace(p.SecretHeader); header != "" {
		return header
	}
	return core.DefaultWebhookSecretHeader
}

func eventFields(event core.InboundEvent) map[string]any {
	fields := map[string]any{
		"event_id": event.EventID,
	}
	if event.PropertyID != "" {
		fields["property_id"] = event.PropertyID
	}
	if event.Synthesized {
		fields["synthesized"] = true
	}
	return fields
}

func logOutcome(outcome core.Outcome, err error) string {
	switch {
	case err != nil:
		return core.EventOutcomeFailed
	case outcome.Submitted:
		return core.EventOutcomeSent
	default:
		return core.EventOutcomeNoop
	}
}
