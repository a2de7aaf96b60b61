package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func TestObserver_SuccessEmitsCounterHistogramAndLog(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	observer := NewObserver("folio.webhook", logger, metrics)

	observer.Observe(context.Background(), time.Now().Add(-5*time.Millisecond), "Process", "done", nil, map[string]any{
		"event_id":    "tx1",
		"property_id": "p1",
	})

	if !hasCounter(metrics.counters, "folio.webhook.process.total", "done") {
		t.Fatalf("expected process counter, got %#v", metrics.counters)
	}
	if !hasHistogram(metrics.histograms, "folio.webhook.process.duration_ms", "done") {
		t.Fatalf("expected process histogram, got %#v", metrics.histograms)
	}
	if metrics.counters[0].tags["property_id"] != "p1" {
		t.Fatalf("expected property tag, got %#v", metrics.counters[0].tags)
	}
	if !hasLog(logger.snapshot(), "info", "process done", "process") {
		t.Fatalf("expected info log, got %#v", logger.snapshot())
	}
}

func TestObserver_FailureDefaultsStatus(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	NewObserver("", logger, metrics).Observe(context.Background(), time.Now(), "submit", "", errors.New("boom"), nil)

	if !hasCounter(metrics.counters, "folio.submit.total", "failure") {
		t.Fatalf("expected failure counter under default prefix, got %#v", metrics.counters)
	}
	if !hasLog(logger.snapshot(), "error", "submit failed", "submit") {
		t.Fatalf("expected error log")
	}
}

func TestObserver_DefaultsToNopMetrics(t *testing.T) {
	observer := NewObserver("folio.webhook", nil, nil)
	if _, ok := observer.Metrics.(NopMetricsRecorder); !ok {
		t.Fatalf("expected nop metrics recorder, got %T", observer.Metrics)
	}
	observer.Observe(context.Background(), time.Now(), "process", "done", nil, nil)
}

func TestCloneTags_ReturnsIndependentMap(t *testing.T) {
	if tags := cloneTags(nil); tags == nil {
		t.Fatalf("expected empty map for nil tags")
	}
	source := map[string]string{"operation": "process"}
	copied := cloneTags(source)
	copied["operation"] = "replay"
	if source["operation"] != "process" {
		t.Fatalf("expected source tags untouched, got %v", source)
	}
}

func TestObserver_EnrichesStructuredErrorFields(t *testing.T) {
	logger := newCaptureLogger()
	observer := NewObserver("folio.xubio", logger, nil)

	richErr := NewPermanentDownstreamError(nil, "xubio: invoice submission returned 400", map[string]any{
		"status_code":   400,
		"authorization": "Bearer secret",
	})
	observer.Observe(context.Background(), time.Now(), "submit", "failure", richErr, map[string]any{
		"event_id":     "tx1",
		"access_token": "tok",
	})

	records := logger.snapshot()
	if len(records) == 0 {
		t.Fatalf("expected logs to be emitted")
	}
	last := records[len(records)-1]
	if last.fields["error_category"] != string(goerrors.CategoryExternal) {
		t.Fatalf("expected external category, got %#v", last.fields["error_category"])
	}
	if last.fields["error_code"] != ErrorDownstreamPermanent {
		t.Fatalf("expected error_code %q, got %#v", ErrorDownstreamPermanent, last.fields["error_code"])
	}
	if last.fields["event_id"] != "tx1" || last.fields["access_token"] != RedactedValue {
		t.Fatalf("unexpected top-level fields: %#v", last.fields)
	}
	metadata, ok := last.fields["error_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected error_metadata map, got %#v", last.fields["error_metadata"])
	}
	if metadata["authorization"] != RedactedValue || metadata["status_code"] != 400 {
		t.Fatalf("unexpected metadata: %#v", metadata)
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["operation"] == eventType {
			return true
		}
	}
	return false
}
