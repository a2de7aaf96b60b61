package gologger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/goliatone/go-folio/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/sirupsen/logrus"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("folio", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("folio", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("folio", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestLogrusLoggerWritesFields(t *testing.T) {
	var out bytes.Buffer
	base := NewLogrus(core.LogConfig{Level: "debug", Format: "json"}, &out)
	provider := NewLogrusProvider(base)

	logger := provider.GetLogger("webhooks").WithContext(context.Background())
	logger.Info("event processed", "event_id", "tx1", "attempts", 2)

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", out.String(), err)
	}
	if line["msg"] != "event processed" || line["event_id"] != "tx1" || line["component"] != "webhooks" {
		t.Fatalf("unexpected log line: %#v", line)
	}
	if line["attempts"] != float64(2) {
		t.Fatalf("expected numeric field, got %#v", line["attempts"])
	}
}

func TestNewLogrus_LevelFallback(t *testing.T) {
	base := NewLogrus(core.LogConfig{Level: "loud"}, &bytes.Buffer{})
	if base.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %s", base.GetLevel())
	}

	var out bytes.Buffer
	quiet := NewLogrusLogger(NewLogrus(core.LogConfig{Level: "warn"}, &out))
	quiet.Info("hidden")
	quiet.Warn("shown", "dangling")
	if strings.Contains(out.String(), "hidden") || !strings.Contains(out.String(), "shown") {
		t.Fatalf("unexpected level filtering: %q", out.String())
	}
	if !strings.Contains(out.String(), "extra=dangling") {
		t.Fatalf("expected odd arg kept as extra field: %q", out.String())
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
