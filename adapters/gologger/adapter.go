package gologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-folio/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/sirupsen/logrus"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// LogrusLogger adapts a logrus entry to glog.Logger. Key/value args become
// logrus fields.
type LogrusLogger struct {
	entry *logrus.Entry
}

func NewLogrusLogger(base *logrus.Logger) *LogrusLogger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(base)}
}

func (l *LogrusLogger) Trace(msg string, args ...any) { l.with(args).Trace(msg) }
func (l *LogrusLogger) Debug(msg string, args ...any) { l.with(args).Debug(msg) }
func (l *LogrusLogger) Info(msg string, args ...any)  { l.with(args).Info(msg) }
func (l *LogrusLogger) Warn(msg string, args ...any)  { l.with(args).Warn(msg) }
func (l *LogrusLogger) Error(msg string, args ...any) { l.with(args).Error(msg) }
func (l *LogrusLogger) Fatal(msg string, args ...any) { l.with(args).Fatal(msg) }

func (l *LogrusLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &LogrusLogger{entry: l.entry.WithContext(ctx)}
}

// Named returns a logger tagged with a component field.
func (l *LogrusLogger) Named(name string) *LogrusLogger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &LogrusLogger{entry: l.entry.WithField("component", name)}
}

func (l *LogrusLogger) with(args []any) *logrus.Entry {
	if len(args) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			fields["extra"] = args[i]
			break
		}
		fields[key] = args[i+1]
	}
	return l.entry.WithFields(fields)
}

// LogrusProvider hands out component loggers sharing one logrus instance.
type LogrusProvider struct {
	root *LogrusLogger
}

func NewLogrusProvider(base *logrus.Logger) *LogrusProvider {
	return &LogrusProvider{root: NewLogrusLogger(base)}
}

func (p *LogrusProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	return p.root.Named(name)
}

// NewLogrus builds a logrus instance from the log config. Unknown levels fall
// back to info.
func NewLogrus(cfg core.LogConfig, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

var (
	_ glog.Logger         = (*LogrusLogger)(nil)
	_ glog.LoggerProvider = (*LogrusProvider)(nil)
)
