// Package logging configures log/slog for the services and clients. Loggers
// are named after their package path ("svc.authsvc", "client.signup") and
// can be filtered per name.
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

const loggerNameKey = "logger"

type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// Output is "stdout", "stderr", "discard" or the path of a file to append to.
	Output string `env:"OUTPUT" default:"stderr"`

	// Level is the minimum level: debug, info, warn or error.
	Level string `env:"LEVEL" default:"info"`

	// Filter overrides the level per logger name, e.g. "svc:warn,client.signup:debug".
	Filter string `env:"FILTER" default:""`

	// JSON switches from the console format to JSON lines.
	JSON bool `env:"JSON" default:"false"`

	// Source adds the caller to each record.
	Source bool `env:"SOURCE" default:"false"`

	// OutputHandle replaces Output when set.
	OutputHandle io.Writer
}

//nolint:gochecknoglobals
var (
	Group = slog.Group

	rootM sync.Mutex
	root  slog.Handler
)

// Configure installs the handler every logger obtained afterwards writes to.
// Loggers obtained before Configure discard their records.
func Configure(ctx context.Context, cfg LoggerConfig, appName string) {
	handler := newHandler(cfg)
	if appName != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("app", appName)})
	}

	rootM.Lock()
	root = handler
	rootM.Unlock()

	slog.SetLogLoggerLevel(parseLevel(cfg.Level, LevelInfo))

	GetLogger("infra.logging").DebugContext(ctx, "logging configured", Group("config",
		"output", cfg.Output,
		"level", cfg.Level,
		"filter", cfg.Filter,
		"json", cfg.JSON,
	))
}

func newHandler(cfg LoggerConfig) slog.Handler {
	output := cfg.OutputHandle
	if output == nil {
		output = openOutput(cfg.Output)
	}

	if output == io.Discard {
		return discardHandler{}
	}

	level := parseLevel(cfg.Level, LevelInfo)

	var handler slog.Handler

	if cfg.JSON {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{AddSource: cfg.Source, Level: level}) //nolint:exhaustruct
	} else {
		handler = &ConsoleHandler{ //nolint:exhaustruct
			Output:    output,
			Level:     level,
			PkgLevels: parseFilter(cfg.Filter),
			Source:    cfg.Source,
		}
	}

	return NewContextHandler(handler)
}

func openOutput(output string) io.Writer {
	switch output {
	case "", "discard":
		return io.Discard
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}

	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic(fmt.Errorf("open log file: %w", err))
	}

	return file
}

// GetLogger returns the logger called name.
func GetLogger(name string) Logger {
	rootM.Lock()
	handler := root
	rootM.Unlock()

	if handler == nil {
		return NewNopLogger()
	}

	return slog.New(handler).With(loggerNameKey, name)
}

// NewNopLogger returns a logger that discards every record.
func NewNopLogger() Logger {
	return slog.New(discardHandler{})
}

// GetLogLogger adapts logger for code that expects a *log.Logger.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	return slog.NewLogLogger(logger.With("stdlog", true).Handler(), level)
}

func parseFilter(filter string) map[string]Level {
	levels := make(map[string]Level)

	for _, entry := range strings.Split(filter, ",") {
		name, level, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if ok {
			levels[name] = parseLevel(level, LevelDebug)
		}
	}

	return levels
}

func parseLevel(s string, fallback Level) Level {
	var level Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return fallback
	}

	return level
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
