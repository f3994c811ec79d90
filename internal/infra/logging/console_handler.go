package logging

import (
	"context"
	"io"
	"log/slog"
	"path"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	ansiReset     = "\033[0m"
	ansiRed       = "\033[31m"
	ansiGreen     = "\033[32m"
	ansiYellow    = "\033[33m"
	ansiCyan      = "\033[36m"
	ansiGray      = "\033[90m"
	ansiUnderline = "\033[4m"
)

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiGreen
	default:
		return ansiCyan
	}
}

// ConsoleHandler writes colored single-line records for terminals.
type ConsoleHandler struct {
	Output io.Writer
	Level  slog.Leveler
	// PkgLevels maps logger names to minimum log levels. A name matches its
	// own entry or the closest dotted parent; "" matches every logger.
	PkgLevels map[string]slog.Level
	// Source appends the calling function and file to each record.
	Source bool

	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

//nolint:gochecknoglobals
var consoleM sync.Mutex

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := slices.Clone(h.attrs)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if r.Level < h.pkgLevel(attrs) {
		return nil
	}

	var b strings.Builder

	b.WriteString(ansiGray + r.Time.Format("15:04:05.000") + ansiReset + " ")
	b.WriteString(levelColor(r.Level) + r.Level.String() + ansiReset + " ")
	b.WriteString(r.Message)

	if len(attrs) > 0 {
		prefix := ""
		if len(h.groups) > 0 {
			prefix = strings.Join(h.groups, ".") + "."
		}

		b.WriteString(ansiGray + " |" + ansiReset)
		writeAttrs(&b, prefix, attrs)
	}

	if h.Source && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		b.WriteString("\n  " + ansiGray + path.Base(frame.Function) + "() " +
			ansiUnderline + frame.File + ":" + strconv.Itoa(frame.Line) + ansiReset)
	}

	b.WriteByte('\n')

	consoleM.Lock()
	defer consoleM.Unlock()

	_, err := io.WriteString(h.Output, b.String())

	return err //nolint:wrapcheck
}

// pkgLevel returns the minimum level configured for the logger named in attrs.
func (h *ConsoleHandler) pkgLevel(attrs []slog.Attr) slog.Level {
	var name string

	for _, attr := range attrs {
		if attr.Key == loggerNameKey {
			name = attr.Value.String()

			break
		}
	}

	for {
		if level, ok := h.PkgLevels[name]; ok {
			return level
		}

		if name == "" {
			return slog.LevelDebug
		}

		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			name = name[:idx]
		} else {
			name = ""
		}
	}
}

func writeAttrs(b *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			writeAttrs(b, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		b.WriteString(" " + prefix + attr.Key + "=" + ansiGray + attr.Value.String() + ansiReset)
	}
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	c := *h

	return &c
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	c := h.clone()
	c.attrs = append(slices.Clip(h.attrs), attrs...)

	return c
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	c := h.clone()
	c.groups = append(slices.Clip(h.groups), name)

	return c
}

// Enabled implements slog.Handler.Enabled.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.Level.Level() <= level
}
