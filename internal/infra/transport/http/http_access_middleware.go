package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/mkrupp/eventhub/internal/infra/logging"
)

var (
	// ErrPanic wraps values recovered from panicking handlers.
	ErrPanic = errors.New("panic")

	errNotHijacker = errors.New("response writer does not support hijacking")
)

// statusWriter records the status and size of a response.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

var (
	_ http.Hijacker = (*statusWriter)(nil)
	_ http.Flusher  = (*statusWriter)(nil)
)

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n

	return n, err //nolint:wrapcheck
}

// Hijack lets websocket upgrades pass through.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errNotHijacker
	}

	w.status = http.StatusSwitchingProtocols

	return hijacker.Hijack() //nolint:wrapcheck
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// AccessLog logs every response, at warn level for client errors and at
// error level for server errors.
func AccessLog(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK, written: 0}

			next.ServeHTTP(sw, r)

			level := logging.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				level = logging.LevelError
			} else if sw.status >= http.StatusBadRequest {
				level = logging.LevelWarn
			}

			log.Log(r.Context(), level, "response", logging.Group("http",
				"method", r.Method,
				"uri", r.RequestURI,
				"status", sw.status,
				"bytes", sw.written,
				"duration", time.Since(start),
			))
		})
	}
}

// Recovering turns a panicking handler into a 500 response.
func Recovering(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer recoverRequest(r.Context(), log, w, r)

			next.ServeHTTP(w, r)
		})
	}
}

func recoverRequest(ctx context.Context, log logging.Logger, w http.ResponseWriter, r *http.Request) {
	p := recover()
	if p == nil {
		return
	}

	if p == http.ErrAbortHandler { //nolint:errorlint,err113
		panic(p)
	}

	log.ErrorContext(ctx, "handler panicked",
		logging.Group("http", "method", r.Method, "uri", r.RequestURI),
		"panic", p,
		"stack", string(debug.Stack()),
	)

	WriteError(w, fmt.Errorf("%w: %v", ErrPanic, p))
}

// RequestLogger returns log annotated with the method and path of r.
func RequestLogger(log logging.Logger, r *http.Request) logging.Logger {
	return log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))
}

// LogResult logs the outcome of a handler. Errors the client caused are
// logged at warn level, all others at error level.
func LogResult(ctx context.Context, log logging.Logger, err error, msg string) {
	if err == nil {
		log.DebugContext(ctx, msg+" done")

		return
	}

	if status, _ := StatusOf(err); status < http.StatusInternalServerError {
		log.WarnContext(ctx, msg+" failed", "error", err)
	} else {
		log.ErrorContext(ctx, msg+" failed", "error", err)
	}
}
