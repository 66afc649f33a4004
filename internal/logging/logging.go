// Package logging provides the structured, level-tagged logger shared by
// every server component, routed to the LSP transport's log channel once a
// client connection exists and to stderr before that.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/tliron/glsp"
)

// Tag is one of the four literal log-message tags the transport surfaces.
type Tag string

const (
	TagInfo Tag = "[INFO]"
	TagWarn Tag = "[WARN]"
	TagPerf Tag = "[PERF]"
	TagLog  Tag = "[LOG]"
)

// instanceID distinguishes log lines from concurrent server instances during
// local debugging (multiple TCP-mode servers on one machine).
var instanceID = xid.New().String()

// notifyWriter turns zerolog output into window/logMessage notifications.
// Before a *glsp.Context is attached it falls back to stderr so startup and
// flag-parsing errors are never silently dropped.
type notifyWriter struct {
	mu       sync.RWMutex
	ctx      *glsp.Context
	fallback io.Writer
}

func (w *notifyWriter) Attach(ctx *glsp.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctx = ctx
}

func (w *notifyWriter) SetFallback(out io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fallback = out
}

func (w *notifyWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	ctx := w.ctx
	fallback := w.fallback
	w.mu.RUnlock()

	if ctx == nil || ctx.Notify == nil {
		if fallback == nil {
			fallback = os.Stderr
		}
		return fallback.Write(p)
	}

	ctx.Notify("window/logMessage", map[string]interface{}{
		"type":    3, // Info; the tag prefix in the message carries real severity
		"message": string(p),
	})
	return len(p), nil
}

var sink = &notifyWriter{}

// Logger is the process-wide zerolog logger. Every message is written with
// one of the four tags as a prefix, matching the transport's historical
// plaintext log convention.
var Logger = zerolog.New(sink).With().Timestamp().Str("instance", instanceID).Logger()

// Attach connects the logger to a live LSP context so subsequent messages
// are delivered as window/logMessage notifications instead of stderr.
func Attach(ctx *glsp.Context) {
	sink.Attach(ctx)
}

// Info logs an [INFO]-tagged message.
func Info(msg string) { Logger.Info().Msg(string(TagInfo) + " " + msg) }

// Warn logs a [WARN]-tagged message.
func Warn(msg string, err error) {
	e := Logger.Warn()
	if err != nil {
		e = e.Err(err)
	}
	e.Msg(string(TagWarn) + " " + msg)
}

// Perf logs a [PERF]-tagged message, e.g. request timing.
func Perf(msg string) { Logger.Info().Bool("perf", true).Msg(string(TagPerf) + " " + msg) }

// Debug logs a [LOG]-tagged debug message.
func Debug(msg string) { Logger.Debug().Msg(string(TagLog) + " " + msg) }

// SetOutput redirects the fallback (pre-attach) writer, used by the CLI's
// -log-file flag.
func SetOutput(w io.Writer) {
	sink.SetFallback(w)
}

// SetLevel parses the CLI's -log-level flag ("debug", "info", "warn",
// "error") and applies it globally; an unrecognized value leaves
// zerolog's global level untouched, and zerolog's default does not filter
// out debug messages.
func SetLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(parsed)
}
