// Package logger provides structured logging for the bidder and the API.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with bidding-specific helpers
type Logger struct {
	*slog.Logger
}

// New creates a logger for the environment: text output in development, JSON otherwise
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(env string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything; used in tests
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithRun returns a logger tagged with the run and portal
func (l *Logger) WithRun(runID, portal string) *Logger {
	return &Logger{Logger: l.With(slog.String("run_id", runID), slog.String("portal", portal))}
}

// WithPortal returns a logger tagged with the portal
func (l *Logger) WithPortal(portal string) *Logger {
	return &Logger{Logger: l.With(slog.String("portal", portal))}
}

// SubmissionFailed logs a per-opportunity failure that does not stop the run
func (l *Logger) SubmissionFailed(opportunityID, productCode string, err error) {
	l.Warn("submission_failed",
		slog.String("opportunity_id", opportunityID),
		slog.String("product_code", productCode),
		slog.String("error", err.Error()),
	)
}

// AttachmentMissing logs an absent image or datasheet; the offer goes out without it
func (l *Logger) AttachmentMissing(productCode, kind, path string, err error) {
	l.Warn("attachment_missing",
		slog.String("product_code", productCode),
		slog.String("kind", kind),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogWriteFailed logs a submission whose record did not persist.
// The offer is already on the portal, so this is logged at error level.
func (l *Logger) LogWriteFailed(opportunityID, productCode string, err error) {
	l.Error("submission_log_write_failed",
		slog.String("opportunity_id", opportunityID),
		slog.String("product_code", productCode),
		slog.String("error", err.Error()),
	)
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// RateLimitExceeded logs a request rejected by the per-client limiter
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
