package logging

import (
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts typed attrs into the variadic any form slog methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// FieldComponent identifies the subsystem emitting a record.
const FieldComponent = "component"

// FieldEventType is the standardized key for machine-readable event names.
const FieldEventType = "event_type"

// FieldErrorHint is the standardized key for operator guidance on failures.
const FieldErrorHint = "error_hint"

// Keys shared by the scan pipeline so records correlate across components.
const (
	FieldScanID    = "scan_id"
	FieldShowKey   = "show_key"
	FieldShowTitle = "show_title"
	FieldScanMode  = "scan_mode"
	FieldScanTier  = "scan_tier"
)

// NewNop returns a logger that discards every record.
func NewNop() *slog.Logger {
	return slog.New(noopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// A nil base falls back to a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}
