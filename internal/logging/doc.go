// Package logging builds the slog loggers used across plexparity and
// standardizes the attribute vocabulary components log with.
//
// Construct loggers through New or NewFromConfig; use NewComponentLogger to
// derive a per-component child. The console handler renders compact,
// optionally colored lines for interactive use, while the json format emits
// one object per record for log shipping. Tests should use NewNop.
package logging
