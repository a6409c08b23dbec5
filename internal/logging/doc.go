// Package logging assembles the structured slog loggers used by the scott
// server and CLI.
//
// It owns the console and JSON handlers, level parsing, output fan-out to
// stdout plus the server log file, and a handful of attribute helpers so call
// sites stay terse. A no-op logger is provided for tests and for wiring code
// that cannot fail.
//
// The server's own log file is usually the file the log monitor tails, so the
// console format is kept line-oriented and stable.
package logging
