// Package logtail watches a single log file and pushes snapshots of its tail
// to any number of independent subscribers.
//
// ReadSnapshot captures size, modification time and the last N lines in one
// pass. Each subscriber gets its own polling session: a goroutine that
// re-reads the file every interval and emits through a Sink only when the
// file size moved. Sessions live in a Registry keyed by subscriber id, which
// serializes start and stop per id and bounds how long a stop waits for the
// goroutine to exit.
//
// Change detection compares sizes only. A file truncated and regrown to the
// exact previous size between two polls is not reported.
//
// Transports (SSE, WebSocket, plain HTTP) go through Service and never touch
// sessions directly.
package logtail
