// Package daemon runs the long-lived scott server process.
//
// It wires configuration, the records store and the log tail service into a
// single lifecycle with flock-based locking to prevent multiple instances.
// The HTTP surface is a gorilla/mux router serving:
//
//   - the records CRUD endpoints under /api/{dept,emp,bonus,salgrade,customer}
//   - pull-once log reads (/api/log/, /api/log/info)
//   - the server-sent event stream /api/log/stream
//   - the WebSocket channel /ws/logs
//   - operator endpoints (/api/status, /api/log/sessions, /metrics)
//
// Every JSON response uses the api.Response envelope. Streaming transports
// adapt their connection to logtail.Sink and hand it to the log service;
// the service owns the polling goroutine, the transport owns the socket.
//
// Stop ends every log session before the HTTP server shuts down so open
// streams finish promptly.
package daemon
