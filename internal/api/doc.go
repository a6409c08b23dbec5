// Package api defines the wire-format types shared by the HTTP server and
// the CLI client.
//
// # Key Types
//
// Response/RawResponse: the {code, message, data} envelope every JSON
// endpoint uses. Code mirrors the HTTP status.
//
// CustomerList/Pagination: paged customer listings.
//
// DaemonStatus: server runtime information for `scott status`.
//
// LogSession: operator view of a live log monitoring session.
//
// SocketMessage/MonitorRequest/Ack: the /ws/logs event protocol. Clients send
// start_log_monitor, stop_log_monitor and get_log; the server answers with
// ack, log_content, log_update and log_error.
//
// # Converters
//
// FromSessionInfo: logtail.SessionInfo -> LogSession.
//
// FromCustomerPage: records.CustomerPage -> CustomerList.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the record payloads. Timestamps
// are RFC 3339.
package api
