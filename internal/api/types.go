package api

import (
	"encoding/json"
	"time"

	"scott/internal/records"
)

// Response is the envelope every JSON endpoint answers with. Code mirrors
// the HTTP status.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RawResponse is Response as seen by a client that decodes Data lazily.
type RawResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// CustomerList wraps a page of customers.
type CustomerList struct {
	Customers  []records.Customer `json:"customers"`
	Pagination Pagination         `json:"pagination"`
}

// DaemonStatus aggregates server runtime information for API consumers.
type DaemonStatus struct {
	Running        bool   `json:"running"`
	PID            int    `json:"pid"`
	Bind           string `json:"bind"`
	DatabasePath   string `json:"database_path"`
	DatabaseOK     bool   `json:"database_ok"`
	DatabaseDetail string `json:"database_detail,omitempty"`
	LockFilePath   string `json:"lock_file_path"`
	ServerLogPath  string `json:"server_log_path"`
	MonitoredFile  string `json:"monitored_file"`
	LogSessions    int    `json:"log_sessions"`
}

// LogSession describes a live log monitoring session.
type LogSession struct {
	ID              string    `json:"id"`
	MaxLines        int       `json:"max_lines"`
	IntervalSeconds float64   `json:"interval_seconds"`
	StartedAt       time.Time `json:"started_at"`
	Emitted         int64     `json:"emitted"`
	LastSize        int64     `json:"last_size"`
	State           string    `json:"state"`
}

// LogError is the payload of a log_error event.
type LogError struct {
	Error string `json:"error"`
}

// Subscribed is the payload of the SSE subscribed event.
type Subscribed struct {
	ID string `json:"id"`
}

// Event names used by the streaming transports.
const (
	EventStartLogMonitor = "start_log_monitor"
	EventStopLogMonitor  = "stop_log_monitor"
	EventGetLog          = "get_log"
	EventLogUpdate       = "log_update"
	EventLogError        = "log_error"
	EventLogContent      = "log_content"
	EventAck             = "ack"
	EventSubscribed      = "subscribed"
)

// SocketMessage is the frame exchanged over /ws/logs. Ref is echoed back on
// replies so clients can correlate them with requests.
type SocketMessage struct {
	Event string          `json:"event"`
	Ref   string          `json:"ref,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MonitorRequest carries the optional parameters of start_log_monitor and
// get_log.
type MonitorRequest struct {
	MaxLines *int `json:"max_lines,omitempty"`
	Interval *int `json:"interval,omitempty"`
}

// Ack answers a control event.
type Ack struct {
	Request string `json:"request"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Ack statuses.
const (
	AckSuccess = "success"
	AckError   = "error"
)
