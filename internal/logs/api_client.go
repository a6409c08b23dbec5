package logs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scott/internal/api"
	"scott/internal/logtail"
)

// ErrAPIUnavailable reports that no server answered at the configured bind.
var ErrAPIUnavailable = errors.New("log API unavailable")

// Client talks to the log endpoints of a running server.
type Client struct {
	base *url.URL
	http *http.Client
	// stream has no timeout; follow blocks until the caller cancels.
	stream *http.Client
}

// StreamQuery carries the optional parameters of a snapshot or stream.
type StreamQuery struct {
	MaxLines *int
	Interval *int
}

// StreamEvent is one frame received from /api/log/stream.
type StreamEvent struct {
	Name     string
	Snapshot logtail.Snapshot
	Error    string
	ID       string
}

// NewClient builds a client for bind. An empty bind yields a nil client whose
// calls return ErrAPIUnavailable.
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	if host, port, err := net.SplitHostPort(base.Host); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		base.Host = net.JoinHostPort("127.0.0.1", port)
	}

	return &Client{
		base:   base,
		http:   &http.Client{Timeout: 10 * time.Second},
		stream: &http.Client{},
	}, nil
}

// Snapshot fetches the current tail of the monitored file.
func (c *Client) Snapshot(ctx context.Context, q StreamQuery) (logtail.Snapshot, error) {
	var snap logtail.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/log/", q.values(), &snap)
	return snap, err
}

// Info fetches file metadata. A missing file is not an error; the returned
// info has Exists false.
func (c *Client) Info(ctx context.Context) (logtail.FileInfo, error) {
	var info logtail.FileInfo
	err := c.do(ctx, http.MethodGet, "/api/log/info", nil, &info)
	var status *StatusError
	if errors.As(err, &status) && status.Code == http.StatusNotFound && info.FilePath != "" {
		return info, nil
	}
	return info, err
}

// Status fetches the server's runtime status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// Sessions lists live log sessions.
func (c *Client) Sessions(ctx context.Context) ([]api.LogSession, error) {
	var sessions []api.LogSession
	err := c.do(ctx, http.MethodGet, "/api/log/sessions", nil, &sessions)
	return sessions, err
}

// StopSession ends the session with id.
func (c *Client) StopSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/log/sessions/"+url.PathEscape(id), nil, nil)
}

// Follow opens the event stream and calls fn for each frame until ctx is
// cancelled, the server ends the stream, or fn returns an error.
func (c *Client) Follow(ctx context.Context, q StreamQuery, fn func(StreamEvent) error) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.endpoint("/api/log/stream", q.values())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeStatusError(resp)
	}

	err = readEvents(resp.Body, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// StatusError is a non-2xx envelope returned by the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// IsAPIUnavailable reports whether err means no server could be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}

func (q StreamQuery) values() url.Values {
	values := url.Values{}
	if q.MaxLines != nil {
		values.Set("max_lines", strconv.Itoa(*q.MaxLines))
	}
	if q.Interval != nil {
		values.Set("interval", strconv.Itoa(*q.Interval))
	}
	return values
}

func (c *Client) endpoint(path string, values url.Values) string {
	ref := &url.URL{Path: path}
	if len(values) > 0 {
		ref.RawQuery = values.Encode()
	}
	return c.base.ResolveReference(ref).String()
}

// do issues a request and decodes the envelope's data into out when out is
// non-nil. Non-2xx replies become *StatusError; the data is still decoded so
// callers can inspect it.
func (c *Client) do(ctx context.Context, method, path string, values url.Values, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, values), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env api.RawResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", path, err)
		}
	}
	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: env.Message}
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	var env api.RawResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return &StatusError{Code: resp.StatusCode}
	}
	return &StatusError{Code: resp.StatusCode, Message: env.Message}
}

// readEvents parses a text/event-stream body. Comment lines and unknown
// fields are ignored.
func readEvents(body io.Reader, fn func(StreamEvent) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var name string
	var data strings.Builder
	dispatch := func() error {
		defer func() {
			name = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return nil
		}
		event, err := decodeEvent(name, data.String())
		if err != nil {
			return err
		}
		return fn(event)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return dispatch()
}

func decodeEvent(name, data string) (StreamEvent, error) {
	event := StreamEvent{Name: name}
	switch name {
	case "", "message":
		event.Name = api.EventLogUpdate
		if err := json.Unmarshal([]byte(data), &event.Snapshot); err != nil {
			return event, fmt.Errorf("decode log update: %w", err)
		}
	case api.EventLogError:
		var payload api.LogError
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return event, fmt.Errorf("decode log error: %w", err)
		}
		event.Error = payload.Error
	case api.EventSubscribed:
		var payload api.Subscribed
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return event, fmt.Errorf("decode subscription: %w", err)
		}
		event.ID = payload.ID
	}
	return event, nil
}
