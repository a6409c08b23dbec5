package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"scott/internal/api"
	"scott/internal/logging"
	"scott/internal/logtail"
)

const sseWriteTimeout = 10 * time.Second

var errStreamClosed = errors.New("event stream closed")

// sseSink frames snapshots as server-sent events on one response.
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu     sync.Mutex
	closed bool

	ended   chan struct{}
	endOnce sync.Once
}

func newSSESink(w http.ResponseWriter) *sseSink {
	return &sseSink{
		w:     w,
		rc:    http.NewResponseController(w),
		ended: make(chan struct{}),
	}
}

func (s *sseSink) Send(_ context.Context, snap logtail.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.write("", payload)
}

func (s *sseSink) SendError(_ context.Context, message string) error {
	payload, err := json.Marshal(api.LogError{Error: message})
	if err != nil {
		return err
	}
	return s.write(api.EventLogError, payload)
}

func (s *sseSink) SessionEnded(string) {
	s.endOnce.Do(func() { close(s.ended) })
}

func (s *sseSink) write(event string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}

	var frame bytes.Buffer
	if event != "" {
		frame.WriteString("event: ")
		frame.WriteString(event)
		frame.WriteByte('\n')
	}
	frame.WriteString("data: ")
	frame.Write(payload)
	frame.WriteString("\n\n")

	_ = s.rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	if _, err := s.w.Write(frame.Bytes()); err != nil {
		return err
	}
	return s.rc.Flush()
}

// close stops further writes. The handler calls it before returning so a
// late delivery never touches a finished response.
func (s *sseSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *apiServer) handleLogStream(w http.ResponseWriter, r *http.Request) {
	opts, err := subscribeOptions(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.logs.Resolve(opts); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	id := uuid.NewString()
	sink := newSSESink(w)
	defer sink.close()

	hello, _ := json.Marshal(api.Subscribed{ID: id})
	if err := sink.write(api.EventSubscribed, hello); err != nil {
		return
	}
	if err := s.logs.Subscribe(id, opts, sink); err != nil {
		message, _ := json.Marshal(api.LogError{Error: err.Error()})
		_ = sink.write(api.EventLogError, message)
		return
	}

	logger := s.log().With(logging.String(logging.FieldSubscriber, id))
	logger.Debug("log stream opened", logging.String("remote", r.RemoteAddr))

	select {
	case <-r.Context().Done():
	case <-sink.ended:
	case <-s.stopping():
	}
	s.logs.Unsubscribe(id)
	logger.Debug("log stream closed")
}
