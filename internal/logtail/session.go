package logtail

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/juju/clock"

	"scott/internal/logging"
)

// Sink receives the output of one polling session. Calls come from a single
// goroutine, so implementations need no locking of their own. ctx is
// cancelled when the session is told to stop; a blocked delivery should give
// up when that happens. A non-nil error ends the session.
type Sink interface {
	Send(ctx context.Context, snap Snapshot) error
	SendError(ctx context.Context, message string) error
}

// EndNotifier is implemented by sinks that want to hear when their session
// terminated, whatever the cause.
type EndNotifier interface {
	SessionEnded(id string)
}

// SessionState is the lifecycle stage of a polling session.
type SessionState int32

const (
	StateCreated SessionState = iota
	StateRunning
	StateStopping
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SessionOptions are the resolved parameters of one session.
type SessionOptions struct {
	MaxLines int
	Interval time.Duration
}

// SessionInfo describes a live session for operators.
type SessionInfo struct {
	ID           string    `json:"id"`
	MaxLines     int       `json:"max_lines"`
	IntervalSecs float64   `json:"interval_seconds"`
	StartedAt    time.Time `json:"started_at"`
	Emitted      int64     `json:"emitted"`
	LastSize     int64     `json:"last_size"`
	State        string    `json:"state"`
}

type session struct {
	id        string
	path      string
	opts      SessionOptions
	sink      Sink
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *Metrics
	startedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	state    atomic.Int32
	lastSize atomic.Int64
	emitted  atomic.Int64
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:           s.id,
		MaxLines:     s.opts.MaxLines,
		IntervalSecs: s.opts.Interval.Seconds(),
		StartedAt:    s.startedAt,
		Emitted:      s.emitted.Load(),
		LastSize:     s.lastSize.Load(),
		State:        SessionState(s.state.Load()).String(),
	}
}

// run is the polling loop. onExit runs after done is closed.
func (s *session) run(ctx context.Context, onExit func(*session)) {
	defer func() {
		s.state.Store(int32(StateTerminated))
		close(s.done)
		if notifier, ok := s.sink.(EndNotifier); ok {
			notifier.SessionEnded(s.id)
		}
		if onExit != nil {
			onExit(s)
		}
	}()

	s.state.Store(int32(StateRunning))
	s.logger.Debug("log session started",
		logging.String(logging.FieldSubscriber, s.id),
		logging.Int("max_lines", s.opts.MaxLines),
		logging.Duration("interval", s.opts.Interval),
	)

	first := true
	lastErr := ""
	for {
		if ctx.Err() != nil {
			s.state.Store(int32(StateStopping))
			return
		}

		start := time.Now()
		snap, err := ReadSnapshot(s.path, s.opts.MaxLines, s.clock.Now())
		s.metrics.captured(time.Since(start), err)

		if ctx.Err() != nil {
			s.state.Store(int32(StateStopping))
			return
		}

		if err != nil {
			// Every failing poll is reported; only the log line is deduplicated.
			msg := err.Error()
			if msg != lastErr {
				lastErr = msg
				s.logger.Warn("log capture failed",
					logging.String(logging.FieldSubscriber, s.id),
					logging.Error(err),
					logging.String(logging.FieldEventType, "log_capture_failed"),
				)
			}
			if sendErr := s.sink.SendError(ctx, msg); sendErr != nil {
				s.deliveryFailed(ctx, sendErr)
				return
			}
		} else {
			lastErr = ""
			if first || Changed(s.lastSize.Load(), snap) {
				if sendErr := s.sink.Send(ctx, snap); sendErr != nil {
					s.deliveryFailed(ctx, sendErr)
					return
				}
				first = false
				s.lastSize.Store(snap.FileSize)
				s.emitted.Add(1)
				s.metrics.emitted()
			}
		}

		select {
		case <-ctx.Done():
			s.state.Store(int32(StateStopping))
			return
		case <-s.clock.After(s.opts.Interval):
		}
	}
}

func (s *session) deliveryFailed(ctx context.Context, err error) {
	s.state.Store(int32(StateStopping))
	if ctx.Err() != nil {
		return
	}
	s.metrics.deliveryFailed()
	s.logger.Info("log session ended by subscriber",
		logging.String(logging.FieldSubscriber, s.id),
		logging.Error(err),
	)
}
