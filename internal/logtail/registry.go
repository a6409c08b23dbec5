package logtail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"

	"scott/internal/logging"
)

// DefaultStopTimeout bounds how long Stop waits for a session to exit.
const DefaultStopTimeout = 500 * time.Millisecond

var (
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("log monitor closed")
	// ErrInvalidOptions is returned for an empty id or a non-positive interval.
	ErrInvalidOptions = errors.New("invalid log monitor options")
)

// RegistryConfig wires a Registry.
type RegistryConfig struct {
	Path        string
	Clock       clock.Clock
	Logger      *slog.Logger
	Metrics     *Metrics
	StopTimeout time.Duration
}

// Registry owns every live polling session, at most one per subscriber id.
type Registry struct {
	path        string
	clock       clock.Clock
	logger      *slog.Logger
	metrics     *Metrics
	stopTimeout time.Duration

	keys *kmutex.Kmutex

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewRegistry builds an empty registry for the file at cfg.Path.
func NewRegistry(cfg RegistryConfig) *Registry {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	timeout := cfg.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		path:        cfg.Path,
		clock:       clk,
		logger:      logging.NewComponentLogger(cfg.Logger, "log-monitor"),
		metrics:     cfg.Metrics,
		stopTimeout: timeout,
		keys:        kmutex.New(),
		sessions:    make(map[string]*session),
		baseCtx:     ctx,
		baseCancel:  cancel,
	}
}

// Start launches a session for id, replacing any session already running
// under that id. The old session has exited (or its stop timed out) before
// the new one begins.
func (r *Registry) Start(id string, opts SessionOptions, sink Sink) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: subscriber id is required", ErrInvalidOptions)
	}
	if opts.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidOptions)
	}
	if opts.MaxLines < 0 {
		return fmt.Errorf("%w: max lines must not be negative", ErrInvalidOptions)
	}
	if sink == nil {
		return fmt.Errorf("%w: sink is required", ErrInvalidOptions)
	}

	r.keys.Lock(id)
	defer r.keys.Unlock(id)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	old := r.sessions[id]
	r.mu.Unlock()

	if old != nil {
		r.logger.Debug("replacing log session", logging.String(logging.FieldSubscriber, id))
		r.stopSession(old)
	}

	ctx, cancel := context.WithCancel(r.baseCtx)
	s := &session{
		id:        id,
		path:      r.path,
		opts:      opts,
		sink:      sink,
		clock:     r.clock,
		logger:    r.logger,
		metrics:   r.metrics,
		startedAt: r.clock.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return ErrClosed
	}
	r.sessions[id] = s
	r.mu.Unlock()
	r.metrics.sessionStarted()

	go s.run(ctx, r.remove)
	return nil
}

// Stop cancels the session for id and waits up to the stop timeout for it
// to exit. The entry is removed either way. It reports whether a session
// was found.
func (r *Registry) Stop(id string) bool {
	r.keys.Lock(id)
	defer r.keys.Unlock(id)

	r.mu.Lock()
	s := r.sessions[id]
	r.mu.Unlock()
	if s == nil {
		return false
	}
	r.stopSession(s)
	return true
}

// StopAll stops every registered session.
func (r *Registry) StopAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Stop(id)
		}(id)
	}
	wg.Wait()
}

// Close rejects further starts and stops everything running.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.baseCancel()
	r.StopAll()
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sessions lists registered sessions ordered by start time.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.Lock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.info())
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// stopSession cancels s, waits a bounded time for it, then drops it.
// Callers hold the key lock for s.id.
func (r *Registry) stopSession(s *session) {
	s.cancel()
	select {
	case <-s.done:
	default:
		timer := time.NewTimer(r.stopTimeout)
		select {
		case <-s.done:
		case <-timer.C:
			r.metrics.stopTimedOut()
			r.logger.Warn("log session did not stop in time; dropping it",
				logging.String(logging.FieldSubscriber, s.id),
				logging.Duration("timeout", r.stopTimeout),
				logging.String(logging.FieldEventType, "log_session_stop_timeout"),
				logging.String(logging.FieldErrorHint, "a file read or delivery is still in flight"),
			)
		}
		timer.Stop()
	}
	r.remove(s)
}

// remove drops s if it is still the registered session for its id.
func (r *Registry) remove(s *session) {
	r.mu.Lock()
	current, ok := r.sessions[s.id]
	if ok && current == s {
		delete(r.sessions, s.id)
	}
	r.mu.Unlock()
	if ok && current == s {
		r.metrics.sessionRemoved()
	}
}
