package logtail

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"scott/internal/logging"
)

// Settings supplies the host configuration the service reads.
type Settings interface {
	LogMonitorFile() string
	LogMonitorMaxLines() int
	LogMonitorInterval() time.Duration
	LogMonitorStopTimeout() time.Duration
}

// SubscribeOptions are the caller-supplied session parameters. Nil fields
// fall back to the configured defaults.
type SubscribeOptions struct {
	MaxLines        *int
	IntervalSeconds *int
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for timestamps and poll waits.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithLogger sets the logger used by the service and its sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the entry point transports use for pull-once reads and
// streaming subscriptions.
type Service struct {
	settings Settings
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *Metrics
	registry *Registry
}

// NewService builds a service over the file named by settings.
func NewService(settings Settings, opts ...Option) *Service {
	s := &Service{settings: settings, clock: clock.WallClock}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.registry = NewRegistry(RegistryConfig{
		Path:        settings.LogMonitorFile(),
		Clock:       s.clock,
		Logger:      s.logger,
		Metrics:     s.metrics,
		StopTimeout: settings.LogMonitorStopTimeout(),
	})
	return s
}

// Path returns the monitored file.
func (s *Service) Path() string {
	return s.settings.LogMonitorFile()
}

// Snapshot reads the file once. Read problems are reported in the
// snapshot content; the only error is ErrInvalidOptions for a negative cap.
func (s *Service) Snapshot(maxLines *int) (Snapshot, error) {
	lines := s.settings.LogMonitorMaxLines()
	if maxLines != nil {
		if *maxLines < 0 {
			return Snapshot{}, fmt.Errorf("%w: max_lines must not be negative", ErrInvalidOptions)
		}
		lines = *maxLines
	}
	start := time.Now()
	snap, err := ReadSnapshot(s.Path(), lines, s.clock.Now())
	s.metrics.captured(time.Since(start), err)
	if err != nil {
		logging.NewComponentLogger(s.logger, "log-monitor").Debug("log snapshot degraded",
			logging.String("path", s.Path()),
			logging.Error(err),
		)
	}
	return snap, nil
}

// Info stats the monitored file.
func (s *Service) Info() (FileInfo, error) {
	return StatFile(s.Path())
}

// Resolve applies configured defaults to opts and validates the result.
func (s *Service) Resolve(opts SubscribeOptions) (SessionOptions, error) {
	resolved := SessionOptions{
		MaxLines: s.settings.LogMonitorMaxLines(),
		Interval: s.settings.LogMonitorInterval(),
	}
	if opts.MaxLines != nil {
		if *opts.MaxLines < 0 {
			return SessionOptions{}, fmt.Errorf("%w: max_lines must not be negative", ErrInvalidOptions)
		}
		resolved.MaxLines = *opts.MaxLines
	}
	if opts.IntervalSeconds != nil {
		if *opts.IntervalSeconds <= 0 {
			return SessionOptions{}, fmt.Errorf("%w: interval must be a positive number of seconds", ErrInvalidOptions)
		}
		resolved.Interval = time.Duration(*opts.IntervalSeconds) * time.Second
	}
	if resolved.Interval <= 0 {
		return SessionOptions{}, fmt.Errorf("%w: interval must be positive", ErrInvalidOptions)
	}
	return resolved, nil
}

// Subscribe starts (or restarts) streaming for id into sink.
func (s *Service) Subscribe(id string, opts SubscribeOptions, sink Sink) error {
	resolved, err := s.Resolve(opts)
	if err != nil {
		return err
	}
	return s.registry.Start(id, resolved, sink)
}

// Unsubscribe stops streaming for id. Unknown ids are ignored.
func (s *Service) Unsubscribe(id string) bool {
	return s.registry.Stop(id)
}

// Sessions lists live subscriptions.
func (s *Service) Sessions() []SessionInfo {
	return s.registry.Sessions()
}

// Len returns the number of live subscriptions.
func (s *Service) Len() int {
	return s.registry.Len()
}

// StopAll stops every subscription. New ones are still accepted.
func (s *Service) StopAll() {
	s.registry.StopAll()
}

// Close stops every subscription and rejects new ones.
func (s *Service) Close() {
	s.registry.Close()
}
