package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"scott/internal/config"
	"scott/internal/logging"
	"scott/internal/logtail"
	"scott/internal/records"
)

// Daemon owns the API server and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *records.Store
	logs     *logtail.Service
	registry *prometheus.Registry

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	Bind           string
	DatabasePath   string
	DatabaseOK     bool
	DatabaseDetail string
	LockFilePath   string
	ServerLogPath  string
	MonitoredFile  string
	LogSessions    int
}

// New constructs a daemon around an opened store and log service. registry
// backs the /metrics endpoint; it may be nil.
func New(cfg *config.Config, store *records.Store, logs *logtail.Service, logger *slog.Logger, registry *prometheus.Registry) (*Daemon, error) {
	if cfg == nil || store == nil || logs == nil {
		return nil, errors.New("daemon requires config, store, and log service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		logs:     logs,
		registry: registry,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.Server.Bind, d, logger)
	return d, nil
}

// Start acquires the daemon lock and begins serving HTTP.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scott server instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("scott server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
		logging.String("monitored_file", d.logs.Path()),
	)
	return nil
}

// Stop ends every log session, shuts the API server down and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.logs.StopAll()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("scott server stopped")
}

// Close stops the daemon and releases the log service and store.
func (d *Daemon) Close() error {
	d.Stop()
	d.logs.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the bound listen address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Bind:          d.api.address(),
		DatabasePath:  d.store.Path(),
		DatabaseOK:    true,
		LockFilePath:  d.lockPath,
		ServerLogPath: d.cfg.ServerLogPath(),
		MonitoredFile: d.logs.Path(),
		LogSessions:   d.logs.Len(),
	}
	if err := d.store.Ping(ctx); err != nil {
		status.DatabaseOK = false
		status.DatabaseDetail = err.Error()
	}
	return status
}
