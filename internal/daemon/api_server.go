package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scott/internal/api"
	"scott/internal/logging"
	"scott/internal/logtail"
	"scott/internal/records"
)

const shutdownTimeout = 5 * time.Second

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	store    *records.Store
	logs     *logtail.Service
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	sockets  *socketSet
	handler  http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:     bind,
		logger:   logger,
		daemon:   d,
		store:    d.store,
		logs:     d.logs,
		gatherer: d.registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  socketBufferSize,
			WriteBufferSize: socketBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sockets: newSocketSet(),
	}
	srv.handler = srv.routes()
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(s.logRequests)

	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.registerLogRoutes(r)
	s.registerRecordRoutes(r)
	return r
}

// collection registers h for path with and without a trailing slash.
func collection(r *mux.Router, path string, h http.HandlerFunc, methods ...string) {
	r.HandleFunc(path, h).Methods(methods...)
	r.HandleFunc(path+"/", h).Methods(methods...)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.done = done
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.stop()
		case <-done:
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server, listener, done := s.server, s.listener, s.done
	s.server, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	s.sockets.closeAll()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log().Warn("api server shutdown incomplete", logging.Error(err))
		}
	}
	if listener != nil {
		_ = listener.Close()
	}
}

// stopping is closed when the server begins shutting down. It is nil (and
// so never ready) while the server is not running.
func (s *apiServer) stopping() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.respond(w, http.StatusOK, "server status", api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		Bind:           status.Bind,
		DatabasePath:   status.DatabasePath,
		DatabaseOK:     status.DatabaseOK,
		DatabaseDetail: status.DatabaseDetail,
		LockFilePath:   status.LockFilePath,
		ServerLogPath:  status.ServerLogPath,
		MonitoredFile:  status.MonitoredFile,
		LogSessions:    status.LogSessions,
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) respond(w http.ResponseWriter, status int, message string, data any) {
	s.writeJSON(w, status, api.Response{Code: status, Message: message, Data: data})
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, message, nil)
}

// writeStoreError maps records sentinels onto HTTP statuses.
func (s *apiServer) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, records.ErrInvalid):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.log().Error("record operation failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}

func (s *apiServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log().Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

// statusRecorder captures the response status while keeping streaming and
// upgrades working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
