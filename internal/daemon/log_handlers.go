package daemon

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"scott/internal/api"
	"scott/internal/logging"
	"scott/internal/logtail"
)

func (s *apiServer) registerLogRoutes(r *mux.Router) {
	collection(r, "/api/log", s.handleLogSnapshot, http.MethodGet)
	r.HandleFunc("/api/log/info", s.handleLogInfo).Methods(http.MethodGet)
	r.HandleFunc("/api/log/stream", s.handleLogStream).Methods(http.MethodGet)
	r.HandleFunc("/api/log/sessions", s.handleLogSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/log/sessions/{id}", s.handleLogSessionStop).Methods(http.MethodDelete)
	r.HandleFunc("/ws/logs", s.handleLogSocket).Methods(http.MethodGet)
}

func (s *apiServer) handleLogSnapshot(w http.ResponseWriter, r *http.Request) {
	maxLines, err := optionalInt(r.URL.Query(), "max_lines")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.logs.Snapshot(maxLines)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, http.StatusOK, "log content retrieved", snap)
}

func (s *apiServer) handleLogInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := s.logs.Info()
	if err != nil {
		s.log().Warn("log info failed", logging.Error(err))
		s.respond(w, http.StatusInternalServerError, "failed to inspect log file: "+err.Error(), info)
		return
	}
	if !info.Exists {
		s.respond(w, http.StatusNotFound, "log file does not exist", info)
		return
	}
	s.respond(w, http.StatusOK, "log file info retrieved", info)
}

func (s *apiServer) handleLogSessions(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, "log sessions retrieved", api.FromSessionInfos(s.logs.Sessions()))
}

func (s *apiServer) handleLogSessionStop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.logs.Unsubscribe(id) {
		s.writeError(w, http.StatusNotFound, "log session "+id+" not found")
		return
	}
	s.respond(w, http.StatusOK, "log session stopped", api.Subscribed{ID: id})
}

// subscribeOptions reads max_lines and interval from a query string.
func subscribeOptions(query url.Values) (logtail.SubscribeOptions, error) {
	maxLines, err := optionalInt(query, "max_lines")
	if err != nil {
		return logtail.SubscribeOptions{}, err
	}
	interval, err := optionalInt(query, "interval")
	if err != nil {
		return logtail.SubscribeOptions{}, err
	}
	return logtail.SubscribeOptions{MaxLines: maxLines, IntervalSeconds: interval}, nil
}

func optionalInt(query url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(key + " must be an integer")
	}
	return &value, nil
}
