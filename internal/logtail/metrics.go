package logtail

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the log monitor's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SnapshotsEmitted prometheus.Counter
	CaptureErrors    prometheus.Counter
	DeliveryErrors   prometheus.Counter
	StopTimeouts     prometheus.Counter
	CaptureDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scott_log_monitor_active_sessions",
			Help: "Number of live log polling sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scott_log_monitor_sessions_started_total",
			Help: "Total number of log polling sessions started",
		}),
		SnapshotsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scott_log_monitor_snapshots_emitted_total",
			Help: "Total number of snapshots delivered to subscribers",
		}),
		CaptureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "scott_log_monitor_capture_errors_total",
			Help: "Total number of failed log file reads",
		}),
		DeliveryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "scott_log_monitor_delivery_errors_total",
			Help: "Total number of sessions ended by a failed delivery",
		}),
		StopTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "scott_log_monitor_stop_timeouts_total",
			Help: "Total number of stops that gave up waiting for a session to exit",
		}),
		CaptureDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scott_log_monitor_capture_duration_seconds",
			Help:    "Time spent reading a snapshot of the log file",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) sessionRemoved() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) emitted() {
	if m == nil {
		return
	}
	m.SnapshotsEmitted.Inc()
}

func (m *Metrics) captured(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.CaptureDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.CaptureErrors.Inc()
	}
}

func (m *Metrics) deliveryFailed() {
	if m == nil {
		return
	}
	m.DeliveryErrors.Inc()
}

func (m *Metrics) stopTimedOut() {
	if m == nil {
		return
	}
	m.StopTimeouts.Inc()
}
