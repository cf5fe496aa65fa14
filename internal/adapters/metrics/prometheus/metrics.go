package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ ports.Metrics = (*Metrics)(nil)

// Metrics exports game master activity as Prometheus series.
type Metrics struct {
	gatherer prometheus.Gatherer

	classified       *prometheus.CounterVec
	windowsClosed    *prometheus.CounterVec
	windowBids       prometheus.Histogram
	turnsCommitted   prometheus.Counter
	stateVersion     *prometheus.GaugeVec
	narrationLatency *prometheus.HistogramVec
	versionConflicts prometheus.Counter
	degraded         prometheus.Counter
	activeSessions   prometheus.Gauge
}

// New registers the collectors on reg. Passing nil uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fungame_messages_classified_total",
			Help: "Inbound messages classified, by verdict and whether the default was used.",
		}, []string{"verdict", "fallback"}),
		windowsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fungame_windows_closed_total",
			Help: "Arbitration windows closed, by reason.",
		}, []string{"reason"}),
		windowBids: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fungame_window_bids",
			Help:    "Live bids in a window when it closed.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		turnsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fungame_turns_committed_total",
			Help: "Winning bids committed to the state store.",
		}),
		stateVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fungame_state_version",
			Help: "Latest committed state version per session.",
		}, []string{"session"}),
		narrationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fungame_narration_seconds",
			Help:    "Narrator call latency, by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fungame_version_conflicts_total",
			Help: "Commits rejected because the base version was stale.",
		}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fungame_sessions_degraded_total",
			Help: "Sessions paused after repeated commit conflicts.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fungame_active_sessions",
			Help: "Sessions currently loaded by the controller.",
		}),
	}

	reg.MustRegister(
		m.classified,
		m.windowsClosed,
		m.windowBids,
		m.turnsCommitted,
		m.stateVersion,
		m.narrationLatency,
		m.versionConflicts,
		m.degraded,
		m.activeSessions,
	)

	return m
}

func (m *Metrics) Classified(verdict domain.Verdict, fallback bool) {
	m.classified.WithLabelValues(string(verdict), strconv.FormatBool(fallback)).Inc()
}

func (m *Metrics) WindowClosed(reason domain.CloseReason, bids int) {
	m.windowsClosed.WithLabelValues(string(reason)).Inc()
	m.windowBids.Observe(float64(bids))
}

func (m *Metrics) TurnCommitted(session domain.SessionID, version uint64) {
	m.turnsCommitted.Inc()
	m.stateVersion.WithLabelValues(string(session)).Set(float64(version))
}

func (m *Metrics) NarrationAttempt(ok bool, took time.Duration) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	m.narrationLatency.WithLabelValues(outcome).Observe(took.Seconds())
}

func (m *Metrics) VersionConflict() {
	m.versionConflicts.Inc()
}

func (m *Metrics) SessionDegraded() {
	m.degraded.Inc()
}

func (m *Metrics) ActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
