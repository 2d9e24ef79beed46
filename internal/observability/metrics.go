package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "speak_coach"

// Metrics exposes Prometheus collectors for engine activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsStarted  prometheus.Counter
	sessionsFinished prometheus.Counter
	sessionsEvicted  prometheus.Counter
	sessionsActive   prometheus.Gauge
	generationErrors *prometheus.CounterVec
	judgmentSources  *prometheus.CounterVec
	foldDuration     prometheus.Histogram
	requestDuration  *prometheus.HistogramVec
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Registration errors panic; tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "sessions_started_total",
			Help:      "Interview sessions that produced a first question.",
		}),
		sessionsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "sessions_finished_total",
			Help:      "Interview sessions that delivered final feedback.",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "sessions_evicted_total",
			Help:      "Sessions dropped from the store by idle expiry or capacity.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "sessions_active",
			Help:      "Sessions currently held in the store.",
		}),
		generationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "generation_failures_total",
			Help:      "Failed calls to the generation or transcription collaborator.",
		}, []string{"op"}),
		judgmentSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "judgments_total",
			Help:      "Judgments produced, by extraction tier.",
		}, []string{"source"}),
		foldDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "profile",
			Name:      "fold_duration_seconds",
			Help:      "Time spent folding a record into a profile, including persistence.",
			Buckets:   prometheus.DefBuckets,
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.sessionsStarted,
		m.sessionsFinished,
		m.sessionsEvicted,
		m.sessionsActive,
		m.generationErrors,
		m.judgmentSources,
		m.foldDuration,
		m.requestDuration,
	)
	return m
}

// SessionStarted counts a new session and marks it active.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.sessionsActive.Inc()
}

// SessionFinished counts a completed session and marks it inactive.
func (m *Metrics) SessionFinished() {
	if m == nil {
		return
	}
	m.sessionsFinished.Inc()
	m.sessionsActive.Dec()
}

// SessionEvicted counts a session dropped without finishing.
func (m *Metrics) SessionEvicted() {
	if m == nil {
		return
	}
	m.sessionsEvicted.Inc()
	m.sessionsActive.Dec()
}

// GenerationFailed counts a collaborator failure for op.
func (m *Metrics) GenerationFailed(op string) {
	if m == nil {
		return
	}
	m.generationErrors.WithLabelValues(op).Inc()
}

// JudgmentProduced counts a judgment by extraction source.
func (m *Metrics) JudgmentProduced(source string) {
	if m == nil {
		return
	}
	m.judgmentSources.WithLabelValues(source).Inc()
}

// ObserveFold records the duration of one profile fold.
func (m *Metrics) ObserveFold(d time.Duration) {
	if m == nil {
		return
	}
	m.foldDuration.Observe(d.Seconds())
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, statusClass(status)).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
