package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Metrics collects the pipeline counters that matter for diagnosing
// ranking drift in production: fallbacks, widenings, and session volume.
type Metrics struct {
	sessionsCreated     *prometheus.CounterVec
	pagesServed         prometheus.Counter
	engagementsRecorded *prometheus.CounterVec
	similarityFallbacks prometheus.Counter
	freshnessWidenings  prometheus.Counter
	rankingDuration     prometheus.Histogram
	activeSessions      prometheus.Gauge
}

func NewMetrics(logger *logrus.Logger) *Metrics {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_sessions_created_total",
			Help: "Sessions created, labeled by cold-start state",
		}, []string{"cold_start"}),
		pagesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recommendation_pages_served_total",
			Help: "Pages emitted across create and load-more",
		}),
		engagementsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_engagements_total",
			Help: "Engagements recorded, labeled by type",
		}, []string{"type"}),
		similarityFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recommendation_similarity_fallbacks_total",
			Help: "Candidates scored with the neutral similarity fallback",
		}),
		freshnessWidenings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recommendation_freshness_widenings_total",
			Help: "Stage A retries at a wider freshness window",
		}),
		rankingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommendation_ranking_duration_seconds",
			Help:    "End-to-end CreateSession pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recommendation_active_sessions",
			Help: "Sessions currently held in the session table",
		}),
	}

	collectors := []prometheus.Collector{
		m.sessionsCreated, m.pagesServed, m.engagementsRecorded,
		m.similarityFallbacks, m.freshnessWidenings, m.rankingDuration,
		m.activeSessions,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logger.WithError(err).Warn("Failed to register metric")
			}
		}
	}

	return m
}

func (m *Metrics) SessionCreated(coldStart bool) {
	label := "false"
	if coldStart {
		label = "true"
	}
	m.sessionsCreated.WithLabelValues(label).Inc()
}

func (m *Metrics) PageServed() { m.pagesServed.Inc() }

func (m *Metrics) EngagementRecorded(kind string) {
	m.engagementsRecorded.WithLabelValues(kind).Inc()
}

func (m *Metrics) SimilarityFallback() { m.similarityFallbacks.Inc() }

func (m *Metrics) FreshnessWidened() { m.freshnessWidenings.Inc() }

func (m *Metrics) ObserveRankingDuration(sec float64) { m.rankingDuration.Observe(sec) }

func (m *Metrics) SetActiveSessions(n int) { m.activeSessions.Set(float64(n)) }
