package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	assessmentsCommittedTotal *prometheus.CounterVec
	significantChangesTotal   prometheus.Counter
	alertsCreatedTotal        *prometheus.CounterVec
	alertsDedupedTotal        prometheus.Counter
	alertTransitionsTotal     *prometheus.CounterVec
	interventionsTotal        *prometheus.CounterVec
	followupRecomputesTotal   prometheus.Counter
	batchRunsTotal            prometheus.Counter
	batchSubjectErrorsTotal   prometheus.Counter
	notificationsTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the early-warning pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ews_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		assessmentsCommittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_assessments_committed_total",
			Help: "Risk assessments committed to the prediction ledger.",
		}, []string{"risk_level"})

		significantChangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ews_significant_changes_total",
			Help: "Ledger commits flagged as a significant change.",
		})

		alertsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_alerts_created_total",
			Help: "Alerts created by the alert engine.",
		}, []string{"priority"})

		alertsDedupedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ews_alerts_deduplicated_total",
			Help: "Alert creations suppressed because an open alert already existed.",
		})

		alertTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_alert_transitions_total",
			Help: "Successful alert state transitions.",
		}, []string{"to_state"})

		interventionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_interventions_recorded_total",
			Help: "Interventions recorded, by kind.",
		}, []string{"kind"})

		followupRecomputesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ews_followup_recomputes_total",
			Help: "Full recomputations of follow-up rollup records.",
		})

		batchRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ews_batch_runs_total",
			Help: "Scoring batch runs started.",
		})

		batchSubjectErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ews_batch_subject_errors_total",
			Help: "Subjects that failed inside a scoring batch.",
		})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_alert_notifications_total",
			Help: "Alert notification attempts, by result.",
		}, []string{"status"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			assessmentsCommittedTotal, significantChangesTotal,
			alertsCreatedTotal, alertsDedupedTotal, alertTransitionsTotal,
			interventionsTotal, followupRecomputesTotal,
			batchRunsTotal, batchSubjectErrorsTotal, notificationsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// AssessmentsCommitted exposes the ledger commit counter.
func AssessmentsCommitted() *prometheus.CounterVec {
	RegisterMetrics()
	return assessmentsCommittedTotal
}

// SignificantChanges exposes the significant-change counter.
func SignificantChanges() prometheus.Counter {
	RegisterMetrics()
	return significantChangesTotal
}

// AlertsCreated exposes the alert creation counter.
func AlertsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return alertsCreatedTotal
}

// AlertsDeduplicated exposes the dedup suppression counter.
func AlertsDeduplicated() prometheus.Counter {
	RegisterMetrics()
	return alertsDedupedTotal
}

// AlertTransitions exposes the transition counter.
func AlertTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return alertTransitionsTotal
}

// InterventionsRecorded exposes the intervention counter.
func InterventionsRecorded() *prometheus.CounterVec {
	RegisterMetrics()
	return interventionsTotal
}

// FollowupRecomputes exposes the rollup recompute counter.
func FollowupRecomputes() prometheus.Counter {
	RegisterMetrics()
	return followupRecomputesTotal
}

// BatchRuns exposes the batch run counter.
func BatchRuns() prometheus.Counter {
	RegisterMetrics()
	return batchRunsTotal
}

// BatchSubjectErrors exposes the per-subject batch failure counter.
func BatchSubjectErrors() prometheus.Counter {
	RegisterMetrics()
	return batchSubjectErrorsTotal
}

// Notifications exposes the notification attempt counter.
func Notifications() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}
