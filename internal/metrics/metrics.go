// Package metrics holds the Prometheus collectors of the complaint service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

type Metrics struct {
	CacheHits            *prometheus.CounterVec
	CacheMisses          *prometheus.CounterVec
	ComplaintsCreated    prometheus.Counter
	ComplaintsDeleted    prometheus.Counter
	ProtocolRetries      prometheus.Counter
	Transitions          *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	Notifications        *prometheus.CounterVec
	NotificationsDropped prometheus.Counter
	LiveClients          prometheus.Gauge
}

// New registers every collector on reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "denuncia_cache_hits_total",
			Help: "Cache hits by key class",
		}, []string{"class"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "denuncia_cache_misses_total",
			Help: "Cache misses by key class",
		}, []string{"class"}),
		ComplaintsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "denuncia_complaints_created_total",
			Help: "Complaints successfully created",
		}),
		ComplaintsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "denuncia_complaints_deleted_total",
			Help: "Complaints erased",
		}),
		ProtocolRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "denuncia_protocol_retries_total",
			Help: "Protocol codes regenerated after a collision",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "denuncia_status_transitions_total",
			Help: "Committed status transitions by target status",
		}, []string{"status"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "denuncia_repository_operation_duration_seconds",
			Help:    "Duration of repository operations",
			Buckets: durationBuckets,
		}, []string{"op"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "denuncia_notifications_total",
			Help: "Notification deliveries by sender and outcome",
		}, []string{"sender", "outcome"}),
		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "denuncia_notifications_dropped_total",
			Help: "Notifications dropped because the queue was full or closed",
		}),
		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "denuncia_livefeed_clients",
			Help: "Staff websocket connections currently open",
		}),
	}
}

func (m *Metrics) RecordCacheHit(class string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(class).Inc()
}

func (m *Metrics) RecordCacheMiss(class string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.ComplaintsCreated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	if m == nil {
		return
	}
	m.ComplaintsDeleted.Inc()
}

func (m *Metrics) IncrementProtocolRetry() {
	if m == nil {
		return
	}
	m.ProtocolRetries.Inc()
}

func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

// ObserveOperation records the duration of op. Call with time.Now() taken at
// the start of the operation, usually via defer.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecordNotification(sender string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues(sender, outcome).Inc()
}

func (m *Metrics) IncrementDropped() {
	if m == nil {
		return
	}
	m.NotificationsDropped.Inc()
}

func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.LiveClients.Set(float64(n))
}
