package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors of the parking service.  All
// methods are safe on a nil *Metrics so that tests and tools can skip
// registration entirely.
type Metrics struct {
	reservations *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	revenue      prometheus.Counter
	opDuration   *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	jobs         *prometheus.CounterVec
	events       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "reservations_total",
			Help:      "Reservations started and released.",
		}, []string{"action"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "booking_rejections_total",
			Help:      "Booking operations rejected, by reason.",
		}, []string{"op", "reason"}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "billed_cents_total",
			Help:      "Sum of costs billed on release, in cents.",
		}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parking",
			Name:      "booking_operation_seconds",
			Help:      "Latency of booking engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "jobs_total",
			Help:      "Background job runs by task type and outcome.",
		}, []string{"task", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parking",
			Name:      "reservation_events_total",
			Help:      "Reservation events by type and publish outcome.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(m.reservations, m.rejections, m.revenue, m.opDuration, m.httpRequests, m.jobs, m.events)
	return m
}

func (m *Metrics) ReservationStarted() {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues("start").Inc()
}

func (m *Metrics) ReservationReleased(costCents int64) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues("release").Inc()
	if costCents > 0 {
		m.revenue.Add(float64(costCents))
	}
}

func (m *Metrics) Rejected(op, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(op, reason).Inc()
}

func (m *Metrics) ObserveOperation(op string, started time.Time) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) HTTPRequest(method, route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
}

func (m *Metrics) JobRun(task, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(task, outcome).Inc()
}

func (m *Metrics) EventPublished(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}
