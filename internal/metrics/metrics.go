package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported by the server. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	Outcomes      *prometheus.CounterVec
	Confirmations *prometheus.CounterVec
	Notifications *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry, service string) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiketa",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tiketa",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiketa",
		Subsystem: service,
		Name:      "payment_outcomes_total",
		Help:      "Payment widget outcomes by kind and resulting state.",
	}, []string{"outcome", "state"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiketa",
		Subsystem: service,
		Name:      "confirmations_total",
		Help:      "Backend confirmation calls by result.",
	}, []string{"result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tiketa",
		Subsystem: service,
		Name:      "ticket_notifications_total",
		Help:      "Ticket delivery notifications by channel and result.",
	}, []string{"channel", "result"})

	reg.MustRegister(requests, latency, outcomes, confirmations, notifications)

	return &Metrics{
		Requests:      requests,
		LatencyMS:     latency,
		Outcomes:      outcomes,
		Confirmations: confirmations,
		Notifications: notifications,
		gatherer:      reg,
	}
}

// Handler serves the registry this Metrics was built with.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(handler, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, status).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(ms)
}

func (m *Metrics) ObserveOutcome(outcome, state string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome, state).Inc()
}

func (m *Metrics) ObserveConfirmation(result string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveNotification(channel, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(channel, result).Inc()
}
