// Package metrics exposes Prometheus instruments for reservations, check-ins
// and outbound delivery.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smarthub"

// OutcomeSuccess labels a successful operation; failures use the error kind.
const OutcomeSuccess = "success"

type Metrics struct {
	Reservations         *prometheus.CounterVec
	CheckIns             *prometheus.CounterVec
	NotificationDuration *prometheus.HistogramVec
	PublishFailures      *prometheus.CounterVec
}

// New creates the instruments and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by domain and outcome.",
		}, []string{"domain", "outcome"}),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Check-in attempts by domain and outcome.",
		}, []string{"domain", "outcome"}),
		NotificationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Time spent delivering confirmation messages.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"domain"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Domain events that could not be published.",
		}, []string{"subject"}),
	}

	if reg != nil {
		reg.MustRegister(m.Reservations, m.CheckIns, m.NotificationDuration, m.PublishFailures)
	}
	return m
}

func (m *Metrics) ObserveReservation(domain, outcome string) {
	m.Reservations.WithLabelValues(domain, outcome).Inc()
}

func (m *Metrics) ObserveCheckIn(domain, outcome string) {
	m.CheckIns.WithLabelValues(domain, outcome).Inc()
}

func (m *Metrics) ObserveNotification(domain string, took time.Duration) {
	m.NotificationDuration.WithLabelValues(domain).Observe(took.Seconds())
}

func (m *Metrics) ObservePublishFailure(subject string) {
	m.PublishFailures.WithLabelValues(subject).Inc()
}
