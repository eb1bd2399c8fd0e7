// Package metrics exposes Prometheus collectors for admission decisions and
// facility occupancy.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for admission decisions.
const (
	OutcomeAdmitted         = "admitted"
	OutcomeNotFound         = "not_found"
	OutcomeCapacityExceeded = "capacity_exceeded"
	OutcomeDuplicate        = "duplicate"
	OutcomeError            = "error"
)

// UnknownFacility replaces the facility label of not_found decisions, so
// arbitrary ids from requests cannot create new series.
const UnknownFacility = "unknown"

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	decisions      *prometheus.CounterVec
	decisionTime   prometheus.Histogram
	occupancy      *prometheus.GaugeVec
	sensorReadings *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gym",
			Name:      "admission_decisions_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"facility", "outcome"}),
		decisionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gym",
			Name:      "admission_decision_seconds",
			Help:      "Time spent deciding a booking attempt, including the store round trip.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gym",
			Name:      "occupancy_percent",
			Help:      "Last computed capacity percentage per facility.",
		}, []string{"facility"}),
		sensorReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gym",
			Name:      "sensor_readings_total",
			Help:      "Sensor readings applied per facility.",
		}, []string{"facility"}),
	}
	reg.MustRegister(m.decisions, m.decisionTime, m.occupancy, m.sensorReadings)
	return m
}

// ObserveDecision counts one booking attempt and its latency. Attempts
// against unknown facilities share the UnknownFacility label.
func (m *Metrics) ObserveDecision(facilityID, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if outcome == OutcomeNotFound {
		facilityID = UnknownFacility
	}
	m.decisions.WithLabelValues(facilityID, outcome).Inc()
	m.decisionTime.Observe(elapsed.Seconds())
}

// SetOccupancy records the last computed percentage of a known facility.
func (m *Metrics) SetOccupancy(facilityID string, percent int) {
	if m == nil {
		return
	}
	m.occupancy.WithLabelValues(facilityID).Set(float64(percent))
}

// SensorReading counts one applied sensor reading.
func (m *Metrics) SensorReading(facilityID string) {
	if m == nil {
		return
	}
	m.sensorReadings.WithLabelValues(facilityID).Inc()
}
