// Package metrics exposes Prometheus collectors for booth access activity.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	codeValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booth_code_validations_total",
			Help: "Booth code validation attempts by outcome",
		},
		[]string{"result"},
	)

	admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booth_admissions_total",
			Help: "Operation start attempts by admission outcome",
		},
		[]string{"result"},
	)

	sessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_session_events_total",
			Help: "Operator session lifecycle events",
		},
		[]string{"event"},
	)

	operationMinutes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booth_operation_duration_minutes",
			Help:    "Duration of closed booth operations",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		},
	)

	operationParticipants = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booth_operation_participants",
			Help:    "Participants registered during closed booth operations",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	httpRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// CodeValidation counts one validation with its result ("success" or a
// failure reason).
func CodeValidation(result string) {
	codeValidations.WithLabelValues(result).Inc()
}

// Admission counts one admission decision ("admitted", "denied").
func Admission(result string) {
	admissions.WithLabelValues(result).Inc()
}

// SessionEvent counts a session lifecycle event.
func SessionEvent(event string) {
	sessionEvents.WithLabelValues(event).Inc()
}

// OperationClosed records the duration and participant count of a closed operation.
func OperationClosed(minutes, participants int) {
	operationMinutes.Observe(float64(minutes))
	operationParticipants.Observe(float64(participants))
}

// HTTPRequest records one served request.
func HTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
