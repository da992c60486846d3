package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records the outcome of settlement operations.
type SettlementMetrics struct {
	duration      *prometheus.HistogramVec
	success       *prometheus.CounterVec
	failure       *prometheus.CounterVec
	ordersSettled prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_operation_duration_seconds",
		Help:    "Duration of settlement operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_operation_success",
		Help: "Successful settlement operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_operation_failure",
		Help: "Failed settlement operations.",
	}, []string{"operation"})
	ordersSettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_orders_settled_total",
		Help: "Orders flipped to settled by lock and resume commits.",
	})
	reg.MustRegister(duration, success, failure, ordersSettled)
	return &SettlementMetrics{
		duration:      duration,
		success:       success,
		failure:       failure,
		ordersSettled: ordersSettled,
	}
}

// ObserveDuration records the duration for the named operation.
func (s *SettlementMetrics) ObserveDuration(operation string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (s *SettlementMetrics) IncSuccess(operation string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (s *SettlementMetrics) IncFailure(operation string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(operation)).Inc()
}

// AddOrdersSettled adds to the settled-order counter.
func (s *SettlementMetrics) AddOrdersSettled(count int) {
	if s == nil || s.ordersSettled == nil || count <= 0 {
		return
	}
	s.ordersSettled.Add(float64(count))
}

func normalizeLabel(operation string) string {
	if operation == "" {
		return "unknown"
	}
	return operation
}
