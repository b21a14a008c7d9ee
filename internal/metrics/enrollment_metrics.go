package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// EnrollmentMetrics интерфейс для метрик регистраций и платежей
type EnrollmentMetrics interface {
	RecordApply(kind, method string, amount float64)
	RecordApplyFailure(kind, reason string)
	RecordCompletion(kind string)
	RecordCancellation(kind string)
	RecordLockWait(seconds float64)
	RecordLockBusy()
}

type enrollmentMetrics struct {
	log           *logger.Logger
	applies       *prometheus.CounterVec
	applyFailures *prometheus.CounterVec
	completions   *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	paymentAmount *prometheus.HistogramVec
	lockWait      prometheus.Histogram
	lockBusy      prometheus.Counter
}

// NewEnrollmentMetrics создает новые метрики регистраций
func NewEnrollmentMetrics(registry *prometheus.Registry, log *logger.Logger) EnrollmentMetrics {
	applies := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_applies_total",
			Help: "The total number of successful registrations",
		},
		[]string{"kind", "method"},
	)

	applyFailures := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_apply_failures_total",
			Help: "The total number of rejected registration attempts",
		},
		[]string{"kind", "reason"},
	)

	completions := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_completions_total",
			Help: "The total number of completed registrations",
		},
		[]string{"kind"},
	)

	cancellations := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_cancellations_total",
			Help: "The total number of cancelled payments",
		},
		[]string{"kind"},
	)

	paymentAmount := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrollment_payment_amount",
			Help:    "Payment amounts distribution",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7), // 100 .. 100000000
		},
		[]string{"method"},
	)

	lockWait := promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrollment_lock_wait_seconds",
			Help:    "Time spent waiting for a keyed lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	lockBusy := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "enrollment_lock_busy_total",
			Help: "The total number of lock acquisitions that gave up",
		},
	)

	return &enrollmentMetrics{
		log:           log,
		applies:       applies,
		applyFailures: applyFailures,
		completions:   completions,
		cancellations: cancellations,
		paymentAmount: paymentAmount,
		lockWait:      lockWait,
		lockBusy:      lockBusy,
	}
}

// RecordApply увеличивает счетчик успешных регистраций и записывает сумму
func (m *enrollmentMetrics) RecordApply(kind, method string, amount float64) {
	m.applies.WithLabelValues(kind, method).Inc()
	m.paymentAmount.WithLabelValues(method).Observe(amount)
}

// RecordApplyFailure увеличивает счетчик отклоненных попыток
func (m *enrollmentMetrics) RecordApplyFailure(kind, reason string) {
	m.applyFailures.WithLabelValues(kind, reason).Inc()
}

// RecordCompletion увеличивает счетчик завершенных регистраций
func (m *enrollmentMetrics) RecordCompletion(kind string) {
	m.completions.WithLabelValues(kind).Inc()
}

// RecordCancellation увеличивает счетчик отмененных платежей
func (m *enrollmentMetrics) RecordCancellation(kind string) {
	m.cancellations.WithLabelValues(kind).Inc()
}

// RecordLockWait записывает время ожидания блокировки
func (m *enrollmentMetrics) RecordLockWait(seconds float64) {
	m.lockWait.Observe(seconds)
}

// RecordLockBusy увеличивает счетчик неудачных захватов блокировки
func (m *enrollmentMetrics) RecordLockBusy() {
	m.lockBusy.Inc()
}
