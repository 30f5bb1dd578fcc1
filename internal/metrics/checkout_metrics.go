package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики сценария создания заказа.
type CheckoutMetrics struct {
	started   prometheus.Counter
	completed prometheus.Counter
	failed    *prometheus.CounterVec

	duration      prometheus.Histogram
	stageDuration *prometheus.HistogramVec

	stockPending prometheus.Counter
	inFlight     prometheus.Gauge
}

// NewCheckoutMetrics создаёт метрики в DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer создаёт метрики в переданном реестре (удобно для тестов).
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		started: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_checkout_started_total",
			Help: "Total number of order creation attempts",
		}),
		completed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_checkout_completed_total",
			Help: "Total number of orders created successfully",
		}),
		failed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_checkout_failed_total",
			Help: "Total number of failed order creation attempts by error kind",
		}, []string{"kind"}),
		duration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_checkout_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stageDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_checkout_stage_duration_seconds",
			Help:    "Duration of individual order creation stages in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"stage"}),
		stockPending: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderdesk_checkout_stock_pending_total",
			Help: "Total number of orders persisted without a successful stock adjustment",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderdesk_checkout_in_flight",
			Help: "Number of order creations currently in progress",
		}),
	}
}

// RecordStarted увеличивает счётчик попыток и количество выполняющихся сценариев.
func (m *CheckoutMetrics) RecordStarted() {
	m.started.Inc()
	m.inFlight.Inc()
}

// RecordFinished фиксирует завершение сценария и его длительность.
func (m *CheckoutMetrics) RecordFinished(duration time.Duration) {
	m.inFlight.Dec()
	m.duration.Observe(duration.Seconds())
}

// RecordCompleted увеличивает счётчик успешно созданных заказов.
func (m *CheckoutMetrics) RecordCompleted() {
	m.completed.Inc()
}

// RecordFailed увеличивает счётчик ошибок с меткой вида ошибки.
func (m *CheckoutMetrics) RecordFailed(kind string) {
	if kind == "" {
		kind = "internal"
	}
	m.failed.WithLabelValues(kind).Inc()
}

// RecordStockPending отмечает заказ, сохранённый без списания остатков.
func (m *CheckoutMetrics) RecordStockPending() {
	m.stockPending.Inc()
}

// RecordStageDuration записывает время выполнения стадии.
func (m *CheckoutMetrics) RecordStageDuration(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
