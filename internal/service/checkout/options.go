package checkout

import (
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Option настраивает Workflow.
type Option func(*Workflow)

// WithTransactor включает атомарное создание заказа и списание остатков.
func WithTransactor(tx domain.Transactor) Option {
	return func(w *Workflow) {
		w.tx = tx
	}
}

// WithOutbox включает запись события OrderCreated в transactional outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(w *Workflow) {
		w.outbox = outbox
	}
}

// WithTimeline включает запись событий в историю заказа.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(w *Workflow) {
		w.timeline = timeline
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics задаёт Prometheus-метрики сценария.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// WithTracerProvider задаёт провайдер трассировки вместо глобального.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(w *Workflow) {
		if tp != nil {
			w.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithRetry задаёт повторы записи остатков для режима без транзакции.
func WithRetry(cfg RetryConfig) Option {
	return func(w *Workflow) {
		w.retry = cfg
	}
}

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов и позиций.
func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) {
		if newID != nil {
			w.newID = newID
		}
	}
}
