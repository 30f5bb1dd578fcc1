package app

import (
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/checkout"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
)

// newCheckoutWorkflow собирает workflow создания заказа. Транзакция используется
// только в транзакционном режиме; без неё списание остатков идёт после записи заказа.
func newCheckoutWorkflow(cfg Config, deps *runtimeDependencies, logger *log.Entry) *checkout.Workflow {
	opts := []checkout.Option{
		checkout.WithOutbox(deps.outboxRepo),
		checkout.WithTimeline(deps.timelineRepo),
		checkout.WithLogger(logger.WithField("layer", "checkout")),
		checkout.WithMetrics(metrics.NewCheckoutMetrics()),
		checkout.WithTracerProvider(otel.GetTracerProvider()),
	}
	if cfg.TransactionalCheckout {
		opts = append(opts, checkout.WithTransactor(deps.transactor))
	}
	return checkout.NewWorkflow(deps.customers, deps.products, deps.repo, opts...)
}

// newOrderService связывает workflow с хранилищами для чтения.
func newOrderService(cfg Config, deps *runtimeDependencies, logger *log.Entry) *orders.Service {
	return orders.NewService(orders.Dependencies{
		Creator:   newCheckoutWorkflow(cfg, deps, logger),
		Orders:    deps.repo,
		Timeline:  deps.timelineRepo,
		Customers: deps.customers,
		Products:  deps.products,
		Logger:    logger.WithField("layer", "orders"),
	})
}
