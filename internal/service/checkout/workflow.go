// Package checkout реализует сценарий создания заказа: проверка клиента и товаров,
// сборка позиций, сохранение заказа и списание остатков.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/orderdesk/internal/service/checkout"

// orderSaver позволяет пометить заказ как stock_pending, если ledger это умеет.
type orderSaver interface {
	Save(ctx context.Context, order domain.Order) error
}

// Workflow создаёт заказы. Сам по себе не хранит изменяемого состояния
// и безопасен для конкурентного использования.
type Workflow struct {
	customers domain.CustomerDirectory
	catalog   domain.ProductCatalog
	ledger    domain.OrderLedger

	tx       domain.Transactor
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
	tracer   trace.Tracer
	retry    RetryConfig
	now      func() time.Time
	newID    func() string
}

// NewWorkflow собирает сценарий из трёх обязательных зависимостей и опций.
func NewWorkflow(customers domain.CustomerDirectory, catalog domain.ProductCatalog, ledger domain.OrderLedger, opts ...Option) *Workflow {
	w := &Workflow{
		customers: customers,
		catalog:   catalog,
		ledger:    ledger,
		logger:    log.WithField("component", "checkout"),
		tracer:    otel.Tracer(tracerName),
		retry:     DefaultRetryConfig(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute создаёт заказ по запросу.
//
// Проверки идут строго по порядку и прерывают сценарий до любых записей:
// форма запроса, клиент, наличие товаров, достаточность остатков.
// С Transactor заказ, списание остатков, outbox и timeline пишутся атомарно.
// Без него при неудачном списании возвращается сохранённый заказ в статусе
// stock_pending вместе с ошибкой вида KindStockAdjustment.
func (w *Workflow) Execute(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	ctx, span := w.tracer.Start(ctx, "checkout.Execute", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("items.count", len(req.Items)),
	))
	defer span.End()

	run := &execution{w: w, started: time.Now()}
	if w.metrics != nil {
		w.metrics.RecordStarted()
	}

	order, err := w.execute(ctx, run, req)
	run.finish(err)

	logger := w.logger.WithFields(log.Fields{
		"customer_id": req.CustomerID,
		"items":       len(req.Items),
		"duration":    time.Since(run.started),
	})
	if order.ID != "" {
		span.SetAttributes(attribute.String("order.id", order.ID))
		logger = logger.WithField("order_id", order.ID)
	}

	if err != nil {
		kind, _ := domain.KindOf(err)
		span.SetAttributes(attribute.String("checkout.error_kind", string(kind)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if w.metrics != nil {
			w.metrics.RecordFailed(string(kind))
		}
		entry := logger.WithError(err).WithField("stage", run.failedAt)
		if kind == "" || kind == domain.KindStockAdjustment {
			entry.Error("order creation failed")
		} else {
			entry.WithField("kind", kind).Info("order rejected")
		}
		return order, err
	}

	if w.metrics != nil {
		w.metrics.RecordCompleted()
	}
	logger.WithField("amount_minor", order.AmountMinor).Info("order created")
	return order, nil
}

func (w *Workflow) execute(ctx context.Context, run *execution, req domain.CreateOrderRequest) (domain.Order, error) {
	run.enter(domain.StageValidating)
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}

	if w.tx != nil {
		var order domain.Order
		err := w.tx.WithinTx(ctx, func(ctx context.Context) error {
			created, snapshot, err := w.place(ctx, run, req)
			if err != nil {
				return err
			}

			run.enter(domain.StageAdjustingStock)
			if err := w.catalog.UpdateQuantity(ctx, stockUpdates(created, snapshot)); err != nil {
				return fmt.Errorf("adjust stock: %w", err)
			}
			if err := w.publish(ctx, created); err != nil {
				return err
			}
			order = created
			return nil
		})
		if err != nil {
			return domain.Order{}, err
		}
		return order, nil
	}

	order, snapshot, err := w.place(ctx, run, req)
	if err != nil {
		return domain.Order{}, err
	}

	run.enter(domain.StageAdjustingStock)
	updates := stockUpdates(order, snapshot)
	attempts, err := w.retry.do(ctx, w.logger.WithField("order_id", order.ID), "update_quantity", func(ctx context.Context) error {
		return w.catalog.UpdateQuantity(ctx, updates)
	})
	if err != nil {
		return w.markStockPending(ctx, order, attempts, err)
	}

	if err := w.publish(ctx, order); err != nil {
		// Заказ и остатки уже записаны; потеря события не отменяет заказ.
		w.logger.WithError(err).WithField("order_id", order.ID).Error("failed to record order events")
	}
	return order, nil
}

// place проверяет клиента и товары, собирает позиции и сохраняет заказ.
// Возвращает сохранённый заказ и снимок остатков, по которому он проверялся.
func (w *Workflow) place(ctx context.Context, run *execution, req domain.CreateOrderRequest) (domain.Order, map[string]domain.Product, error) {
	if _, err := w.customers.Lookup(ctx, req.CustomerID); err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return domain.Order{}, nil, domain.NewCheckoutError(domain.KindCustomerNotFound, nil, nil)
		}
		return domain.Order{}, nil, fmt.Errorf("lookup customer: %w", err)
	}

	products, err := w.catalog.LookupMany(ctx, req.ProductIDs())
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("lookup products: %w", err)
	}
	snapshot := make(map[string]domain.Product, len(products))
	for _, p := range products {
		snapshot[p.ID] = p
	}

	var missing []string
	for _, item := range req.Items {
		if _, ok := snapshot[item.ProductID]; !ok {
			missing = append(missing, item.ProductID)
		}
	}
	if len(missing) > 0 {
		return domain.Order{}, nil, domain.NewCheckoutError(domain.KindProductNotFound, missing, nil)
	}

	var short []string
	for _, item := range req.Items {
		if item.Quantity > snapshot[item.ProductID].Quantity {
			short = append(short, item.ProductID)
		}
	}
	if len(short) > 0 {
		return domain.Order{}, nil, domain.NewCheckoutError(domain.KindInsufficientStock, short, nil)
	}

	run.enter(domain.StageAssembling)
	order := w.assemble(req, snapshot)
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, nil, fmt.Errorf("assembled order is inconsistent: %w", errors.Join(errs...))
	}

	run.enter(domain.StagePersisting)
	created, err := w.ledger.Create(ctx, order)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("persist order: %w", err)
	}
	return created, snapshot, nil
}

// assemble строит заказ: по одной позиции на товар в порядке запроса, цена берётся из каталога.
func (w *Workflow) assemble(req domain.CreateOrderRequest, snapshot map[string]domain.Product) domain.Order {
	now := w.now()
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ID:         w.newID(),
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceMinor: snapshot[item.ProductID].PriceMinor,
			CreatedAt:  now,
		})
	}

	return domain.Order{
		ID:          w.newID(),
		CustomerID:  req.CustomerID,
		Status:      domain.OrderStatusCreated,
		AmountMinor: domain.ItemsTotal(items),
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// stockUpdates считает новые остатки от снимка, прочитанного при проверке.
func stockUpdates(order domain.Order, snapshot map[string]domain.Product) []domain.StockUpdate {
	updates := make([]domain.StockUpdate, 0, len(order.Items))
	for _, item := range order.Items {
		updates = append(updates, domain.StockUpdate{
			ProductID: item.ProductID,
			Quantity:  snapshot[item.ProductID].Quantity - item.Quantity,
		})
	}
	return updates
}

func itemProductIDs(order domain.Order) []string {
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// publish пишет событие OrderCreated в outbox и timeline, если они подключены.
func (w *Workflow) publish(ctx context.Context, order domain.Order) error {
	if w.outbox != nil {
		payload, err := json.Marshal(domain.NewOrderCreatedPayload(order))
		if err != nil {
			return fmt.Errorf("marshal order created event: %w", err)
		}
		if _, err := w.outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateTypeOrder,
			AggregateID:   order.ID,
			EventType:     domain.EventTypeOrderCreated,
			Payload:       payload,
		}); err != nil {
			return fmt.Errorf("enqueue order created event: %w", err)
		}
	}

	if w.timeline != nil {
		if err := w.timeline.Append(ctx, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineOrderCreated,
			Reason:   fmt.Sprintf("%d item(s), amount %d", len(order.Items), order.AmountMinor),
			Occurred: order.CreatedAt,
		}); err != nil {
			return fmt.Errorf("append order timeline: %w", err)
		}
	}
	return nil
}

// markStockPending фиксирует заказ, для которого не удалось списать остатки.
func (w *Workflow) markStockPending(ctx context.Context, order domain.Order, attempts int, cause error) (domain.Order, error) {
	if w.metrics != nil {
		w.metrics.RecordStockPending()
	}
	logger := w.logger.WithError(cause).WithFields(log.Fields{
		"order_id": order.ID,
		"attempts": attempts,
	})

	// Запись статуса не должна зависеть от уже отменённого контекста запроса.
	bg := context.WithoutCancel(ctx)
	pending := order
	pending.Status = domain.OrderStatusStockPending

	if saver, ok := w.ledger.(orderSaver); ok {
		if err := saver.Save(bg, pending); err != nil {
			logger.WithField("save_error", err).Error("failed to mark order as stock_pending")
		} else {
			pending.Version++
		}
	}
	if w.timeline != nil {
		if err := w.timeline.Append(bg, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineOrderStockPending,
			Reason:   cause.Error(),
			Occurred: w.now(),
		}); err != nil {
			logger.WithField("timeline_error", err).Warn("failed to append stock_pending timeline event")
		}
	}

	logger.Error("order persisted but stock adjustment failed")
	return pending, domain.NewCheckoutError(domain.KindStockAdjustment, itemProductIDs(order), cause)
}

// execution отслеживает текущую стадию одного вызова Execute.
type execution struct {
	w            *Workflow
	started      time.Time
	stage        domain.CheckoutStage
	stageStarted time.Time
	failedAt     domain.CheckoutStage
}

func (e *execution) enter(stage domain.CheckoutStage) {
	e.closeStage()
	e.stage = stage
	e.stageStarted = time.Now()
}

func (e *execution) closeStage() {
	if e.stage != "" && e.w.metrics != nil {
		e.w.metrics.RecordStageDuration(string(e.stage), time.Since(e.stageStarted))
	}
}

func (e *execution) finish(err error) {
	e.closeStage()
	if err != nil {
		e.failedAt = e.stage
		e.stage = domain.StageFailed
	} else {
		e.stage = domain.StageDone
	}
	if e.w.metrics != nil {
		e.w.metrics.RecordFinished(time.Since(e.started))
	}
}
