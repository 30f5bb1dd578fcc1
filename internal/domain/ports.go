package domain

import (
	"context"
	"time"
)

// CustomerDirectory: поиск клиента по идентификатору.
type CustomerDirectory interface {
	// Lookup возвращает клиента или ErrCustomerNotFound.
	Lookup(ctx context.Context, customerID string) (Customer, error)
}

// ProductCatalog: чтение товаров и пакетное обновление остатков.
type ProductCatalog interface {
	// LookupMany возвращает только найденные товары; отсутствующие id просто пропускаются.
	LookupMany(ctx context.Context, productIDs []string) ([]Product, error)
	// UpdateQuantity записывает новые абсолютные остатки одной пачкой.
	UpdateQuantity(ctx context.Context, updates []StockUpdate) error
}

// OrderLedger: создание и хранение агрегата заказа.
type OrderLedger interface {
	// Create сохраняет новый заказ вместе с позициями и возвращает сохранённую версию.
	Create(ctx context.Context, order Order) (Order, error)
}

// CustomerRegistry расширяет CustomerDirectory регистрацией клиентов.
type CustomerRegistry interface {
	CustomerDirectory
	Register(ctx context.Context, customer Customer) (Customer, error)
}

// ProductRepository расширяет ProductCatalog записью карточек товаров.
type ProductRepository interface {
	ProductCatalog
	Upsert(ctx context.Context, product Product) (Product, error)
}

// Transactor выполняет fn в одной транзакции: при ошибке все изменения откатываются.
// Репозитории, получившие ctx из fn, работают внутри этой транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Release удаляет ключ в статусе processing, чтобы повтор выполнил запрос заново.
	Release(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// CheckoutStage задаёт константы стадий сценария для метрик/логов.
type CheckoutStage string

const (
	StageValidating     CheckoutStage = "validating"
	StageAssembling     CheckoutStage = "assembling"
	StagePersisting     CheckoutStage = "persisting"
	StageAdjustingStock CheckoutStage = "adjusting_stock"
	StageDone           CheckoutStage = "done"
	StageFailed         CheckoutStage = "failed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
