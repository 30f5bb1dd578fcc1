package memory

import "github.com/vladislavdragonenkov/orderdesk/internal/domain"

// Store собирает все in-memory репозитории и общий транзакционный контур над ними.
type Store struct {
	Customers   domain.CustomerRegistry
	Products    domain.ProductRepository
	Orders      domain.OrderRepository
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository

	tx *transactor
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	tx := newTransactor()

	return &Store{
		Customers:   newCustomerRepository(tx),
		Products:    newProductRepository(tx),
		Orders:      newOrderRepository(tx),
		Outbox:      newOutboxRepository(tx),
		Timeline:    newTimelineRepository(tx),
		Idempotency: newIdempotencyRepository(),
		tx:          tx,
	}
}

// Transactor возвращает транзакционный контур над репозиториями Store.
func (s *Store) Transactor() domain.Transactor {
	return s.tx
}
