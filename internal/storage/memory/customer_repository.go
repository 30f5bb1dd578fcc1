package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// customerRepositoryInMemory: справочник клиентов в памяти.
type customerRepositoryInMemory struct {
	mu    sync.RWMutex
	gate  *transactor
	items map[string]domain.Customer
}

// NewCustomerRepository создаёт in-memory реализацию CustomerRegistry.
func NewCustomerRepository() domain.CustomerRegistry {
	return newCustomerRepository(nil)
}

func newCustomerRepository(gate *transactor) *customerRepositoryInMemory {
	return &customerRepositoryInMemory{gate: gate, items: make(map[string]domain.Customer)}
}

// Lookup возвращает клиента или ErrCustomerNotFound.
func (r *customerRepositoryInMemory) Lookup(ctx context.Context, customerID string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.items[customerID]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// Register добавляет клиента; повторная регистрация того же ID запрещена.
func (r *customerRepositoryInMemory) Register(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}
	customer.ID = strings.TrimSpace(customer.ID)
	if customer.ID == "" {
		return domain.Customer{}, domain.ErrCustomerRequired
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	err := r.gate.exclusive(ctx, func(tx *txJournal) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		if _, exists := r.items[customer.ID]; exists {
			return domain.ErrCustomerAlreadyExists
		}
		r.items[customer.ID] = customer
		tx.record(func() {
			r.mu.Lock()
			delete(r.items, customer.ID)
			r.mu.Unlock()
		})
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

var _ domain.CustomerRegistry = (*customerRepositoryInMemory)(nil)
