package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// productRepositoryInMemory: каталог товаров с остатками в памяти.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	gate  *transactor
	items map[string]domain.Product
}

// NewProductRepository создаёт in-memory реализацию ProductRepository.
func NewProductRepository() domain.ProductRepository {
	return newProductRepository(nil)
}

func newProductRepository(gate *transactor) *productRepositoryInMemory {
	return &productRepositoryInMemory{gate: gate, items: make(map[string]domain.Product)}
}

// LookupMany возвращает найденные товары в порядке запрошенных идентификаторов.
func (r *productRepositoryInMemory) LookupMany(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		if product, ok := r.items[id]; ok {
			result = append(result, product)
		}
	}
	return result, nil
}

// UpdateQuantity применяет пачку новых остатков атомарно: либо все, либо ни одного.
func (r *productRepositoryInMemory) UpdateQuantity(ctx context.Context, updates []domain.StockUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.gate.exclusive(ctx, func(tx *txJournal) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		previous := make(map[string]domain.Product, len(updates))
		for _, update := range updates {
			if update.Quantity < 0 {
				return fmt.Errorf("product %s: %w", update.ProductID, domain.ErrStockNegative)
			}
			product, ok := r.items[update.ProductID]
			if !ok {
				return fmt.Errorf("product %s: %w", update.ProductID, domain.ErrProductNotFound)
			}
			previous[update.ProductID] = product
		}

		now := time.Now().UTC()
		for _, update := range updates {
			product := r.items[update.ProductID]
			product.Quantity = update.Quantity
			product.UpdatedAt = now
			r.items[update.ProductID] = product
		}
		tx.record(func() { r.restore(previous, nil) })
		return nil
	})
}

// Upsert создаёт или перезаписывает карточку товара.
func (r *productRepositoryInMemory) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	product.UpdatedAt = time.Now().UTC()

	err := r.gate.exclusive(ctx, func(tx *txJournal) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		if previous, existed := r.items[product.ID]; existed {
			tx.record(func() { r.restore(map[string]domain.Product{product.ID: previous}, nil) })
		} else {
			tx.record(func() { r.restore(nil, []string{product.ID}) })
		}
		r.items[product.ID] = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// restore возвращает прежние карточки и удаляет добавленные.
func (r *productRepositoryInMemory) restore(previous map[string]domain.Product, added []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, product := range previous {
		r.items[id] = product
	}
	for _, id := range added {
		delete(r.items, id)
	}
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
