package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type productRepository struct {
	store *Store
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{store: store}
}

// LookupMany читает товары одним запросом. Внутри транзакции строки блокируются
// FOR UPDATE в порядке id, поэтому конкурентные заказы на один товар выполняются по очереди.
func (r *productRepository) LookupMany(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT id, name, quantity, price_minor, updated_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id`
	if _, inTx := txFromContext(ctx); inTx {
		query += " FOR UPDATE"
	}

	rows, err := r.store.querier(ctx).QueryContext(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Product, len(productIDs))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.PriceMinor, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	result := make([]domain.Product, 0, len(byID))
	for _, id := range productIDs {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// UpdateQuantity записывает новые остатки; без внешней транзакции открывает собственную.
func (r *productRepository) UpdateQuantity(ctx context.Context, updates []domain.StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		now := time.Now().UTC()
		q := r.store.querier(ctx)
		for _, update := range updates {
			res, err := q.ExecContext(opCtx, `
				UPDATE products
				SET quantity = $2,
				    updated_at = $3
				WHERE id = $1
			`, update.ProductID, update.Quantity, now)
			if err != nil {
				if isCheckViolation(err) {
					return fmt.Errorf("product %s: %w", update.ProductID, domain.ErrStockNegative)
				}
				return fmt.Errorf("update product quantity: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("product %s: %w", update.ProductID, domain.ErrProductNotFound)
			}
		}
		return nil
	})
}

func (r *productRepository) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	product.UpdatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.store.querier(ctx).ExecContext(ctx, `
		INSERT INTO products (id, name, quantity, price_minor, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    quantity = EXCLUDED.quantity,
		    price_minor = EXCLUDED.price_minor,
		    updated_at = EXCLUDED.updated_at
	`, product.ID, product.Name, product.Quantity, product.PriceMinor, product.UpdatedAt); err != nil {
		return domain.Product{}, fmt.Errorf("upsert product: %w", err)
	}
	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
