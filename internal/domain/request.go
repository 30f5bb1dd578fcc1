package domain

import "fmt"

// RequestedItem: товар и количество из входящего запроса.
type RequestedItem struct {
	ProductID string
	Quantity  int32
}

// CreateOrderRequest: провалидированная форма запроса на создание заказа.
type CreateOrderRequest struct {
	CustomerID string
	Items      []RequestedItem
}

// ProductIDs возвращает идентификаторы товаров в порядке запроса.
func (r CreateOrderRequest) ProductIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Validate проверяет форму запроса. Повторы product_id отклоняются целиком,
// чтобы количество по одному товару не зависело от порядка позиций.
func (r CreateOrderRequest) Validate() error {
	if r.CustomerID == "" {
		return &CheckoutError{Kind: KindInvalidRequest, Err: ErrCustomerRequired}
	}
	if len(r.Items) == 0 {
		return &CheckoutError{Kind: KindInvalidRequest, Err: ErrItemsRequired}
	}

	seen := make(map[string]struct{}, len(r.Items))
	var duplicates []string
	for idx, item := range r.Items {
		if item.ProductID == "" {
			return &CheckoutError{
				Kind:    KindInvalidRequest,
				Message: fmt.Sprintf("items[%d]", idx),
				Err:     ErrProductIDRequired,
			}
		}
		if item.Quantity <= 0 {
			return &CheckoutError{
				Kind:       KindInvalidRequest,
				Message:    fmt.Sprintf("items[%d]", idx),
				ProductIDs: []string{item.ProductID},
				Err:        ErrItemQtyInvalid,
			}
		}
		if _, dup := seen[item.ProductID]; dup {
			duplicates = append(duplicates, item.ProductID)
			continue
		}
		seen[item.ProductID] = struct{}{}
	}
	if len(duplicates) > 0 {
		return &CheckoutError{Kind: KindInvalidRequest, ProductIDs: duplicates, Err: ErrDuplicateProduct}
	}

	return nil
}
