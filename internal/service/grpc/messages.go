package grpcsvc

import "time"

// CreateOrderRequest: запрос на создание заказа.
type CreateOrderRequest struct {
	CustomerID string           `json:"customer_id"`
	Items      []*OrderItemSpec `json:"items"`
}

// OrderItemSpec: товар и количество в запросе.
type OrderItemSpec struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// CreateOrderResponse возвращает созданный заказ.
type CreateOrderResponse struct {
	Order *Order `json:"order"`
}

// GetOrderRequest: запрос заказа по идентификатору.
type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

// GetOrderResponse: заказ и его таймлайн.
type GetOrderResponse struct {
	Order    *Order           `json:"order"`
	Timeline []*TimelineEvent `json:"timeline"`
}

// ListOrdersRequest: запрос заказов клиента.
type ListOrdersRequest struct {
	CustomerID string `json:"customer_id"`
	PageSize   int32  `json:"page_size"`
}

// ListOrdersResponse: заказы клиента, новые первыми.
type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

// Order: представление заказа в API.
type Order struct {
	ID          string       `json:"id"`
	CustomerID  string       `json:"customer_id"`
	Status      string       `json:"status"`
	AmountMinor int64        `json:"amount_minor"`
	Items       []*OrderItem `json:"items"`
	Version     int64        `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// OrderItem: позиция заказа со снимком цены.
type OrderItem struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
}

// TimelineEvent: событие истории заказа.
type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}
