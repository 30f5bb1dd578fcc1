package domain

import "time"

// Типы агрегатов и событий, которые попадают в transactional outbox.
const (
	AggregateTypeOrder    = "order"
	EventTypeOrderCreated = "order.created"
)

// OrderCreatedPayload: тело события order.created.
type OrderCreatedPayload struct {
	OrderID     string                    `json:"order_id"`
	CustomerID  string                    `json:"customer_id"`
	Status      string                    `json:"status"`
	AmountMinor int64                     `json:"amount_minor"`
	Items       []OrderCreatedPayloadItem `json:"items"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// OrderCreatedPayloadItem: позиция заказа внутри события.
type OrderCreatedPayloadItem struct {
	ProductID  string `json:"product_id"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
}

// NewOrderCreatedPayload собирает тело события из сохранённого заказа.
func NewOrderCreatedPayload(order Order) OrderCreatedPayload {
	items := make([]OrderCreatedPayloadItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderCreatedPayloadItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceMinor: item.PriceMinor,
		})
	}
	return OrderCreatedPayload{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		AmountMinor: order.AmountMinor,
		Items:       items,
		CreatedAt:   order.CreatedAt,
	}
}
