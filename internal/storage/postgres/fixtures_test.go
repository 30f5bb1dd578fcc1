package postgres

import (
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func customerIDOnly(id string) domain.Customer {
	return domain.Customer{ID: id, Name: "Customer " + id}
}

func productStock(id string, qty int32, price int64) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Quantity: qty, PriceMinor: price}
}

func sampleOrder(id, customerID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ID:         id + "-item-1",
			ProductID:  "product-1",
			Quantity:   2,
			PriceMinor: 150,
			CreatedAt:  createdAt,
		},
		{
			ID:         id + "-item-2",
			ProductID:  "product-2",
			Quantity:   1,
			PriceMinor: 150,
			CreatedAt:  createdAt,
		},
	}

	return domain.Order{
		ID:          id,
		CustomerID:  customerID,
		Status:      domain.OrderStatusCreated,
		AmountMinor: 450,
		Items:       items,
		Version:     0,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}
