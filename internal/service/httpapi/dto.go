package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
)

type createOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Items      []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type registerCustomerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type upsertProductRequest struct {
	Name       string `json:"name"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	CustomerID  string              `json:"customer_id"`
	Status      string              `json:"status"`
	AmountMinor int64               `json:"amount_minor"`
	Items       []orderItemResponse `json:"items"`
	Version     int64               `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type orderItemResponse struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Quantity   int32  `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
}

type orderDetailsResponse struct {
	orderResponse
	Timeline []timelineEventResponse `json:"timeline"`
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
}

type customerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type productResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Quantity   int32     `json:"quantity"`
	PriceMinor int64     `json:"price_minor"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type errorResponse struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

func (r createOrderRequest) toDomain() domain.CreateOrderRequest {
	items := make([]domain.RequestedItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.RequestedItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return domain.CreateOrderRequest{CustomerID: r.CustomerID, Items: items}
}

func mapOrder(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceMinor: item.PriceMinor,
		})
	}
	return orderResponse{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		AmountMinor: order.AmountMinor,
		Items:       items,
		Version:     order.Version,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func mapOrderDetails(details orders.OrderDetails) orderDetailsResponse {
	timeline := make([]timelineEventResponse, 0, len(details.Timeline))
	for _, event := range details.Timeline {
		timeline = append(timeline, timelineEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return orderDetailsResponse{orderResponse: mapOrder(details.Order), Timeline: timeline}
}

func mapCustomer(customer domain.Customer) customerResponse {
	return customerResponse{
		ID:        customer.ID,
		Name:      customer.Name,
		Email:     customer.Email,
		CreatedAt: customer.CreatedAt,
	}
}

func mapProduct(product domain.Product) productResponse {
	return productResponse{
		ID:         product.ID,
		Name:       product.Name,
		Quantity:   product.Quantity,
		PriceMinor: product.PriceMinor,
		UpdatedAt:  product.UpdatedAt,
	}
}
