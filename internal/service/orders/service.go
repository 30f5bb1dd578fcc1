// Package orders объединяет сценарий создания заказа и чтение заказов в одну точку входа
// для транспортов (HTTP и gRPC).
package orders

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// OrderCreator: сценарий создания заказа.
type OrderCreator interface {
	Execute(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error)
}

// OrderDetails: заказ вместе с его историей.
type OrderDetails struct {
	Order    domain.Order
	Timeline []domain.TimelineEvent
}

// Service: фасад над сценарием создания заказа и справочниками.
type Service struct {
	creator   OrderCreator
	orders    domain.OrderRepository
	timeline  domain.TimelineRepository
	customers domain.CustomerRegistry
	products  domain.ProductRepository
	logger    *log.Entry
}

// Dependencies перечисляет зависимости Service.
type Dependencies struct {
	Creator   OrderCreator
	Orders    domain.OrderRepository
	Timeline  domain.TimelineRepository
	Customers domain.CustomerRegistry
	Products  domain.ProductRepository
	Logger    *log.Entry
}

// NewService создаёт фасад. Timeline необязателен: без него GetOrder отдаёт пустую историю.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "orders")
	}
	return &Service{
		creator:   deps.Creator,
		orders:    deps.Orders,
		timeline:  deps.Timeline,
		customers: deps.Customers,
		products:  deps.Products,
		logger:    logger,
	}
}

// CreateOrder запускает сценарий создания заказа.
func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	for i := range req.Items {
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
	}
	return s.creator.Execute(ctx, req)
}

// GetOrder возвращает заказ и его таймлайн.
func (s *Service) GetOrder(ctx context.Context, orderID string) (OrderDetails, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderDetails{}, domain.ErrOrderNotFound
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}

	details := OrderDetails{Order: order, Timeline: []domain.TimelineEvent{}}
	if s.timeline == nil {
		return details, nil
	}

	events, err := s.timeline.List(ctx, orderID)
	if err != nil {
		return OrderDetails{}, fmt.Errorf("list timeline for order %s: %w", orderID, err)
	}
	details.Timeline = events
	return details, nil
}

// ListOrders возвращает заказы клиента, новые первыми. limit<=0 означает значение по умолчанию.
func (s *Service) ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	return s.orders.ListByCustomer(ctx, customerID, normalizeLimit(limit))
}

// RegisterCustomer добавляет клиента в справочник.
func (s *Service) RegisterCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	customer.ID = strings.TrimSpace(customer.ID)
	if customer.ID == "" {
		return domain.Customer{}, domain.ErrCustomerRequired
	}

	registered, err := s.customers.Register(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logger.WithField("customer_id", registered.ID).Info("customer registered")
	return registered, nil
}

// UpsertProduct создаёт или обновляет карточку товара вместе с остатком.
func (s *Service) UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.ID = strings.TrimSpace(product.ID)

	saved, err := s.products.Upsert(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.WithFields(log.Fields{
		"product_id": saved.ID,
		"quantity":   saved.Quantity,
	}).Info("product upserted")
	return saved, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
