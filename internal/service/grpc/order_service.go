package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
)

const (
	idempotencyKeyHeader   = "idempotency-key"
	defaultListOrdersLimit = 100
)

// Orders: операции фасада заказов, которые обслуживает gRPC-слой.
type Orders interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (orders.OrderDetails, error)
	ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
}

// OrderService реализует orderdesk.v1.OrderService поверх фасада заказов.
type OrderService struct {
	orders Orders
	guard  *idempotency.Guard
	logger *log.Entry
}

// NewOrderService конструирует сервис. guard может быть nil: тогда ключ идемпотентности не нужен.
func NewOrderService(svc Orders, guard *idempotency.Guard, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.WithField("component", "grpc-order-service")
	}
	return &OrderService{orders: svc, guard: guard, logger: logger}
}

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// CreateOrder создаёт заказ. Повтор с тем же idempotency-key возвращает первый результат.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if !s.guard.Enabled() {
		return s.createOrderInternal(ctx, req)
	}

	key, err := readIdempotencyKey(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	var live *CreateOrderResponse
	var liveErr error
	resp, replayed, err := s.guard.Do(ctx, key, idempotency.HashRequest(MethodCreateOrder, body), func(ctx context.Context) idempotency.Response {
		live, liveErr = s.createOrderInternal(ctx, req)
		return s.cacheable(key, live, liveErr)
	})
	if err != nil {
		return nil, guardStatus(err)
	}
	if !replayed {
		return live, liveErr
	}
	return s.replay(key, resp)
}

func (s *OrderService) createOrderInternal(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	items := make([]domain.RequestedItem, 0, len(req.Items))
	for idx, item := range req.Items {
		if item == nil {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d] is nil", idx)
		}
		items = append(items, domain.RequestedItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := s.orders.CreateOrder(ctx, domain.CreateOrderRequest{CustomerID: req.CustomerID, Items: items})
	if err != nil {
		// Заказ сохранён в stock_pending: это не ошибка клиента, отдаём заказ.
		if kind, _ := domain.KindOf(err); kind == domain.KindStockAdjustment && order.ID != "" {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("order accepted with pending stock adjustment")
			return &CreateOrderResponse{Order: toAPIOrder(order)}, nil
		}
		return nil, s.toStatus(err, "CreateOrder")
	}
	return &CreateOrderResponse{Order: toAPIOrder(order)}, nil
}

// GetOrder возвращает состояние заказа и таймлайн событий.
func (s *OrderService) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	if req == nil || strings.TrimSpace(req.OrderID) == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	details, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err, "GetOrder")
	}

	timeline := make([]*TimelineEvent, 0, len(details.Timeline))
	for _, event := range details.Timeline {
		timeline = append(timeline, &TimelineEvent{Type: event.Type, Reason: event.Reason, Occurred: event.Occurred})
	}
	return &GetOrderResponse{Order: toAPIOrder(details.Order), Timeline: timeline}, nil
}

// ListOrders возвращает заказы клиента.
func (s *OrderService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if req == nil || strings.TrimSpace(req.CustomerID) == "" {
		return nil, status.Error(codes.InvalidArgument, "customer_id is required")
	}

	limit := int(req.PageSize)
	if limit <= 0 {
		limit = defaultListOrdersLimit
	}

	list, err := s.orders.ListOrders(ctx, req.CustomerID, limit)
	if err != nil {
		return nil, s.toStatus(err, "ListOrders")
	}

	result := make([]*Order, 0, len(list))
	for _, order := range list {
		result = append(result, toAPIOrder(order))
	}
	return &ListOrdersResponse{Orders: result}, nil
}

// toStatus переводит доменную ошибку в gRPC-статус.
func (s *OrderService) toStatus(err error, operation string) error {
	if _, ok := status.FromError(err); ok && status.Code(err) != codes.Unknown {
		return err
	}

	var checkoutErr *domain.CheckoutError
	if errors.As(err, &checkoutErr) {
		switch checkoutErr.Kind {
		case domain.KindInvalidRequest:
			return status.Error(codes.InvalidArgument, checkoutErr.Error())
		case domain.KindCustomerNotFound, domain.KindProductNotFound:
			return status.Error(codes.NotFound, checkoutErr.Error())
		case domain.KindInsufficientStock:
			return status.Error(codes.FailedPrecondition, checkoutErr.Error())
		}
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, domain.ErrOrderNotFound.Error())
	case errors.Is(err, domain.ErrCustomerRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	s.logger.WithError(err).WithField("operation", operation).Error("order operation failed")
	return status.Error(codes.Internal, "internal error")
}

// cacheable готовит ответ к сохранению под ключом идемпотентности.
func (s *OrderService) cacheable(key string, resp *CreateOrderResponse, runErr error) idempotency.Response {
	if runErr != nil {
		st := status.Convert(runErr)
		code := st.Code()
		if code == codes.OK {
			code = codes.Internal
		}
		payload, err := json.Marshal(idempotencyErrorPayload{
			Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
			Message: st.Message(),
		})
		if err != nil {
			s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
			payload = nil
		}
		return idempotency.Response{Body: payload, Status: int(code), Failed: true, Retryable: transientCode(code)}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotent response")
	}
	return idempotency.Response{Body: data, Status: int(codes.OK)}
}

// transientCode отделяет сбои сервера от отказов по существу запроса.
func transientCode(code codes.Code) bool {
	switch code {
	case codes.Internal, codes.Unknown, codes.Unavailable, codes.DeadlineExceeded,
		codes.Aborted, codes.ResourceExhausted, codes.Canceled, codes.DataLoss:
		return true
	default:
		return false
	}
}

func (s *OrderService) replay(key string, resp idempotency.Response) (*CreateOrderResponse, error) {
	if resp.Failed {
		return nil, decodeIdempotencyFailure(resp)
	}
	if len(resp.Body) == 0 {
		return nil, status.Error(codes.Internal, "idempotency cache is empty")
	}

	out := new(CreateOrderResponse)
	if err := json.Unmarshal(resp.Body, out); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to decode cached idempotency response")
		return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	return out, nil
}

func decodeIdempotencyFailure(resp idempotency.Response) error {
	const fallback = "previous request with the same idempotency key failed"

	var payload idempotencyErrorPayload
	if len(resp.Body) > 0 && json.Unmarshal(resp.Body, &payload) == nil {
		if code, ok := grpcCode(int(payload.Code)); ok && code != codes.OK {
			if payload.Message == "" {
				payload.Message = fallback
			}
			return status.Error(code, payload.Message)
		}
	}

	if code, ok := grpcCode(resp.Status); ok && code != codes.OK {
		return status.Error(code, fallback)
	}
	return status.Error(codes.Internal, fallback)
}

func grpcCode(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

func guardStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, idempotency.ErrInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return status.Error(codes.InvalidArgument, "idempotency-key metadata is required")
	default:
		return status.Error(codes.Internal, "failed to initialize idempotency request")
	}
}

func readIdempotencyKey(ctx context.Context) (string, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(idempotencyKeyHeader)
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0]), nil
		}
	}

	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		values := md.Get(idempotencyKeyHeader)
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0]), nil
		}
	}

	return "", status.Error(codes.InvalidArgument, "idempotency-key metadata is required")
}

func toAPIOrder(order domain.Order) *Order {
	items := make([]*OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, &OrderItem{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceMinor: item.PriceMinor,
		})
	}
	return &Order{
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

var _ OrderServiceServer = (*OrderService)(nil)
