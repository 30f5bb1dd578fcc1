// Package httpapi: HTTP/JSON транспорт сервиса заказов поверх chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
)

const (
	// HeaderIdempotencyKey: заголовок с ключом идемпотентности создания заказа.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplayed выставляется, если ответ взят из кэша идемпотентности.
	HeaderIdempotentReplayed = "Idempotent-Replayed"

	operationCreateOrder = "POST /v1/orders"
	maxBodyBytes         = 1 << 20
)

// OrderService: операции, которые обслуживает HTTP-слой.
type OrderService interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (orders.OrderDetails, error)
	ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
	RegisterCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// Handler обрабатывает HTTP-запросы к заказам, клиентам и товарам.
type Handler struct {
	service OrderService
	guard   *idempotency.Guard
	logger  *log.Entry
}

// NewHandler создаёт обработчик. guard может быть nil: тогда Idempotency-Key игнорируется.
func NewHandler(service OrderService, guard *idempotency.Guard, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{service: service, guard: guard, logger: logger}
}

// CreateOrder создаёт заказ. При подключённом хранилище идемпотентности требует Idempotency-Key.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Хешируем нормализованное тело, чтобы пробелы и порядок полей не влияли на ключ.
	canonical, err := json.Marshal(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "failed to encode request"})
		return
	}

	resp, replayed, err := h.guard.Do(
		r.Context(),
		r.Header.Get(HeaderIdempotencyKey),
		idempotency.HashRequest(operationCreateOrder, canonical),
		func(ctx context.Context) idempotency.Response {
			return h.createOrder(ctx, req)
		},
	)
	if err != nil {
		status, body := statusFor(err)
		writeError(w, status, body)
		return
	}

	if replayed {
		w.Header().Set(HeaderIdempotentReplayed, "true")
	}
	writeRaw(w, resp.Status, resp.Body)
}

func (h *Handler) createOrder(ctx context.Context, req createOrderRequest) idempotency.Response {
	order, err := h.service.CreateOrder(ctx, req.toDomain())
	if err == nil {
		return encodeResponse(http.StatusCreated, mapOrder(order), false)
	}

	// Заказ уже сохранён, остатки будут сверены отдельно: клиенту отдаём сам заказ.
	if kind, _ := domain.KindOf(err); kind == domain.KindStockAdjustment && order.ID != "" {
		h.logger.WithError(err).WithField("order_id", order.ID).Warn("order accepted with pending stock adjustment")
		return encodeResponse(http.StatusAccepted, mapOrder(order), false)
	}

	status, body := statusFor(err)
	resp := encodeResponse(status, body, true)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("customer_id", req.CustomerID).Error("create order failed")
		resp.Retryable = true
	}
	return resp
}

// GetOrder возвращает заказ вместе с таймлайном.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderDetails(details))
}

// ListOrders возвращает заказы клиента; поддерживает ?limit=N.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	list, err := h.service.ListOrders(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := listOrdersResponse{Orders: make([]orderResponse, 0, len(list))}
	for _, order := range list {
		resp.Orders = append(resp.Orders, mapOrder(order))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RegisterCustomer регистрирует клиента.
func (h *Handler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	customer, err := h.service.RegisterCustomer(r.Context(), domain.Customer{
		ID:    req.ID,
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapCustomer(customer))
}

// UpsertProduct создаёт или обновляет товар с идентификатором из пути.
func (h *Handler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.service.UpsertProduct(r.Context(), domain.Product{
		ID:         chi.URLParam(r, "id"),
		Name:       req.Name,
		Quantity:   req.Quantity,
		PriceMinor: req.PriceMinor,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(product))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
	}
	writeError(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid_json", Message: msg})
		return false
	}
	return true
}

func encodeResponse(status int, v any, failed bool) idempotency.Response {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(`{"error":"internal","message":"failed to encode response"}`)
		return idempotency.Response{Body: body, Status: http.StatusInternalServerError, Failed: true, Retryable: true}
	}
	return idempotency.Response{Body: body, Status: status, Failed: failed}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}
