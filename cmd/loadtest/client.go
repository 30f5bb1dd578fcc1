package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
)

// Исходы вызова CreateOrder.
const (
	outcomeCreated           = "created"
	outcomeStockPending      = "stock_pending"
	outcomeInsufficientStock = "insufficient_stock"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, idempotencyKey, customerID, productID string, quantity int32) string
}

type httpOrders struct {
	baseURL string
	client  *http.Client
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *httpOrders) CreateOrder(ctx context.Context, key, customerID, productID string, quantity int32) string {
	body := map[string]any{
		"customer_id": customerID,
		"items":       []map[string]any{{"product_id": productID, "quantity": quantity}},
	}
	resp, err := h.do(ctx, http.MethodPost, "/v1/orders", key, body)
	if err != nil {
		return "transport_error"
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return outcomeCreated
	case http.StatusAccepted:
		return outcomeStockPending
	}
	var decoded errorBody
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	if decoded.Error == outcomeInsufficientStock {
		return outcomeInsufficientStock
	}
	return fmt.Sprintf("http_%d_%s", resp.StatusCode, decoded.Error)
}

// seed регистрирует клиента (повторная регистрация не ошибка) и выставляет остаток товара.
func (h *httpOrders) seed(ctx context.Context, cfg config) error {
	resp, err := h.do(ctx, http.MethodPost, "/v1/customers", "", map[string]any{
		"id":   cfg.customerID,
		"name": "Load Test",
	})
	if err != nil {
		return err
	}
	_ = drain(resp)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("register customer: unexpected status %d", resp.StatusCode)
	}

	resp, err = h.do(ctx, http.MethodPut, "/v1/products/"+url.PathEscape(cfg.productID), "", map[string]any{
		"name":        "Load Test Item",
		"quantity":    cfg.stock,
		"price_minor": cfg.priceMinor,
	})
	if err != nil {
		return err
	}
	_ = drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upsert product: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (h *httpOrders) do(ctx context.Context, method, path, key string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return h.client.Do(req)
}

func drain(resp *http.Response) error {
	defer resp.Body.Close()
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}

type grpcOrders struct {
	client grpcsvc.OrderServiceClient
}

func (g *grpcOrders) CreateOrder(ctx context.Context, key, customerID, productID string, quantity int32) string {
	ctx = metadata.AppendToOutgoingContext(ctx, "idempotency-key", key)
	resp, err := g.client.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{
		CustomerID: customerID,
		Items:      []*grpcsvc.OrderItemSpec{{ProductID: productID, Quantity: quantity}},
	})
	if err != nil {
		if status.Code(err) == codes.FailedPrecondition {
			return outcomeInsufficientStock
		}
		return "grpc_" + status.Code(err).String()
	}
	if resp.Order != nil && resp.Order.Status == outcomeStockPending {
		return outcomeStockPending
	}
	return outcomeCreated
}
