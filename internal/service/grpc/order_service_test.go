package grpcsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

const bufSize = 1024 * 1024

func idemCtx(ctx context.Context, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "idempotency-key", key)
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func newOrdersFacade(t *testing.T) (*orders.Service, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	workflow := checkout.NewWorkflow(store.Customers, store.Products, store.Orders,
		checkout.WithTransactor(store.Transactor()),
		checkout.WithOutbox(store.Outbox),
		checkout.WithTimeline(store.Timeline),
		checkout.WithMetrics(metrics.NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())),
		checkout.WithLogger(loggerForTests()),
	)
	svc := orders.NewService(orders.Dependencies{
		Creator:   workflow,
		Orders:    store.Orders,
		Timeline:  store.Timeline,
		Customers: store.Customers,
		Products:  store.Products,
	})

	ctx := context.Background()
	_, err := svc.RegisterCustomer(ctx, domain.Customer{ID: "customer-1"})
	require.NoError(t, err)
	_, err = svc.UpsertProduct(ctx, domain.Product{ID: "product-1", Quantity: 5, PriceMinor: 300})
	require.NoError(t, err)
	return svc, store
}

func newTestServer(t *testing.T, withGuard bool) (grpcsvc.OrderServiceClient, *memory.Store) {
	t.Helper()

	svc, store := newOrdersFacade(t)
	var guard *idempotency.Guard
	if withGuard {
		guard = idempotency.NewGuard(store.Idempotency)
	}

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	grpcsvc.RegisterOrderServiceServer(server, grpcsvc.NewOrderService(svc, guard, loggerForTests()))

	go func() {
		if err := server.Serve(listener); err != nil {
			loggerForTests().WithError(err).Error("grpc serve failed")
		}
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})
	return grpcsvc.NewOrderServiceClient(conn), store
}

func createRequest(qty int32) *grpcsvc.CreateOrderRequest {
	return &grpcsvc.CreateOrderRequest{
		CustomerID: "customer-1",
		Items:      []*grpcsvc.OrderItemSpec{{ProductID: "product-1", Quantity: qty}},
	}
}

func TestOrderService_CreateAndGet(t *testing.T) {
	client, _ := newTestServer(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.CreateOrder(ctx, createRequest(2))
	require.NoError(t, err)
	require.NotNil(t, resp.Order)
	require.NotEmpty(t, resp.Order.ID)
	require.Equal(t, int64(600), resp.Order.AmountMinor)
	require.Equal(t, string(domain.OrderStatusCreated), resp.Order.Status)

	getResp, err := client.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: resp.Order.ID})
	require.NoError(t, err)
	require.Equal(t, resp.Order.ID, getResp.Order.ID)
	require.Len(t, getResp.Timeline, 1)
	require.Equal(t, domain.TimelineOrderCreated, getResp.Timeline[0].Type)

	listResp, err := client.ListOrders(ctx, &grpcsvc.ListOrdersRequest{CustomerID: "customer-1"})
	require.NoError(t, err)
	require.Len(t, listResp.Orders, 1)
}

func TestOrderService_ErrorCodes(t *testing.T) {
	client, _ := newTestServer(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name string
		req  *grpcsvc.CreateOrderRequest
		want codes.Code
	}{
		{
			name: "unknown customer",
			req: &grpcsvc.CreateOrderRequest{
				CustomerID: "customer-9",
				Items:      []*grpcsvc.OrderItemSpec{{ProductID: "product-1", Quantity: 1}},
			},
			want: codes.NotFound,
		},
		{
			name: "unknown product",
			req: &grpcsvc.CreateOrderRequest{
				CustomerID: "customer-1",
				Items:      []*grpcsvc.OrderItemSpec{{ProductID: "product-9", Quantity: 1}},
			},
			want: codes.NotFound,
		},
		{name: "insufficient stock", req: createRequest(6), want: codes.FailedPrecondition},
		{name: "zero quantity", req: createRequest(0), want: codes.InvalidArgument},
		{
			name: "nil item",
			req:  &grpcsvc.CreateOrderRequest{CustomerID: "customer-1", Items: []*grpcsvc.OrderItemSpec{nil}},
			want: codes.InvalidArgument,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.CreateOrder(ctx, tc.req)
			require.Error(t, err)
			require.Equal(t, tc.want, status.Code(err), err.Error())
		})
	}

	_, err := client.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: "missing"})
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetOrder(ctx, &grpcsvc.GetOrderRequest{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ListOrders(ctx, &grpcsvc.ListOrdersRequest{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestOrderService_CreateOrder_RequiresIdempotencyKey(t *testing.T) {
	client, _ := newTestServer(t, true)

	_, err := client.CreateOrder(context.Background(), createRequest(1))
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestOrderService_CreateOrder_IdempotentReplay(t *testing.T) {
	client, store := newTestServer(t, true)
	ctx := idemCtx(context.Background(), "create-order-1")

	first, err := client.CreateOrder(ctx, createRequest(2))
	require.NoError(t, err)

	second, err := client.CreateOrder(ctx, createRequest(2))
	require.NoError(t, err)
	require.Equal(t, first.Order.ID, second.Order.ID)

	products, err := store.Products.LookupMany(context.Background(), []string{"product-1"})
	require.NoError(t, err)
	require.EqualValues(t, 3, products[0].Quantity)
}

func TestOrderService_CreateOrder_IdempotentFailureReplay(t *testing.T) {
	client, _ := newTestServer(t, true)
	ctx := idemCtx(context.Background(), "create-order-2")

	_, err := client.CreateOrder(ctx, createRequest(9))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.CreateOrder(ctx, createRequest(9))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
	require.Contains(t, status.Convert(err).Message(), "insufficient quantity")
}

func TestOrderService_CreateOrder_IdempotencyHashMismatch(t *testing.T) {
	client, _ := newTestServer(t, true)
	ctx := idemCtx(context.Background(), "create-order-3")

	_, err := client.CreateOrder(ctx, createRequest(1))
	require.NoError(t, err)

	_, err = client.CreateOrder(ctx, createRequest(2))
	require.Error(t, err)
	require.Equal(t, codes.AlreadyExists, status.Code(err))
}
