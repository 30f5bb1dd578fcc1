package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/memory"
)

// OrderLifecycleTestSuite проводит заказ от gRPC-вызова до события в Kafka.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store   *memory.Store
	service *grpcsvc.OrderService
	logger  *log.Entry
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetOutput(io.Discard)
	s.logger = baseLogger.WithField("component", "integration-test")
	s.store = memory.NewStore()

	ctx := context.Background()
	_, err := s.store.Customers.Register(ctx, domain.Customer{ID: "customer-1", Name: "Ann"})
	s.Require().NoError(err)
	_, err = s.store.Products.Upsert(ctx, domain.Product{ID: "laptop", Name: "Laptop", Quantity: 3, PriceMinor: 199900})
	s.Require().NoError(err)
	_, err = s.store.Products.Upsert(ctx, domain.Product{ID: "mouse", Name: "Mouse", Quantity: 10, PriceMinor: 2500})
	s.Require().NoError(err)

	s.service = s.newService(s.store.Products, checkout.WithTransactor(s.store.Transactor()))
}

func (s *OrderLifecycleTestSuite) newService(catalog domain.ProductRepository, opts ...checkout.Option) *grpcsvc.OrderService {
	opts = append(opts,
		checkout.WithOutbox(s.store.Outbox),
		checkout.WithTimeline(s.store.Timeline),
		checkout.WithLogger(s.logger),
		checkout.WithMetrics(metrics.NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())),
	)
	workflow := checkout.NewWorkflow(s.store.Customers, catalog, s.store.Orders, opts...)
	facade := orders.NewService(orders.Dependencies{
		Creator:   workflow,
		Orders:    s.store.Orders,
		Timeline:  s.store.Timeline,
		Customers: s.store.Customers,
		Products:  catalog,
		Logger:    s.logger,
	})
	guard := idempotency.NewGuard(s.store.Idempotency, idempotency.WithGuardLogger(s.logger))
	return grpcsvc.NewOrderService(facade, guard, s.logger)
}

func withKey(key string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", key))
}

func (s *OrderLifecycleTestSuite) stock(id string) int32 {
	products, err := s.store.Products.LookupMany(context.Background(), []string{id})
	s.Require().NoError(err)
	s.Require().Len(products, 1)
	return products[0].Quantity
}

func (s *OrderLifecycleTestSuite) TestOrderReachesKafka() {
	resp, err := s.service.CreateOrder(withKey("create-1"), &grpcsvc.CreateOrderRequest{
		CustomerID: "customer-1",
		Items: []*grpcsvc.OrderItemSpec{
			{ProductID: "laptop", Quantity: 1},
			{ProductID: "mouse", Quantity: 2},
		},
	})
	s.Require().NoError(err)
	order := resp.Order
	s.Equal("created", order.Status)
	s.Equal(int64(199900+2*2500), order.AmountMinor)
	s.Len(order.Items, 2)
	s.Equal(int32(2), s.stock("laptop"))
	s.Equal(int32(8), s.stock("mouse"))

	got, err := s.service.GetOrder(context.Background(), &grpcsvc.GetOrderRequest{OrderID: order.ID})
	s.Require().NoError(err)
	s.Equal(order.ID, got.Order.ID)
	s.Require().Len(got.Timeline, 1)
	s.Equal(string(domain.TimelineOrderCreated), got.Timeline[0].Type)

	syncProducer := mocks.NewSyncProducer(s.T(), nil)
	syncProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var envelope kafka.OutboxEnvelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		event, err := kafka.ParseOrderCreated(&envelope)
		if err != nil {
			return err
		}
		if event.OrderID != order.ID || len(event.Items) != 2 {
			return errors.New("unexpected order created event")
		}
		return nil
	})
	producer := kafka.NewProducerFromSync(syncProducer, s.logger)
	worker := outbox.NewWorker(s.store.Outbox, kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		outbox.WithLogger(s.logger),
		outbox.WithMetrics(metrics.NewOutboxMetrics(prometheus.NewRegistry())),
	)

	s.Equal(1, worker.ProcessOnce(context.Background()))
	stats, err := s.store.Outbox.Stats(context.Background())
	s.Require().NoError(err)
	s.Zero(stats.PendingCount)
	s.Require().NoError(producer.Close())
}

func (s *OrderLifecycleTestSuite) TestRejectedOrderLeavesNoTrace() {
	_, err := s.service.CreateOrder(withKey("too-many"), &grpcsvc.CreateOrderRequest{
		CustomerID: "customer-1",
		Items: []*grpcsvc.OrderItemSpec{
			{ProductID: "mouse", Quantity: 1},
			{ProductID: "laptop", Quantity: 4},
		},
	})
	s.Equal(codes.FailedPrecondition, status.Code(err))

	s.Equal(int32(3), s.stock("laptop"))
	s.Equal(int32(10), s.stock("mouse"))
	list, err := s.service.ListOrders(context.Background(), &grpcsvc.ListOrdersRequest{CustomerID: "customer-1"})
	s.Require().NoError(err)
	s.Empty(list.Orders)
	stats, err := s.store.Outbox.Stats(context.Background())
	s.Require().NoError(err)
	s.Zero(stats.PendingCount)

	// Кэшированный отказ повторяется даже после пополнения склада.
	_, err = s.store.Products.Upsert(context.Background(), domain.Product{ID: "laptop", Name: "Laptop", Quantity: 10, PriceMinor: 199900})
	s.Require().NoError(err)
	_, err = s.service.CreateOrder(withKey("too-many"), &grpcsvc.CreateOrderRequest{
		CustomerID: "customer-1",
		Items: []*grpcsvc.OrderItemSpec{
			{ProductID: "mouse", Quantity: 1},
			{ProductID: "laptop", Quantity: 4},
		},
	})
	s.Equal(codes.FailedPrecondition, status.Code(err))
}

func (s *OrderLifecycleTestSuite) TestConcurrentOrdersDoNotOversell() {
	const callers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.CreateOrder(withKey("race-"+string(rune('a'+i))), &grpcsvc.CreateOrderRequest{
				CustomerID: "customer-1",
				Items:      []*grpcsvc.OrderItemSpec{{ProductID: "laptop", Quantity: 1}},
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(3, created)
	s.Equal(int32(0), s.stock("laptop"))
}

func (s *OrderLifecycleTestSuite) TestStockPendingWithoutTransaction() {
	service := s.newService(failingStock{ProductRepository: s.store.Products},
		checkout.WithRetry(checkout.RetryConfig{MaxAttempts: 2}),
	)

	resp, err := service.CreateOrder(withKey("pending-1"), &grpcsvc.CreateOrderRequest{
		CustomerID: "customer-1",
		Items:      []*grpcsvc.OrderItemSpec{{ProductID: "mouse", Quantity: 1}},
	})
	s.Require().NoError(err)
	s.Equal(string(domain.OrderStatusStockPending), resp.Order.Status)
	s.Equal(int32(10), s.stock("mouse"))

	stored, err := s.store.Orders.Get(context.Background(), resp.Order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusStockPending, stored.Status)

	stats, err := s.store.Outbox.Stats(context.Background())
	s.Require().NoError(err)
	s.Zero(stats.PendingCount, "stock_pending order must not announce itself")
}

type failingStock struct {
	domain.ProductRepository
}

func (failingStock) UpdateQuantity(context.Context, []domain.StockUpdate) error {
	return errors.New("catalog unavailable")
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}

func TestOrderLifecycleSuite_RequiresKey(t *testing.T) {
	s := new(OrderLifecycleTestSuite)
	s.SetT(t)
	s.SetupTest()

	_, err := s.service.CreateOrder(context.Background(), &grpcsvc.CreateOrderRequest{CustomerID: "customer-1"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
