// Command loadtest запускает параллельные создания заказа против одного товара
// и проверяет, что сервис не продал больше, чем было на складе.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcsvc "github.com/vladislavdragonenkov/orderdesk/internal/service/grpc"
)

const (
	transportHTTP = "http"
	transportGRPC = "grpc"
)

type config struct {
	httpAddr    string
	grpcAddr    string
	transport   string
	total       int
	concurrency int
	timeout     time.Duration
	customerID  string
	productID   string
	stock       int
	quantity    int
	priceMinor  int64
	seed        bool
	outputPath  string
}

func parseConfig(fs *flag.FlagSet, args []string) (config, error) {
	var cfg config
	fs.StringVar(&cfg.httpAddr, "http-addr", "http://localhost:8080", "HTTP API base URL")
	fs.StringVar(&cfg.grpcAddr, "grpc-addr", "localhost:50051", "gRPC target address")
	fs.StringVar(&cfg.transport, "transport", transportHTTP, "transport for CreateOrder: http | grpc")
	fs.IntVar(&cfg.total, "total", 200, "number of CreateOrder calls")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&cfg.customerID, "customer", "load-customer", "customer id used by every order")
	fs.StringVar(&cfg.productID, "product", "", "product id; random when empty")
	fs.IntVar(&cfg.stock, "stock", 50, "stock seeded for the product")
	fs.IntVar(&cfg.quantity, "quantity", 1, "quantity per order")
	fs.Int64Var(&cfg.priceMinor, "price-minor", 1000, "product price in minor units")
	fs.BoolVar(&cfg.seed, "seed", true, "register the customer and seed the product over HTTP before the run")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.transport = strings.ToLower(strings.TrimSpace(cfg.transport))
	cfg.httpAddr = strings.TrimRight(strings.TrimSpace(cfg.httpAddr), "/")
	if cfg.productID == "" {
		cfg.productID = "load-" + uuid.NewString()[:8]
	}

	switch {
	case cfg.transport != transportHTTP && cfg.transport != transportGRPC:
		return cfg, fmt.Errorf("unsupported transport: %s", cfg.transport)
	case cfg.total <= 0:
		return cfg, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.stock < 0:
		return cfg, errors.New("stock must be >= 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case cfg.priceMinor < 0:
		return cfg, errors.New("price-minor must be >= 0")
	case strings.TrimSpace(cfg.customerID) == "":
		return cfg, errors.New("customer is required")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: cfg.timeout}
	api := &httpOrders{baseURL: cfg.httpAddr, client: httpClient}

	var client orderCreator = api
	if cfg.transport == transportGRPC {
		conn, err := grpc.NewClient(cfg.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		client = &grpcOrders{client: grpcsvc.NewOrderServiceClient(conn)}
	}

	ctx := context.Background()
	if cfg.seed {
		if err := api.seed(ctx, cfg); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}

	result := run(ctx, cfg, client)
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.Oversold || result.Unexpected > 0 {
		os.Exit(1)
	}
}

// run выполняет cfg.total созданий заказа с уникальными ключами идемпотентности.
func run(ctx context.Context, cfg config, client orderCreator) report {
	col := newCollector()
	startedAt := time.Now()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
				start := time.Now()
				outcome := client.CreateOrder(callCtx, uuid.NewString(), cfg.customerID, cfg.productID, int32(cfg.quantity))
				cancel()
				col.record(outcome, time.Since(start))
			}
		}()
	}
	for i := range cfg.total {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt), cfg.stock, cfg.quantity)
}
