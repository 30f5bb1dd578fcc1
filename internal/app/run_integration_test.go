package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer func() { _ = deps.closeFn() }()

	if deps.repo == nil || deps.outboxRepo == nil || deps.timelineRepo == nil || deps.idempotencyRepo == nil {
		t.Fatalf("postgres dependencies must be initialized: %+v", deps)
	}
	if deps.customers == nil || deps.products == nil || deps.transactor == nil {
		t.Fatal("postgres catalog and transactor must be initialized")
	}
	checker, ok := deps.checkers["postgres"]
	if !ok {
		t.Fatal("expected postgres checker to be registered")
	}
	check := checker.Check()
	if check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage checker, got %+v", check)
	}
}

func TestShutdownHelpers(t *testing.T) {
	logger := log.WithField("test", "shutdown")

	cancelCalled := false
	done := make(chan struct{})
	close(done)
	shutdownWorker("outbox", func() { cancelCalled = true }, done, logger)
	if !cancelCalled {
		t.Fatal("expected outbox cancel func to be called")
	}

	shutdownWorker("outbox", nil, nil, logger)

	closeKafka(nil, logger)
}

func TestStartWorkers_StopOnCancel(t *testing.T) {
	deps := newMemoryDeps(t)
	cfg := DefaultConfig()
	cfg.OutboxPollInterval = 10 * time.Millisecond
	logger := log.WithField("test", "workers")

	outboxCancel, outboxDone := startOutboxWorker(context.Background(), cfg, deps, nil, logger)
	cleanupCancel, cleanupDone := startCleanupWorker(context.Background(), cfg, deps, logger)

	outboxCancel()
	cleanupCancel()
	for _, done := range []<-chan struct{}{outboxDone, cleanupDone} {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop after cancel")
		}
	}
}

func TestStartCleanupWorker_SkippedForRedis(t *testing.T) {
	deps := newMemoryDeps(t)
	cfg := DefaultConfig()
	cfg.IdempotencyBackend = " Redis "

	cancel, done := startCleanupWorker(context.Background(), cfg, deps, log.WithField("test", "cleanup-redis"))
	if cancel != nil || done != nil {
		t.Fatal("cleanup worker must not start for redis backend")
	}
	shutdownWorker("idempotency-cleanup", cancel, done, log.WithField("test", "cleanup-redis"))

	if !needsIdempotencyCleanup(DefaultConfig()) {
		t.Fatal("storage backend still needs the cleanup worker")
	}
}

func TestCloseKafka_NonNil(t *testing.T) {
	producer, err := kafka.NewProducer([]string{"localhost:9092"})
	if err != nil {
		t.Skipf("kafka is not available for integration test: %v", err)
	}
	closeKafka(producer, log.WithField("test", "kafka-close"))
}

func postgresTestDSNCandidate() string {
	return strings.TrimSpace(os.Getenv("ORDERDESK_POSTGRES_TEST_DSN"))
}
