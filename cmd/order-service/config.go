package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/app"
)

const (
	envHTTPAddr                    = "ORDERDESK_HTTP_ADDR"
	envGRPCAddr                    = "ORDERDESK_GRPC_ADDR"
	envMetricsAddr                 = "ORDERDESK_METRICS_ADDR"
	envStorageDriver               = "ORDERDESK_STORAGE_DRIVER"
	envPostgresDSN                 = "ORDERDESK_POSTGRES_DSN"
	envPostgresAutoMigrate         = "ORDERDESK_POSTGRES_AUTO_MIGRATE"
	envTransactionalCheckout       = "ORDERDESK_TRANSACTIONAL_CHECKOUT"
	envKafkaBrokers                = "ORDERDESK_KAFKA_BROKERS"
	envKafkaTopic                  = "ORDERDESK_KAFKA_TOPIC"
	envKafkaDLQTopic               = "ORDERDESK_KAFKA_DLQ_TOPIC"
	envOutboxPollInterval          = "ORDERDESK_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "ORDERDESK_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "ORDERDESK_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "ORDERDESK_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending            = "ORDERDESK_OUTBOX_MAX_PENDING"
	envIdempotencyBackend          = "ORDERDESK_IDEMPOTENCY_BACKEND"
	envRedisAddr                   = "ORDERDESK_REDIS_ADDR"
	envIdempotencyTTL              = "ORDERDESK_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "ORDERDESK_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "ORDERDESK_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envTraceStdout                 = "ORDERDESK_TRACE_STDOUT"
	envLogLevel                    = "ORDERDESK_LOG_LEVEL"
	envLogFormat                   = "ORDERDESK_LOG_FORMAT"
)

type envLookup func(key string) (string, bool)

// readLogSettings читает уровень и формат логов; неизвестный уровень заменяется на info,
// предупреждение о нём выдаёт readConfigFromEnv.
func readLogSettings(lookup envLookup) (level log.Level, jsonFormat bool) {
	level = log.InfoLevel
	if v, ok := lookup(envLogLevel); ok && strings.TrimSpace(v) != "" {
		if parsed, err := log.ParseLevel(strings.TrimSpace(v)); err == nil {
			level = parsed
		}
	}
	if v, ok := lookup(envLogFormat); ok {
		jsonFormat = strings.EqualFold(strings.TrimSpace(v), "json")
	}
	return level, jsonFormat
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не роняют запуск: остаётся значение по умолчанию и возвращается предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("ignore %s=%q: %v", key, value, err))
	}

	if v, ok := lookup(envLogLevel); ok && strings.TrimSpace(v) != "" {
		if _, err := log.ParseLevel(strings.TrimSpace(v)); err != nil {
			warn(envLogLevel, v, err)
		}
	}

	setString := func(key string, dst *string, normalize func(string) string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		*dst = normalize(v)
	}
	setBool := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	setInt := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseInt(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}
	setDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = parsed
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	setString(envHTTPAddr, &cfg.HTTPAddr, strings.TrimSpace)
	setString(envGRPCAddr, &cfg.GRPCAddr, strings.TrimSpace)
	setString(envMetricsAddr, &cfg.MetricsAddr, strings.TrimSpace)
	setString(envStorageDriver, &cfg.StorageDriver, lowerTrim)
	setString(envPostgresDSN, &cfg.PostgresDSN, strings.TrimSpace)
	setBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	setBool(envTransactionalCheckout, &cfg.TransactionalCheckout)

	setString(envKafkaBrokers, &cfg.KafkaBrokers, strings.TrimSpace)
	setString(envKafkaTopic, &cfg.KafkaTopic, strings.TrimSpace)
	setString(envKafkaDLQTopic, &cfg.KafkaDLQTopic, strings.TrimSpace)

	setDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	setInt(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	setInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	setDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	setInt(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")

	setString(envIdempotencyBackend, &cfg.IdempotencyBackend, lowerTrim)
	setString(envRedisAddr, &cfg.RedisAddr, strings.TrimSpace)
	setDuration(envIdempotencyTTL, &cfg.IdempotencyTTL, positiveDuration, "must be > 0")
	setDuration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	setInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0")

	setBool(envTraceStdout, &cfg.TraceStdout)

	return cfg, warnings
}

func lowerTrim(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("%d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("%s %s", value, rule)
	}
	return value, nil
}
