package checkout

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// RetryConfig задаёт повторы записи остатков, когда транзакции нет.
// Запись абсолютных значений идемпотентна, поэтому повтор безопасен.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 1
	}
	if c.MaxDelay > 0 && c.InitialDelay > c.MaxDelay {
		c.InitialDelay = c.MaxDelay
	}
	return c
}

// do выполняет fn с экспоненциальной задержкой между попытками.
// Возвращает последнюю ошибку и число сделанных попыток.
func (c RetryConfig) do(ctx context.Context, logger *log.Entry, operation string, fn func(ctx context.Context) error) (int, error) {
	c = c.normalized()
	delay := c.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("operation succeeded after retry")
			}
			return attempt, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			logger.WithError(err).WithField("operation", operation).Warn("operation failed with non-retryable error")
			return attempt, err
		}
		if attempt == c.MaxAttempts {
			break
		}

		logger.WithError(err).WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay,
		}).Warn("operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * c.BackoffFactor)
		if c.MaxDelay > 0 && delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}

	logger.WithError(lastErr).WithFields(log.Fields{
		"operation":    operation,
		"max_attempts": c.MaxAttempts,
	}).Error("operation failed after all retry attempts")
	return c.MaxAttempts, lastErr
}

// shouldRetry отсекает ошибки, которые повтор не исправит.
func shouldRetry(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrStockNegative):
		return false
	default:
		return true
	}
}
