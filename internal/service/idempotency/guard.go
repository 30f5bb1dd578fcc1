package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const defaultTTL = 24 * time.Hour

// ErrInProgress: запрос с тем же ключом ещё обрабатывается.
var ErrInProgress = errors.New("request with the same idempotency key is already processing")

// Response: ответ, который кэшируется под ключом идемпотентности.
// Status хранит HTTP-статус или код gRPC, в зависимости от транспорта.
type Response struct {
	Body   []byte
	Status int
	// Failed означает, что ответ описывает ошибку и будет сохранён как failed.
	Failed bool
	// Retryable означает временный сбой сервера: ответ не сохраняется, ключ освобождается.
	Retryable bool
}

// Guard выполняет обработчик не более одного раза на ключ идемпотентности.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithTTL задаёт время жизни ключа.
func WithTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGuardLogger задаёт логгер.
func WithGuardLogger(logger *log.Entry) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard создаёт Guard поверх хранилища ключей. nil repo отключает идемпотентность.
func NewGuard(repo domain.IdempotencyRepository, opts ...GuardOption) *Guard {
	g := &Guard{
		repo:   repo,
		ttl:    defaultTTL,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithField("component", "idempotency-guard"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled сообщает, подключено ли хранилище.
func (g *Guard) Enabled() bool {
	return g != nil && g.repo != nil
}

// HashRequest считает отпечаток запроса: операция плюс её каноническое тело.
func HashRequest(operation string, body []byte) string {
	payload := make([]byte, 0, len(operation)+1+len(body))
	payload = append(payload, operation...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Do выполняет fn под ключом key.
//
// Первый вызов резервирует ключ, выполняет fn и сохраняет ответ. Повтор с тем же
// ключом и хешем возвращает сохранённый ответ и replayed=true. Ответ с Retryable
// не сохраняется: повтор с тем же ключом снова вызовет fn. Повтор с другим хешем
// возвращает domain.ErrIdempotencyHashMismatch, пока первый запрос идёт: ErrInProgress.
func (g *Guard) Do(ctx context.Context, key, requestHash string, fn func(ctx context.Context) Response) (resp Response, replayed bool, err error) {
	if !g.Enabled() {
		return fn(ctx), false, nil
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return Response{}, false, domain.ErrIdempotencyKeyRequired
	}

	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	if err != nil {
		return g.replay(key, record, err)
	}

	resp = fn(ctx)

	// Результат уже получен: сохраняем его, даже если клиент отключился.
	storeCtx := context.WithoutCancel(ctx)
	if resp.Retryable {
		if releaseErr := g.repo.Release(storeCtx, key); releaseErr != nil {
			g.logger.WithError(releaseErr).WithField("idempotency_key", key).Warn("failed to release idempotency key")
		}
		return resp, false, nil
	}
	mark := g.repo.MarkDone
	if resp.Failed {
		mark = g.repo.MarkFailed
	}
	if markErr := mark(storeCtx, key, resp.Body, resp.Status); markErr != nil {
		g.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
	return resp, false, nil
}

func (g *Guard) replay(key string, record domain.IdempotencyRecord, createErr error) (Response, bool, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return Response{}, false, createErr
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch {
		case record.Status.Settled():
			return Response{
				Body:   record.ResponseBody,
				Status: record.HTTPStatus,
				Failed: record.Status == domain.IdempotencyStatusFailed,
			}, true, nil
		case record.Status == domain.IdempotencyStatusProcessing:
			return Response{}, false, ErrInProgress
		default:
			return Response{}, false, fmt.Errorf("unknown idempotency record status %q", record.Status)
		}
	default:
		g.logger.WithError(createErr).WithField("idempotency_key", key).Warn("failed to create idempotency record")
		return Response{}, false, fmt.Errorf("create idempotency record: %w", createErr)
	}
}
