package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func newTestRepository(t *testing.T) (domain.IdempotencyRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewIdempotencyRepository(client, WithKeyPrefix("test:")), mr
}

func TestIdempotencyRepository_CreateAndGet(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(ctx, "idem-key-1", "hash-1", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	got, err := repo.Get(ctx, "idem-key-1")
	require.NoError(t, err)
	require.Equal(t, "hash-1", got.RequestHash)
	require.True(t, got.TTLAt.Equal(ttl))

	require.True(t, mr.Exists("test:idem-key-1"))
	require.InDelta(t, (2 * time.Hour).Seconds(), mr.TTL("test:idem-key-1").Seconds(), 5)
}

func TestIdempotencyRepository_ConflictAndHashMismatch(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing(ctx, "idem-key-2", "hash-a", ttl)
	require.NoError(t, err)

	_, err = repo.CreateProcessing(ctx, "idem-key-2", "hash-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)

	existing, err := repo.CreateProcessing(ctx, "idem-key-2", "hash-b", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
	require.Equal(t, "hash-a", existing.RequestHash)
}

func TestIdempotencyRepository_MarkDoneKeepsTTL(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "idem-done", "hash", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, repo.MarkDone(ctx, "idem-done", []byte(`{"ok":true}`), 201))

	got, err := repo.Get(ctx, "idem-done")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.Equal(t, 201, got.HTTPStatus)
	require.JSONEq(t, `{"ok":true}`, string(got.ResponseBody))
	require.Greater(t, mr.TTL("test:idem-done"), time.Duration(0))

	require.NoError(t, repo.MarkFailed(ctx, "idem-done", nil, 500))
	got, err = repo.Get(ctx, "idem-done")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusFailed, got.Status)
}

func TestIdempotencyRepository_ExpiryAndMissingKeys(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "idem-short", "hash", time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = repo.Get(ctx, "idem-short")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	require.ErrorIs(t, repo.MarkDone(ctx, "idem-short", nil, 200), domain.ErrIdempotencyKeyNotFound)

	removed, err := repo.DeleteExpired(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestIdempotencyRepository_Validation(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, " ", "hash", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing(ctx, "key", "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
	_, err = repo.Get(ctx, "")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewClient(ctx, "127.0.0.1:1")
	require.Error(t, err)
}

func TestTTLUntil(t *testing.T) {
	now := time.Now()
	require.Equal(t, time.Minute, ttlUntil(now.Add(time.Minute), now))
	require.Equal(t, minTTL, ttlUntil(now.Add(-time.Minute), now))
}

func TestIdempotencyRepository_ReleaseOnlyProcessing(t *testing.T) {
	repo, mr := newTestRepository(t)
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing(ctx, "released", "hash", ttl)
	require.NoError(t, err)
	require.NoError(t, repo.Release(ctx, "released"))
	require.False(t, mr.Exists("test:released"))

	_, err = repo.CreateProcessing(ctx, "done", "hash", ttl)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(ctx, "done", []byte("ok"), 201))
	require.NoError(t, repo.Release(ctx, "done"))
	require.True(t, mr.Exists("test:done"))

	require.ErrorIs(t, repo.Release(ctx, "missing"), domain.ErrIdempotencyKeyNotFound)
}
