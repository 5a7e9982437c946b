package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anon-relay-bot/internal/features/user/models"
	"anon-relay-bot/internal/features/user/repository"
	platformredis "anon-relay-bot/internal/platform/redis"
)

func newTestRepository(t *testing.T) repository.UserRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := platformredis.Open(context.Background(), mr.Addr(), "", 0, "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewUserRepository(client)
}

func TestUserRepository_upsertAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	u, err := repo.Upsert(ctx, 1, func(u *models.User, exists bool) error {
		assert.False(t, exists)
		u.Username = "alice"
		u.RegisteredAt = now
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	_, err = repo.Upsert(ctx, 1, func(u *models.User, exists bool) error {
		assert.True(t, exists)
		assert.Equal(t, "alice", u.Username)
		u.Username = "alice2"
		return nil
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)
	assert.True(t, now.Equal(got.RegisteredAt))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUserRepository_updateUnknown(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Update(context.Background(), 5, func(u *models.User) error { return nil })
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_listOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []int64{30, 10, 20} {
		registered := base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Upsert(ctx, id, func(u *models.User, _ bool) error {
			u.RegisteredAt = registered
			return nil
		})
		require.NoError(t, err)
	}

	users, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(30), users[0].ID)
	assert.Equal(t, int64(10), users[1].ID)
}

func TestUserRepository_premiumIndex(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	expired := now.Add(-time.Hour)
	active := now.Add(time.Hour)

	_, err := repo.Upsert(ctx, 1, func(u *models.User, _ bool) error { u.PremiumUntil = &expired; return nil })
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, 2, func(u *models.User, _ bool) error { u.PremiumUntil = &active; return nil })
	require.NoError(t, err)

	ids, err := repo.PremiumExpiredBefore(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	n, err := repo.CountPremium(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Update(ctx, 1, func(u *models.User) error { u.PremiumUntil = nil; return nil })
	require.NoError(t, err)

	ids, err = repo.PremiumExpiredBefore(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUserRepository_concurrentIncrements(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	_, err := repo.Upsert(ctx, 1, func(u *models.User, _ bool) error { return nil })
	require.NoError(t, err)

	const writers = 64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, 1, func(u *models.User) error {
				u.Increment(models.CounterMessage)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, writers, u.MessageCount)
}
