package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anon-relay-bot/internal/features/emoji/models"
	"anon-relay-bot/internal/features/emoji/repository"
	"anon-relay-bot/internal/features/emoji/repository/memory"
	emojiredis "anon-relay-bot/internal/features/emoji/repository/redis"
	platformredis "anon-relay-bot/internal/platform/redis"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func backends(t *testing.T) map[string]func(t *testing.T) repository.ReservationRepository {
	return map[string]func(t *testing.T) repository.ReservationRepository{
		"memory": func(t *testing.T) repository.ReservationRepository {
			return memory.NewReservationRepository()
		},
		"redis": func(t *testing.T) repository.ReservationRepository {
			mr := miniredis.RunT(t)
			client, err := platformredis.Open(context.Background(), mr.Addr(), "", 0, "test:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = client.Close() })
			return emojiredis.NewReservationRepository(client)
		},
	}
}

func TestRegistry_reserve(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(open(t))
			ctx := context.Background()

			res, err := reg.Reserve(ctx, 1, "🔥", now)
			require.NoError(t, err)
			assert.Equal(t, models.ReserveResult{Status: models.Reserved, OwnerID: 1}, res)

			res, err = reg.Reserve(ctx, 2, "🔥", now)
			require.NoError(t, err)
			assert.Equal(t, models.ReserveResult{Status: models.Conflict, OwnerID: 1}, res)

			// re-reserving your own glyph is idempotent
			res, err = reg.Reserve(ctx, 1, "🔥", now)
			require.NoError(t, err)
			assert.Equal(t, models.Reserved, res.Status)

			owner, ok, err := reg.OwnerOf(ctx, "🔥")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(1), owner)
		})
	}
}

func TestRegistry_reserveReplacesPrior(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(open(t))
			ctx := context.Background()

			_, err := reg.Reserve(ctx, 1, "🔥", now)
			require.NoError(t, err)
			_, err = reg.Reserve(ctx, 1, "🚀", now.Add(time.Minute))
			require.NoError(t, err)

			_, ok, err := reg.OwnerOf(ctx, "🔥")
			require.NoError(t, err)
			assert.False(t, ok)

			res, err := reg.ReservationOf(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, "🚀", res.Emoji)
			assert.True(t, now.Add(time.Minute).Equal(res.ReservedAt))

			res2, err := reg.Reserve(ctx, 2, "🔥", now)
			require.NoError(t, err)
			assert.Equal(t, models.Reserved, res2.Status)

			list, err := reg.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)
		})
	}
}

func TestRegistry_release(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(open(t))
			ctx := context.Background()

			require.NoError(t, reg.Release(ctx, 1))

			_, err := reg.Reserve(ctx, 1, "🔥", now)
			require.NoError(t, err)
			require.NoError(t, reg.Release(ctx, 1))
			require.NoError(t, reg.Release(ctx, 1))

			res, err := reg.ReservationOf(ctx, 1)
			require.NoError(t, err)
			assert.Nil(t, res)

			res2, err := reg.Reserve(ctx, 2, "🔥", now)
			require.NoError(t, err)
			assert.Equal(t, models.Reserved, res2.Status)
		})
	}
}

func TestRegistry_releaseEmoji(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(open(t))
			ctx := context.Background()

			released, err := reg.ReleaseEmojiOf(ctx, "🔥", 1)
			require.NoError(t, err)
			assert.False(t, released)

			_, err = reg.Reserve(ctx, 1, "🔥", now)
			require.NoError(t, err)

			// the emoji changes hands before a stale release arrives
			require.NoError(t, reg.Release(ctx, 1))
			_, err = reg.Reserve(ctx, 2, "🔥", now)
			require.NoError(t, err)

			released, err = reg.ReleaseEmojiOf(ctx, "🔥", 1)
			require.NoError(t, err)
			assert.False(t, released)
			owner, reserved, err := reg.OwnerOf(ctx, "🔥")
			require.NoError(t, err)
			assert.True(t, reserved)
			assert.Equal(t, int64(2), owner)

			released, err = reg.ReleaseEmojiOf(ctx, "🔥", 2)
			require.NoError(t, err)
			assert.True(t, released)

			res, err := reg.ReservationOf(ctx, 2)
			require.NoError(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestRegistry_listAvailable(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(open(t))
			ctx := context.Background()

			_, err := reg.Reserve(ctx, 1, "✨", now)
			require.NoError(t, err)

			available, err := reg.ListAvailable(ctx, []string{"🔥", "✨", "🌟"})
			require.NoError(t, err)
			assert.Equal(t, []string{"🔥", "🌟"}, available)

			available, err = reg.ListAvailable(ctx, models.PremiumEmojis)
			require.NoError(t, err)
			assert.Len(t, available, len(models.PremiumEmojis)-1)
		})
	}
}

func TestRegistry_invalidEmoji(t *testing.T) {
	reg := NewRegistry(memory.NewReservationRepository())

	for _, emoji := range []string{"", "   ", "toolong"} {
		_, err := reg.Reserve(context.Background(), 1, emoji, now)
		assert.ErrorIs(t, err, models.ErrInvalidEmoji, "emoji %q", emoji)
	}
}

// Concurrent reservations of one glyph produce exactly one owner.
func TestRegistry_concurrentReserve(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(open(t))
			ctx := context.Background()

			const contenders = 32
			results := make([]models.ReserveResult, contenders)
			var wg sync.WaitGroup
			for i := 0; i < contenders; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, err := reg.Reserve(ctx, int64(i+1), "💎", now)
					assert.NoError(t, err)
					results[i] = res
				}(i)
			}
			wg.Wait()

			owner, ok, err := reg.OwnerOf(ctx, "💎")
			require.NoError(t, err)
			require.True(t, ok)

			winners := 0
			for i, res := range results {
				switch res.Status {
				case models.Reserved:
					winners++
					assert.Equal(t, int64(i+1), owner)
				case models.Conflict:
					assert.Equal(t, owner, res.OwnerID)
				default:
					t.Fatalf("unexpected status %v", res.Status)
				}
			}
			assert.Equal(t, 1, winners)
		})
	}
}
