package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"anon-relay-bot/internal/features/user/models"
	"anon-relay-bot/internal/features/user/repository/memory"
)

type mockReleaser struct {
	mock.Mock
}

func (m *mockReleaser) Release(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *mockReleaser, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	releaser := &mockReleaser{}
	svc := NewUserService(memory.NewUserRepository(), releaser, "📨", WithClock(clock.Now))
	return svc, releaser, clock
}

func TestUpsert(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	u, err := svc.Upsert(ctx, 1, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "📨", u.CurrentEmoji)
	assert.Equal(t, clock.Now(), u.RegisteredAt)

	registered := u.RegisteredAt
	clock.Advance(time.Hour)

	u, err = svc.Upsert(ctx, 1, "alice2", "Alice B")
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Username)
	assert.Equal(t, "Alice B", u.DisplayName)
	assert.Equal(t, registered, u.RegisteredAt)
	assert.Equal(t, clock.Now(), u.LastActivity)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGet_unknown(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBan(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	banned, err := svc.IsBanned(ctx, 1)
	require.NoError(t, err)
	assert.False(t, banned)

	assert.ErrorIs(t, svc.SetBanned(ctx, 1, true), ErrUserNotFound)

	_, err = svc.Upsert(ctx, 1, "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.SetBanned(ctx, 1, true))

	banned, err = svc.IsBanned(ctx, 1)
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, svc.SetBanned(ctx, 1, false))
	banned, err = svc.IsBanned(ctx, 1)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestGrantPremium_stacks(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, 1, "alice", "Alice")
	require.NoError(t, err)

	u, err := svc.GrantPremium(ctx, 1, 30)
	require.NoError(t, err)
	require.NotNil(t, u.PremiumUntil)
	assert.Equal(t, clock.Now().Add(30*24*time.Hour), *u.PremiumUntil)

	clock.Advance(10 * 24 * time.Hour)
	u, err = svc.GrantPremium(ctx, 1, 30)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(50*24*time.Hour), *u.PremiumUntil)

	active, err := svc.IsPremiumActive(ctx, 1)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestGrantPremium_revoke(t *testing.T) {
	svc, releaser, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, 1, "alice", "Alice")
	require.NoError(t, err)
	_, err = svc.GrantPremium(ctx, 1, 30)
	require.NoError(t, err)
	require.NoError(t, svc.SetEmoji(ctx, 1, "🔥"))

	releaser.On("Release", mock.Anything, int64(1)).Return(nil).Once()

	u, err := svc.GrantPremium(ctx, 1, 0)
	require.NoError(t, err)
	assert.Nil(t, u.PremiumUntil)
	assert.Equal(t, "📨", u.CurrentEmoji)
	releaser.AssertExpectations(t)

	active, err := svc.IsPremiumActive(ctx, 1)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestIsPremiumActive_lazyExpiry(t *testing.T) {
	svc, releaser, clock := newTestService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, 1, "alice", "Alice")
	require.NoError(t, err)
	_, err = svc.GrantPremium(ctx, 1, 1)
	require.NoError(t, err)
	require.NoError(t, svc.SetEmoji(ctx, 1, "🔥"))

	clock.Advance(24 * time.Hour)
	releaser.On("Release", mock.Anything, int64(1)).Return(nil).Once()

	active, err := svc.IsPremiumActive(ctx, 1)
	require.NoError(t, err)
	assert.False(t, active)

	u, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, u.PremiumUntil)
	assert.Equal(t, "📨", u.CurrentEmoji)

	// second check is a no-op
	active, err = svc.IsPremiumActive(ctx, 1)
	require.NoError(t, err)
	assert.False(t, active)
	releaser.AssertNumberOfCalls(t, "Release", 1)
}

func TestSweepExpired(t *testing.T) {
	svc, releaser, clock := newTestService(t)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		_, err := svc.Upsert(ctx, id, "", "")
		require.NoError(t, err)
	}
	_, err := svc.GrantPremium(ctx, 1, 1)
	require.NoError(t, err)
	_, err = svc.GrantPremium(ctx, 2, 5)
	require.NoError(t, err)

	clock.Advance(2 * 24 * time.Hour)
	releaser.On("Release", mock.Anything, int64(1)).Return(nil).Once()

	swept, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	releaser.AssertExpectations(t)

	swept, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestIncrementCounter(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, 1, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.IncrementCounter(ctx, 1, models.CounterMessage))
	require.NoError(t, svc.IncrementCounter(ctx, 1, models.CounterMessage))
	require.NoError(t, svc.IncrementCounter(ctx, 1, models.CounterEdit))
	require.NoError(t, svc.IncrementCounter(ctx, 1, models.CounterDelete))

	u, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, u.MessageCount)
	assert.EqualValues(t, 1, u.EditCount)
	assert.EqualValues(t, 1, u.DeleteCount)

	assert.ErrorIs(t, svc.IncrementCounter(ctx, 99, models.CounterMessage), ErrUserNotFound)
}
