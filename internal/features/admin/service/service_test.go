package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anon-relay-bot/internal/features/admin/models"
	emojimemory "anon-relay-bot/internal/features/emoji/repository/memory"
	emojiservice "anon-relay-bot/internal/features/emoji/service"
	msgmodels "anon-relay-bot/internal/features/message/models"
	msgmemory "anon-relay-bot/internal/features/message/repository/memory"
	msgservice "anon-relay-bot/internal/features/message/service"
	"anon-relay-bot/internal/features/ratelimit"
	"anon-relay-bot/internal/features/relay"
	usermodels "anon-relay-bot/internal/features/user/models"
	usermemory "anon-relay-bot/internal/features/user/repository/memory"
	userservice "anon-relay-bot/internal/features/user/service"
)

const actor = int64(900)

type fixture struct {
	svc      *Service
	users    *userservice.Service
	registry *emojiservice.Registry
	ledger   *msgservice.Ledger
}

type paymentCount int64

func (p paymentCount) Count(context.Context) (int64, error) { return int64(p), nil }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := emojiservice.NewRegistry(emojimemory.NewReservationRepository())
	users := userservice.NewUserService(usermemory.NewUserRepository(), registry, "📨")
	ledger := msgservice.NewLedger(msgmemory.NewMessageRepository())
	coord := relay.NewCoordinator(relay.Config{Destination: "@anon", DefaultEmoji: "📨"}, users, registry, ledger, ratelimit.New(), nil)

	return &fixture{
		svc:      NewAdminService(users, registry, ledger, coord, paymentCount(3), "📨"),
		users:    users,
		registry: registry,
		ledger:   ledger,
	}
}

func (f *fixture) register(t *testing.T, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		_, err := f.users.Upsert(context.Background(), id, "", "")
		require.NoError(t, err)
	}
}

func TestExecute_banUnban(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)

	out, err := f.svc.Execute(ctx, actor, models.Ban{UserID: 1})
	require.NoError(t, err)
	assert.True(t, out.(*usermodels.User).Banned)

	out, err = f.svc.Execute(ctx, actor, models.Unban{UserID: 1})
	require.NoError(t, err)
	assert.False(t, out.(*usermodels.User).Banned)

	_, err = f.svc.Execute(ctx, actor, models.Ban{UserID: 404})
	assert.ErrorIs(t, err, userservice.ErrUserNotFound)
}

func TestExecute_grantPremium(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)

	out, err := f.svc.Execute(ctx, actor, models.GrantPremium{UserID: 1, Days: 30})
	require.NoError(t, err)
	require.NotNil(t, out.(*usermodels.User).PremiumUntil)

	out, err = f.svc.Execute(ctx, actor, models.GrantPremium{UserID: 1, Days: 0})
	require.NoError(t, err)
	assert.Nil(t, out.(*usermodels.User).PremiumUntil)

	_, err = f.svc.Execute(ctx, actor, models.GrantPremium{UserID: 404, Days: 30})
	assert.ErrorIs(t, err, userservice.ErrUserNotFound)
}

func TestExecute_freeEmoji(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)

	_, err := f.registry.Reserve(ctx, 1, "🔥", time.Now())
	require.NoError(t, err)
	require.NoError(t, f.users.SetEmoji(ctx, 1, "🔥"))

	out, err := f.svc.Execute(ctx, actor, models.ListReservedEmojis{})
	require.NoError(t, err)
	assert.Len(t, out.(models.Reservations).Items, 1)

	out, err = f.svc.Execute(ctx, actor, models.FreeEmoji{Emoji: "🔥"})
	require.NoError(t, err)
	assert.Equal(t, models.EmojiFreed{Emoji: "🔥", OwnerID: 1, Freed: true}, out)

	u, err := f.users.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "📨", u.CurrentEmoji)

	out, err = f.svc.Execute(ctx, actor, models.FreeEmoji{Emoji: "🔥"})
	require.NoError(t, err)
	assert.False(t, out.(models.EmojiFreed).Freed)

	_, err = f.svc.Execute(ctx, actor, models.FreeEmoji{Emoji: "not an emoji"})
	assert.Error(t, err)
}

// staleEmojis answers the first OwnerOf with an owner that no longer holds
// the emoji.
type staleEmojis struct {
	*emojiservice.Registry
	staleOwner int64
	served     bool
}

func (s *staleEmojis) OwnerOf(ctx context.Context, emoji string) (int64, bool, error) {
	if !s.served {
		s.served = true
		return s.staleOwner, true, nil
	}
	return s.Registry.OwnerOf(ctx, emoji)
}

func TestExecute_freeEmojiOwnerChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1, 2)
	require.NoError(t, f.users.SetEmoji(ctx, 1, "🦊"))
	require.NoError(t, f.users.SetEmoji(ctx, 2, "🦊"))
	_, err := f.registry.Reserve(ctx, 2, "🦊", time.Now())
	require.NoError(t, err)

	svc := NewAdminService(f.users, &staleEmojis{Registry: f.registry, staleOwner: 1}, f.ledger, nil, nil, "📨")
	out, err := svc.Execute(ctx, actor, models.FreeEmoji{Emoji: "🦊"})
	require.NoError(t, err)
	assert.Equal(t, models.EmojiFreed{Emoji: "🦊", OwnerID: 2, Freed: true}, out)

	// only the holder that was actually released falls back to the default
	u1, err := f.users.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "🦊", u1.CurrentEmoji)
	u2, err := f.users.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "📨", u2.CurrentEmoji)
}

func TestExecute_statsAndLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1, 2, 3)

	_, err := f.ledger.Record(ctx, msgmodels.RecordParams{ID: 10, OwnerID: 1, Text: "hi", Emoji: "📨"}, time.Now())
	require.NoError(t, err)
	_, err = f.ledger.Edit(ctx, msgmodels.Requester{UserID: 1}, 10, "hello", time.Now())
	require.NoError(t, err)

	out, err := f.svc.Execute(ctx, actor, models.Stats{})
	require.NoError(t, err)
	assert.Equal(t, models.StatsReport{Users: 3, Messages: 1, ReservedEmojis: 0, Payments: 3}, out)

	_, err = f.users.GrantPremium(ctx, 2, 30)
	require.NoError(t, err)
	out, err = f.svc.Execute(ctx, actor, models.Stats{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.(models.StatsReport).PremiumUsers)

	out, err = f.svc.Execute(ctx, actor, models.ListUsers{Limit: 2})
	require.NoError(t, err)
	list := out.(models.UserList)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 3, list.Total)

	out, err = f.svc.Execute(ctx, actor, models.MessageHistory{MessageID: 10})
	require.NoError(t, err)
	history := out.(models.History)
	assert.Equal(t, "hello", history.Message.Text)
	require.Len(t, history.Edits, 1)
	assert.Equal(t, "hi", history.Edits[0].OldText)

	_, err = f.svc.Execute(ctx, actor, models.MessageHistory{MessageID: 11})
	assert.ErrorIs(t, err, msgmodels.ErrMessageNotFound)
}
