package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/message/repository"
	"anon-relay-bot/internal/features/message/repository/memory"
	msgredis "anon-relay-bot/internal/features/message/repository/redis"
	platformredis "anon-relay-bot/internal/platform/redis"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func backends() map[string]func(t *testing.T) repository.MessageRepository {
	return map[string]func(t *testing.T) repository.MessageRepository{
		"memory": func(t *testing.T) repository.MessageRepository {
			return memory.NewMessageRepository()
		},
		"redis": func(t *testing.T) repository.MessageRepository {
			mr := miniredis.RunT(t)
			client, err := platformredis.Open(context.Background(), mr.Addr(), "", 0, "test:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = client.Close() })
			return msgredis.NewMessageRepository(client)
		},
	}
}

func owner(id int64) models.Requester { return models.Requester{UserID: id} }

func TestLedger_record(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			l := NewLedger(open(t))
			ctx := context.Background()

			m, err := l.Record(ctx, models.RecordParams{ID: 1001, OwnerID: 1, Text: "hi", Emoji: "🔥"}, t0)
			require.NoError(t, err)
			assert.Equal(t, models.KindText, m.Kind)

			_, err = l.Record(ctx, models.RecordParams{ID: 1001, OwnerID: 2, Text: "other"}, t0)
			assert.ErrorIs(t, err, models.ErrDuplicateMessageID)

			got, err := l.Get(ctx, 1001)
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.OwnerID)
			assert.Equal(t, "hi", got.Text)
			assert.Equal(t, "🔥", got.EmojiUsed)

			n, err := l.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestLedger_recordValidation(t *testing.T) {
	l := NewLedger(memory.NewMessageRepository())
	ctx := context.Background()

	_, err := l.Record(ctx, models.RecordParams{ID: 0, OwnerID: 1, Text: "x"}, t0)
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = l.Record(ctx, models.RecordParams{ID: 1, OwnerID: 1, Text: strings.Repeat("я", models.MaxTextRunes+1)}, t0)
	assert.ErrorIs(t, err, ErrTextTooLong)

	_, err = l.Record(ctx, models.RecordParams{ID: 2, OwnerID: 1, Text: strings.Repeat("я", models.MaxTextRunes)}, t0)
	assert.NoError(t, err)

	_, err = l.Record(ctx, models.RecordParams{ID: 3, OwnerID: 1, Kind: models.KindPhoto}, t0)
	assert.NoError(t, err)
}

func TestLedger_ownership(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			l := NewLedger(open(t))
			ctx := context.Background()

			_, err := l.Record(ctx, models.RecordParams{ID: 7, OwnerID: 1, Text: "a"}, t0)
			require.NoError(t, err)

			assert.True(t, l.IsOwner(ctx, 1, 7))
			assert.False(t, l.IsOwner(ctx, 2, 7))
			assert.False(t, l.IsOwner(ctx, 1, 8))

			_, ok, err := l.OwnerOf(ctx, 8)
			require.NoError(t, err)
			assert.False(t, ok)

			outcome, err := l.Edit(ctx, owner(2), 7, "b", t0)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeNotOwner, outcome)

			outcome, err = l.Delete(ctx, owner(2), 7, t0)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeNotOwner, outcome)

			outcome, err = l.Edit(ctx, owner(1), 8, "b", t0)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeNotFound, outcome)

			m, err := l.Get(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, "a", m.Text)
			assert.Zero(t, m.EditCount)
			assert.False(t, m.Deleted)

			outcome, err = l.Edit(ctx, models.Requester{UserID: 99, Elevated: true}, 7, "moderated", t0)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeOK, outcome)
		})
	}
}

func TestLedger_editAndDelete(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			l := NewLedger(open(t))
			ctx := context.Background()

			_, err := l.Record(ctx, models.RecordParams{ID: 1001, OwnerID: 1, Text: "hi"}, t0)
			require.NoError(t, err)

			outcome, err := l.Edit(ctx, owner(1), 1001, "hi", t0)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeNoOp, outcome)

			editedAt := t0.Add(time.Minute)
			outcome, err = l.Edit(ctx, owner(1), 1001, "hi there", editedAt)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeOK, outcome)

			m, err := l.Get(ctx, 1001)
			require.NoError(t, err)
			assert.Equal(t, "hi there", m.Text)
			assert.Equal(t, 1, m.EditCount)
			require.NotNil(t, m.LastEditAt)
			assert.True(t, editedAt.Equal(*m.LastEditAt))

			history, err := l.History(ctx, 1001)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, "hi", history[0].OldText)
			assert.Equal(t, "hi there", history[0].NewText)
			assert.Equal(t, int64(1), history[0].EditorID)

			outcome, err = l.Delete(ctx, owner(1), 1001, t0.Add(2*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeOK, outcome)

			// deletion is permanent for everyone
			for _, req := range []models.Requester{owner(1), {UserID: 99, Elevated: true}} {
				outcome, err = l.Edit(ctx, req, 1001, "again", t0)
				require.NoError(t, err)
				assert.Equal(t, models.OutcomeAlreadyDeleted, outcome)

				outcome, err = l.Delete(ctx, req, 1001, t0)
				require.NoError(t, err)
				assert.Equal(t, models.OutcomeAlreadyDeleted, outcome)
			}

			m, err = l.Get(ctx, 1001)
			require.NoError(t, err)
			assert.True(t, m.Deleted)
			assert.Equal(t, 1, m.EditCount)
			assert.Equal(t, "hi there", m.Text)
		})
	}
}

func TestLedger_check(t *testing.T) {
	l := NewLedger(memory.NewMessageRepository())
	ctx := context.Background()
	_, err := l.Record(ctx, models.RecordParams{ID: 5, OwnerID: 1, Text: "x"}, t0)
	require.NoError(t, err)

	tcases := []struct {
		name string
		req  models.Requester
		id   int64
		want models.Outcome
	}{
		{name: "owner", req: owner(1), id: 5, want: models.OutcomeOK},
		{name: "stranger", req: owner(2), id: 5, want: models.OutcomeNotOwner},
		{name: "admin", req: models.Requester{UserID: 2, Elevated: true}, id: 5, want: models.OutcomeOK},
		{name: "missing", req: owner(1), id: 6, want: models.OutcomeNotFound},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := l.Check(ctx, tc.req, tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLedger_listByOwner(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			l := NewLedger(open(t))
			ctx := context.Background()

			for i := int64(1); i <= 4; i++ {
				_, err := l.Record(ctx, models.RecordParams{ID: i, OwnerID: 1, Text: "m"}, t0.Add(time.Duration(i)*time.Second))
				require.NoError(t, err)
			}
			_, err := l.Record(ctx, models.RecordParams{ID: 10, OwnerID: 2, Text: "m"}, t0)
			require.NoError(t, err)
			_, err = l.Delete(ctx, owner(1), 3, t0)
			require.NoError(t, err)

			list, err := l.ListByOwner(ctx, 1, 2)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, int64(4), list[0].ID)
			assert.Equal(t, int64(2), list[1].ID)
		})
	}
}

func TestLedger_concurrentEdits(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			l := NewLedger(open(t))
			ctx := context.Background()
			_, err := l.Record(ctx, models.RecordParams{ID: 1, OwnerID: 1, Text: "v0"}, t0)
			require.NoError(t, err)

			const editors = 8
			var wg sync.WaitGroup
			for i := 0; i < editors; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					outcome, err := l.Edit(ctx, owner(1), 1, fmt.Sprintf("v%d", i+1), t0)
					assert.NoError(t, err)
					assert.Equal(t, models.OutcomeOK, outcome)
				}(i)
			}
			wg.Wait()

			m, err := l.Get(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, editors, m.EditCount)

			history, err := l.History(ctx, 1)
			require.NoError(t, err)
			require.Len(t, history, editors)
			// each record starts where the previous one ended
			assert.Equal(t, "v0", history[0].OldText)
			for i := 1; i < len(history); i++ {
				assert.Equal(t, history[i-1].NewText, history[i].OldText)
			}
			assert.Equal(t, m.Text, history[len(history)-1].NewText)
		})
	}
}

func TestLedger_concurrentRecord(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			l := NewLedger(open(t))
			ctx := context.Background()

			var ok atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := l.Record(ctx, models.RecordParams{ID: 42, OwnerID: int64(i), Text: "x"}, t0)
					if err == nil {
						ok.Add(1)
						return
					}
					assert.ErrorIs(t, err, models.ErrDuplicateMessageID)
				}(i)
			}
			wg.Wait()

			assert.EqualValues(t, 1, ok.Load())
			n, err := l.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}
