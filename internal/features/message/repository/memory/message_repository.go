package memory

import (
	"context"
	"sort"
	"sync"

	"anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/message/repository"
)

type messageRepository struct {
	mu       sync.Mutex
	messages map[int64]*models.Message
	history  map[int64][]models.EditRecord
}

func NewMessageRepository() repository.MessageRepository {
	return &messageRepository{
		messages: make(map[int64]*models.Message),
		history:  make(map[int64][]models.EditRecord),
	}
}

func (r *messageRepository) Insert(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.messages[m.ID]; ok {
		return models.ErrDuplicateMessageID
	}
	r.messages[m.ID] = m.Clone()
	return nil
}

func (r *messageRepository) Get(_ context.Context, id int64) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return nil, models.ErrMessageNotFound
	}
	return m.Clone(), nil
}

func (r *messageRepository) Apply(_ context.Context, id int64, fn models.Mutation) (models.Outcome, *models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.messages[id]
	if !ok {
		return models.OutcomeNotFound, nil, nil
	}

	m := current.Clone()
	outcome, rec := fn(m)
	if outcome != models.OutcomeOK {
		return outcome, current.Clone(), nil
	}

	r.messages[id] = m
	if rec != nil {
		r.history[id] = append(r.history[id], *rec)
	}
	return outcome, m.Clone(), nil
}

func (r *messageRepository) History(_ context.Context, id int64) ([]models.EditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.messages[id]; !ok {
		return nil, models.ErrMessageNotFound
	}
	out := make([]models.EditRecord, len(r.history[id]))
	copy(out, r.history[id])
	return out, nil
}

func (r *messageRepository) ListByOwner(_ context.Context, ownerID int64, limit int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Message
	for _, m := range r.messages {
		if m.OwnerID == ownerID && !m.Deleted {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *messageRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages), nil
}
