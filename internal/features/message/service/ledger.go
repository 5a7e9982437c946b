package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"anon-relay-bot/internal/common/logger"
	"anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/message/repository"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrTextTooLong    = fmt.Errorf("%w: text longer than %d characters", ErrInvalidMessage, models.MaxTextRunes)
)

// Ledger records relayed messages and gates edits and deletes by ownership.
// Deletion is soft and irreversible.
type Ledger struct {
	repo repository.MessageRepository
}

func NewLedger(repo repository.MessageRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Record stores a message after the gateway accepted it.
func (l *Ledger) Record(ctx context.Context, p models.RecordParams, now time.Time) (*models.Message, error) {
	if p.ID <= 0 {
		return nil, fmt.Errorf("%w: id must be positive", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(p.Text) > models.MaxTextRunes {
		return nil, ErrTextTooLong
	}
	kind := p.Kind
	if kind == "" {
		kind = models.KindText
	}

	m := &models.Message{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Kind:      kind,
		Text:      p.Text,
		EmojiUsed: p.Emoji,
		ReplyTo:   p.ReplyTo,
		CreatedAt: now,
	}
	if err := l.repo.Insert(ctx, m); err != nil {
		return nil, err
	}

	logger.Debug().Int64("message_id", m.ID).Int64("user_id", m.OwnerID).Str("kind", string(kind)).Msg("Message recorded")
	return m, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (*models.Message, error) {
	return l.repo.Get(ctx, id)
}

// OwnerOf returns false for unknown ids.
func (l *Ledger) OwnerOf(ctx context.Context, id int64) (int64, bool, error) {
	m, err := l.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrMessageNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return m.OwnerID, true, nil
}

// IsOwner is false for unknown ids and for lookup failures.
func (l *Ledger) IsOwner(ctx context.Context, userID, id int64) bool {
	owner, ok, err := l.OwnerOf(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Int64("message_id", id).Msg("Ownership lookup failed")
		return false
	}
	return ok && owner == userID
}

// Edit replaces the text of a live message and appends an EditRecord.
func (l *Ledger) Edit(ctx context.Context, req models.Requester, id int64, newText string, now time.Time) (models.Outcome, error) {
	if utf8.RuneCountInString(newText) > models.MaxTextRunes {
		return 0, ErrTextTooLong
	}

	outcome, _, err := l.repo.Apply(ctx, id, func(m *models.Message) (models.Outcome, *models.EditRecord) {
		if o := check(req, m); o != models.OutcomeOK {
			return o, nil
		}
		if m.Text == newText {
			return models.OutcomeNoOp, nil
		}

		rec := &models.EditRecord{
			MessageID: id,
			OldText:   m.Text,
			NewText:   newText,
			EditorID:  req.UserID,
			EditedAt:  now,
		}
		m.Text = newText
		m.EditCount++
		m.LastEditAt = &now
		return models.OutcomeOK, rec
	})
	if err != nil {
		return 0, err
	}

	logger.Debug().Int64("message_id", id).Int64("user_id", req.UserID).Stringer("outcome", outcome).Msg("Edit applied")
	return outcome, nil
}

// Delete marks a message deleted.
func (l *Ledger) Delete(ctx context.Context, req models.Requester, id int64, now time.Time) (models.Outcome, error) {
	outcome, _, err := l.repo.Apply(ctx, id, func(m *models.Message) (models.Outcome, *models.EditRecord) {
		if o := check(req, m); o != models.OutcomeOK {
			return o, nil
		}
		m.Deleted = true
		m.DeletedAt = &now
		return models.OutcomeOK, nil
	})
	if err != nil {
		return 0, err
	}

	logger.Debug().Int64("message_id", id).Int64("user_id", req.UserID).Stringer("outcome", outcome).Msg("Delete applied")
	return outcome, nil
}

// Check reports what Edit or Delete would return for req without mutating.
func (l *Ledger) Check(ctx context.Context, req models.Requester, id int64) (models.Outcome, *models.Message, error) {
	m, err := l.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrMessageNotFound) {
			return models.OutcomeNotFound, nil, nil
		}
		return 0, nil, err
	}
	return check(req, m), m, nil
}

func (l *Ledger) History(ctx context.Context, id int64) ([]models.EditRecord, error) {
	return l.repo.History(ctx, id)
}

func (l *Ledger) ListByOwner(ctx context.Context, ownerID int64, limit int) ([]*models.Message, error) {
	return l.repo.ListByOwner(ctx, ownerID, limit)
}

func (l *Ledger) Count(ctx context.Context) (int, error) {
	return l.repo.Count(ctx)
}

func check(req models.Requester, m *models.Message) models.Outcome {
	if !req.Elevated && m.OwnerID != req.UserID {
		return models.OutcomeNotOwner
	}
	if m.Deleted {
		return models.OutcomeAlreadyDeleted
	}
	return models.OutcomeOK
}
