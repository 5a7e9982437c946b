package repository

import (
	"context"

	"anon-relay-bot/internal/features/message/models"
)

// MessageRepository stores ledger entries. Insert fails with
// models.ErrDuplicateMessageID when the id exists; Apply serializes
// mutations per message.
type MessageRepository interface {
	Insert(ctx context.Context, m *models.Message) error
	Get(ctx context.Context, id int64) (*models.Message, error)
	Apply(ctx context.Context, id int64, fn models.Mutation) (models.Outcome, *models.Message, error)
	History(ctx context.Context, id int64) ([]models.EditRecord, error)
	// ListByOwner returns the newest live messages of ownerID first.
	ListByOwner(ctx context.Context, ownerID int64, limit int) ([]*models.Message, error)
	Count(ctx context.Context) (int, error)
}
