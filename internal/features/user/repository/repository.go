package repository

import (
	"context"
	"errors"
	"time"

	"anon-relay-bot/internal/features/user/models"
)

var ErrUserNotFound = errors.New("user not found")

// UpsertFunc mutates u in place. exists is false when u was just created.
type UpsertFunc func(u *models.User, exists bool) error

// UserRepository applies read-modify-write mutations atomically per user.
type UserRepository interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	Upsert(ctx context.Context, id int64, fn UpsertFunc) (*models.User, error)
	Update(ctx context.Context, id int64, fn func(u *models.User) error) (*models.User, error)
	List(ctx context.Context, limit int) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
	// CountPremium counts users whose premium window is still open at now.
	CountPremium(ctx context.Context, now time.Time) (int, error)
	// PremiumExpiredBefore lists users whose premium window closed at or before now.
	PremiumExpiredBefore(ctx context.Context, now time.Time) ([]int64, error)
}
