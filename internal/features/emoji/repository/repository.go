package repository

import (
	"context"
	"time"

	"anon-relay-bot/internal/features/emoji/models"
)

// ReservationRepository keeps emoji->owner and owner->emoji injective.
// Reserve must be atomic per emoji.
type ReservationRepository interface {
	// Reserve binds emoji to userID unless another user holds it. The caller's
	// previous reservation is released in the same step.
	Reserve(ctx context.Context, userID int64, emoji string, now time.Time) (models.ReserveResult, error)
	// Release frees userID's reservation and returns the released emoji, if any.
	Release(ctx context.Context, userID int64) (string, error)
	// ReleaseEmojiOf frees emoji only while ownerID still holds it.
	ReleaseEmojiOf(ctx context.Context, emoji string, ownerID int64) (bool, error)
	OwnerOf(ctx context.Context, emoji string) (int64, bool, error)
	ReservationOf(ctx context.Context, userID int64) (*models.Reservation, error)
	List(ctx context.Context) ([]models.Reservation, error)
}
