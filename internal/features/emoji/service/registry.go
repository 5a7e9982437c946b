package service

import (
	"context"
	"fmt"
	"time"

	"anon-relay-bot/internal/common/logger"
	"anon-relay-bot/internal/features/emoji/models"
	"anon-relay-bot/internal/features/emoji/repository"
)

// Registry owns exclusive emoji reservations. It does not check premium
// state; callers gate access.
type Registry struct {
	repo repository.ReservationRepository
}

func NewRegistry(repo repository.ReservationRepository) *Registry {
	return &Registry{repo: repo}
}

func (r *Registry) Reserve(ctx context.Context, userID int64, emoji string, now time.Time) (models.ReserveResult, error) {
	if err := models.Validate(emoji); err != nil {
		return models.ReserveResult{}, err
	}

	res, err := r.repo.Reserve(ctx, userID, emoji, now)
	if err != nil {
		return models.ReserveResult{}, err
	}

	switch res.Status {
	case models.Reserved:
		logger.Info().Int64("user_id", userID).Str("emoji", emoji).Msg("Emoji reserved")
	case models.Conflict:
		logger.Debug().Int64("user_id", userID).Int64("owner_id", res.OwnerID).Str("emoji", emoji).Msg("Emoji reservation conflict")
	}
	return res, nil
}

// Release is a no-op for users without a reservation.
func (r *Registry) Release(ctx context.Context, userID int64) error {
	emoji, err := r.repo.Release(ctx, userID)
	if err != nil {
		return err
	}
	if emoji != "" {
		logger.Info().Int64("user_id", userID).Str("emoji", emoji).Msg("Emoji released")
	}
	return nil
}

// ReleaseEmojiOf frees emoji if ownerID still holds it. A reservation that
// changed hands since the caller looked it up is left alone.
func (r *Registry) ReleaseEmojiOf(ctx context.Context, emoji string, ownerID int64) (bool, error) {
	if err := models.Validate(emoji); err != nil {
		return false, err
	}
	released, err := r.repo.ReleaseEmojiOf(ctx, emoji, ownerID)
	if err != nil {
		return false, err
	}
	if released {
		logger.Info().Str("emoji", emoji).Int64("user_id", ownerID).Msg("Emoji reservation released")
	}
	return released, nil
}

func (r *Registry) OwnerOf(ctx context.Context, emoji string) (int64, bool, error) {
	return r.repo.OwnerOf(ctx, emoji)
}

func (r *Registry) ReservationOf(ctx context.Context, userID int64) (*models.Reservation, error) {
	return r.repo.ReservationOf(ctx, userID)
}

// ListAvailable returns the members of all that nobody has reserved, in order.
func (r *Registry) ListAvailable(ctx context.Context, all []string) ([]string, error) {
	taken, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	reserved := make(map[string]struct{}, len(taken))
	for _, res := range taken {
		reserved[res.Emoji] = struct{}{}
	}

	available := make([]string, 0, len(all))
	for _, e := range all {
		if _, ok := reserved[e]; !ok {
			available = append(available, e)
		}
	}
	return available, nil
}

func (r *Registry) List(ctx context.Context) ([]models.Reservation, error) {
	return r.repo.List(ctx)
}
