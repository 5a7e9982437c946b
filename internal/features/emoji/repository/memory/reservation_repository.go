package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"anon-relay-bot/internal/features/emoji/models"
	"anon-relay-bot/internal/features/emoji/repository"
)

type reservationRepository struct {
	mu      sync.Mutex
	byEmoji map[string]models.Reservation
	byOwner map[int64]string
}

func NewReservationRepository() repository.ReservationRepository {
	return &reservationRepository{
		byEmoji: make(map[string]models.Reservation),
		byOwner: make(map[int64]string),
	}
}

func (r *reservationRepository) Reserve(_ context.Context, userID int64, emoji string, now time.Time) (models.ReserveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.byEmoji[emoji]; ok {
		if held.OwnerID == userID {
			return models.ReserveResult{Status: models.Reserved, OwnerID: userID}, nil
		}
		return models.ReserveResult{Status: models.Conflict, OwnerID: held.OwnerID}, nil
	}

	if prior, ok := r.byOwner[userID]; ok {
		delete(r.byEmoji, prior)
	}
	r.byEmoji[emoji] = models.Reservation{Emoji: emoji, OwnerID: userID, ReservedAt: now}
	r.byOwner[userID] = emoji
	return models.ReserveResult{Status: models.Reserved, OwnerID: userID}, nil
}

func (r *reservationRepository) Release(_ context.Context, userID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emoji, ok := r.byOwner[userID]
	if !ok {
		return "", nil
	}
	delete(r.byOwner, userID)
	if held, ok := r.byEmoji[emoji]; ok && held.OwnerID == userID {
		delete(r.byEmoji, emoji)
	}
	return emoji, nil
}

func (r *reservationRepository) ReleaseEmojiOf(_ context.Context, emoji string, ownerID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held, ok := r.byEmoji[emoji]
	if !ok || held.OwnerID != ownerID {
		return false, nil
	}
	delete(r.byEmoji, emoji)
	if r.byOwner[held.OwnerID] == emoji {
		delete(r.byOwner, held.OwnerID)
	}
	return true, nil
}

func (r *reservationRepository) OwnerOf(_ context.Context, emoji string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held, ok := r.byEmoji[emoji]
	return held.OwnerID, ok, nil
}

func (r *reservationRepository) ReservationOf(_ context.Context, userID int64) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emoji, ok := r.byOwner[userID]
	if !ok {
		return nil, nil
	}
	res := r.byEmoji[emoji]
	return &res, nil
}

func (r *reservationRepository) List(_ context.Context) ([]models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Reservation, 0, len(r.byEmoji))
	for _, res := range r.byEmoji {
		out = append(out, res)
	}
	sortReservations(out)
	return out, nil
}

func sortReservations(out []models.Reservation) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservedAt.Equal(out[j].ReservedAt) {
			return out[i].Emoji < out[j].Emoji
		}
		return out[i].ReservedAt.Before(out[j].ReservedAt)
	})
}
