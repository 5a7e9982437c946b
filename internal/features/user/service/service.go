package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anon-relay-bot/internal/common/logger"
	"anon-relay-bot/internal/features/user/models"
	"anon-relay-bot/internal/features/user/repository"
)

var ErrUserNotFound = repository.ErrUserNotFound

// ReservationReleaser frees the emoji reservation held by a user.
type ReservationReleaser interface {
	Release(ctx context.Context, userID int64) error
}

type UserService interface {
	Upsert(ctx context.Context, id int64, username, displayName string) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
	IsBanned(ctx context.Context, id int64) (bool, error)
	GrantPremium(ctx context.Context, id int64, days int) (*models.User, error)
	IsPremiumActive(ctx context.Context, id int64) (bool, error)
	IncrementCounter(ctx context.Context, id int64, counter models.Counter) error
	SetEmoji(ctx context.Context, id int64, emoji string) error
	SweepExpired(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
}

type Service struct {
	repo         repository.UserRepository
	reservations ReservationReleaser
	defaultEmoji string
	now          func() time.Time
}

type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewUserService(repo repository.UserRepository, reservations ReservationReleaser, defaultEmoji string, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		reservations: reservations,
		defaultEmoji: defaultEmoji,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert registers a user on first contact and refreshes profile fields and
// lastActivity on later calls.
func (s *Service) Upsert(ctx context.Context, id int64, username, displayName string) (*models.User, error) {
	now := s.now()
	return s.repo.Upsert(ctx, id, func(u *models.User, exists bool) error {
		if !exists {
			u.RegisteredAt = now
			u.CurrentEmoji = s.defaultEmoji
		}
		u.Username = username
		u.DisplayName = displayName
		u.LastActivity = now
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) SetBanned(ctx context.Context, id int64, banned bool) error {
	_, err := s.repo.Update(ctx, id, func(u *models.User) error {
		u.Banned = banned
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info().Int64("user_id", id).Bool("banned", banned).Msg("Ban state changed")
	return nil
}

// IsBanned treats unknown users as not banned.
func (s *Service) IsBanned(ctx context.Context, id int64) (bool, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.Banned, nil
}

// GrantPremium extends the premium window by days starting from the later of
// now and the current expiry. days <= 0 revokes premium immediately.
func (s *Service) GrantPremium(ctx context.Context, id int64, days int) (*models.User, error) {
	now := s.now()
	revoked := false

	u, err := s.repo.Update(ctx, id, func(u *models.User) error {
		revoked = false
		if days <= 0 {
			revoked = u.PremiumUntil != nil
			u.PremiumUntil = nil
			u.CurrentEmoji = s.defaultEmoji
			return nil
		}
		base := now
		if u.PremiumUntil != nil && u.PremiumUntil.After(now) {
			base = *u.PremiumUntil
		}
		until := base.Add(time.Duration(days) * 24 * time.Hour)
		u.PremiumUntil = &until
		return nil
	})
	if err != nil {
		return nil, err
	}

	if days <= 0 {
		if err := s.reservations.Release(ctx, id); err != nil {
			return nil, fmt.Errorf("release reservation: %w", err)
		}
		logger.Info().Int64("user_id", id).Bool("had_premium", revoked).Msg("Premium revoked")
		return u, nil
	}

	logger.Info().Int64("user_id", id).Int("days", days).Time("premium_until", *u.PremiumUntil).Msg("Premium granted")
	return u, nil
}

// IsPremiumActive reports the premium state. A lapsed window is cleared and
// the user's emoji reservation released before returning false.
func (s *Service) IsPremiumActive(ctx context.Context, id int64) (bool, error) {
	now := s.now()

	u, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	if u.IsPremium(now) {
		return true, nil
	}
	if !u.PremiumLapsed(now) {
		return false, nil
	}

	if err := s.expire(ctx, id, now); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Service) expire(ctx context.Context, id int64, now time.Time) error {
	cleared := false
	_, err := s.repo.Update(ctx, id, func(u *models.User) error {
		cleared = false
		// premium may have been re-granted since the read
		if !u.PremiumLapsed(now) {
			return nil
		}
		u.PremiumUntil = nil
		u.CurrentEmoji = s.defaultEmoji
		cleared = true
		return nil
	})
	if err != nil {
		return err
	}
	if !cleared {
		return nil
	}

	if err := s.reservations.Release(ctx, id); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	logger.Info().Int64("user_id", id).Msg("Premium expired, reservation released")
	return nil
}

func (s *Service) IncrementCounter(ctx context.Context, id int64, counter models.Counter) error {
	_, err := s.repo.Update(ctx, id, func(u *models.User) error {
		u.Increment(counter)
		u.LastActivity = s.now()
		return nil
	})
	return err
}

func (s *Service) SetEmoji(ctx context.Context, id int64, emoji string) error {
	_, err := s.repo.Update(ctx, id, func(u *models.User) error {
		u.CurrentEmoji = emoji
		return nil
	})
	return err
}

// SweepExpired clears every lapsed premium window and returns how many were cleared.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.repo.PremiumExpiredBefore(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		if err := s.expire(ctx, id, now); err != nil {
			logger.Error().Err(err).Int64("user_id", id).Msg("Failed to expire premium")
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]*models.User, error) {
	return s.repo.List(ctx, limit)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// CountPremium counts users with an open premium window. Lapsed windows that
// were not swept yet are not counted.
func (s *Service) CountPremium(ctx context.Context) (int, error) {
	return s.repo.CountPremium(ctx, s.now())
}
