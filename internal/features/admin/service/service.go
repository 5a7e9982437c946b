package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"anon-relay-bot/internal/common/logger"
	"anon-relay-bot/internal/features/admin/models"
	emojimodels "anon-relay-bot/internal/features/emoji/models"
	msgmodels "anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/relay"
	usermodels "anon-relay-bot/internal/features/user/models"
	userrepo "anon-relay-bot/internal/features/user/repository"
)

type Users interface {
	Get(ctx context.Context, id int64) (*usermodels.User, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
	SetEmoji(ctx context.Context, id int64, emoji string) error
	List(ctx context.Context, limit int) ([]*usermodels.User, error)
	Count(ctx context.Context) (int, error)
	CountPremium(ctx context.Context) (int, error)
}

type Emojis interface {
	OwnerOf(ctx context.Context, emoji string) (int64, bool, error)
	ReleaseEmojiOf(ctx context.Context, emoji string, ownerID int64) (bool, error)
	List(ctx context.Context) ([]emojimodels.Reservation, error)
}

type Messages interface {
	Get(ctx context.Context, id int64) (*msgmodels.Message, error)
	History(ctx context.Context, id int64) ([]msgmodels.EditRecord, error)
	Count(ctx context.Context) (int, error)
}

// Premium publishes PremiumGranted through the relay coordinator.
type Premium interface {
	GrantPremium(ctx context.Context, userID int64, days int) relay.Result
}

type PaymentCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Service executes admin commands. The caller has already authenticated the
// actor as an admin.
type Service struct {
	users        Users
	emojis       Emojis
	messages     Messages
	premium      Premium
	payments     PaymentCounter
	defaultEmoji string
}

// NewAdminService builds the service. payments may be nil when purchases are disabled.
func NewAdminService(users Users, emojis Emojis, messages Messages, premium Premium, payments PaymentCounter, defaultEmoji string) *Service {
	return &Service{
		users:        users,
		emojis:       emojis,
		messages:     messages,
		premium:      premium,
		payments:     payments,
		defaultEmoji: defaultEmoji,
	}
}

// Execute runs cmd on behalf of actorID and returns the command's answer:
// *usermodels.User for Ban, Unban and GrantPremium, models.EmojiFreed,
// models.Reservations, models.StatsReport, models.UserList or models.History.
func (s *Service) Execute(ctx context.Context, actorID int64, cmd models.Command) (any, error) {
	switch c := cmd.(type) {
	case models.Ban:
		u, err := s.setBanned(ctx, c.UserID, true)
		if err == nil {
			audit(actorID, cmd).Int64("user_id", c.UserID).Msg("User banned")
		}
		return u, err
	case models.Unban:
		u, err := s.setBanned(ctx, c.UserID, false)
		if err == nil {
			audit(actorID, cmd).Int64("user_id", c.UserID).Msg("User unbanned")
		}
		return u, err
	case models.GrantPremium:
		if res := s.premium.GrantPremium(ctx, c.UserID, c.Days); !res.Committed() {
			return nil, res.Err
		}
		audit(actorID, cmd).Int64("user_id", c.UserID).Int("days", c.Days).Msg("Premium changed by admin")
		return s.users.Get(ctx, c.UserID)
	case models.FreeEmoji:
		return s.freeEmoji(ctx, actorID, c)
	case models.ListReservedEmojis:
		items, err := s.emojis.List(ctx)
		if err != nil {
			return nil, err
		}
		return models.Reservations{Items: items}, nil
	case models.Stats:
		return s.stats(ctx)
	case models.ListUsers:
		limit := c.Limit
		if limit <= 0 {
			limit = models.DefaultListLimit
		}
		items, err := s.users.List(ctx, limit)
		if err != nil {
			return nil, err
		}
		total, err := s.users.Count(ctx)
		if err != nil {
			return nil, err
		}
		return models.UserList{Items: items, Total: total}, nil
	case models.MessageHistory:
		msg, err := s.messages.Get(ctx, c.MessageID)
		if err != nil {
			return nil, err
		}
		edits, err := s.messages.History(ctx, c.MessageID)
		if err != nil {
			return nil, err
		}
		return models.History{Message: msg, Edits: edits}, nil
	default:
		return nil, fmt.Errorf("%w: %T", models.ErrUnknownCommand, cmd)
	}
}

func (s *Service) setBanned(ctx context.Context, id int64, banned bool) (*usermodels.User, error) {
	if err := s.users.SetBanned(ctx, id, banned); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, id)
}

// freeEmoji drops the reservation and moves its owner back to the default glyph.
func (s *Service) freeEmoji(ctx context.Context, actorID int64, cmd models.FreeEmoji) (models.EmojiFreed, error) {
	emoji := cmd.Emoji
	if err := emojimodels.Validate(emoji); err != nil {
		return models.EmojiFreed{}, err
	}

	// release only the owner that was looked up; retry if it changed meanwhile
	for {
		if err := ctx.Err(); err != nil {
			return models.EmojiFreed{}, err
		}
		owner, reserved, err := s.emojis.OwnerOf(ctx, emoji)
		if err != nil {
			return models.EmojiFreed{}, err
		}
		if !reserved {
			return models.EmojiFreed{Emoji: emoji}, nil
		}

		freed, err := s.emojis.ReleaseEmojiOf(ctx, emoji, owner)
		if err != nil {
			return models.EmojiFreed{}, err
		}
		if !freed {
			continue
		}
		if err := s.users.SetEmoji(ctx, owner, s.defaultEmoji); err != nil && !errors.Is(err, userrepo.ErrUserNotFound) {
			return models.EmojiFreed{}, err
		}
		audit(actorID, cmd).Int64("owner_id", owner).Str("emoji", emoji).Msg("Emoji freed")
		return models.EmojiFreed{Emoji: emoji, OwnerID: owner, Freed: true}, nil
	}
}

func (s *Service) stats(ctx context.Context) (models.StatsReport, error) {
	var report models.StatsReport
	var err error

	if report.Users, err = s.users.Count(ctx); err != nil {
		return report, err
	}
	if report.PremiumUsers, err = s.users.CountPremium(ctx); err != nil {
		return report, err
	}
	if report.Messages, err = s.messages.Count(ctx); err != nil {
		return report, err
	}
	reservations, err := s.emojis.List(ctx)
	if err != nil {
		return report, err
	}
	report.ReservedEmojis = len(reservations)
	if s.payments != nil {
		if report.Payments, err = s.payments.Count(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

func audit(actorID int64, cmd models.Command) *zerolog.Event {
	return logger.Info().Int64("admin_id", actorID).Str("command", cmd.Name())
}
