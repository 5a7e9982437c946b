package service

import (
	"context"
	"errors"
	"fmt"

	"anon-relay-bot/internal/common/logger"
	"anon-relay-bot/internal/features/payment/models"
	"anon-relay-bot/internal/features/payment/repository"
	usermodels "anon-relay-bot/internal/features/user/models"
)

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrAmountMismatch = errors.New("payment amount does not match the price")
)

// PremiumGranter extends a user's premium window.
type PremiumGranter interface {
	GrantPremium(ctx context.Context, id int64, days int) (*usermodels.User, error)
}

type Config struct {
	PriceStars  int
	PremiumDays int
}

// Completion is a successful payment as reported by Telegram.
type Completion struct {
	UserID   int64
	ChargeID string
	Payload  string
	Currency string
	Amount   int
}

type Service struct {
	repo    repository.PaymentRepository
	premium PremiumGranter
	cfg     Config
}

func NewPaymentService(repo repository.PaymentRepository, premium PremiumGranter, cfg Config) *Service {
	return &Service{repo: repo, premium: premium, cfg: cfg}
}

// PremiumInvoice builds the Telegram Stars invoice for the premium product.
func (s *Service) PremiumInvoice() models.Invoice {
	return models.Invoice{
		Title:       "Premium",
		Description: fmt.Sprintf("%d days of premium: edit and delete your posts and reserve a unique emoji.", s.cfg.PremiumDays),
		Payload:     models.Payload(models.ProductPremium, s.cfg.PremiumDays),
		Currency:    models.CurrencyStars,
		Amount:      s.cfg.PriceStars,
	}
}

// ValidateCheckout decides the answer to a pre-checkout query.
func (s *Service) ValidateCheckout(payload, currency string, amount int) error {
	product, days, err := models.ParsePayload(payload)
	if err != nil {
		return err
	}
	if product != models.ProductPremium || days != s.cfg.PremiumDays {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, payload)
	}
	if currency != models.CurrencyStars || amount != s.cfg.PriceStars {
		return fmt.Errorf("%w: got %d %s", ErrAmountMismatch, amount, currency)
	}
	return nil
}

// Complete records a successful payment and grants premium exactly once per
// charge id. It reports whether premium was granted by this call.
func (s *Service) Complete(ctx context.Context, c Completion) (bool, error) {
	product, days, err := models.ParsePayload(c.Payload)
	if err != nil {
		return false, err
	}
	if product != models.ProductPremium {
		return false, fmt.Errorf("%w: %s", ErrUnknownProduct, product)
	}

	p := &models.Payment{
		ChargeID:    c.ChargeID,
		UserID:      c.UserID,
		Amount:      c.Amount,
		Currency:    c.Currency,
		Payload:     c.Payload,
		Product:     product,
		GrantedDays: days,
	}
	granted, err := s.repo.RecordOnce(ctx, p, func(ctx context.Context) error {
		_, err := s.premium.GrantPremium(ctx, c.UserID, days)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Int64("user_id", c.UserID).Str("charge_id", c.ChargeID).Msg("Failed to complete payment")
		return false, err
	}
	if !granted {
		logger.Warn().Int64("user_id", c.UserID).Str("charge_id", c.ChargeID).Msg("Duplicate payment ignored")
		return false, nil
	}

	logger.Info().Int64("user_id", c.UserID).Str("charge_id", c.ChargeID).Int("days", days).Int("amount", c.Amount).Msg("Premium purchased")
	return true, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
