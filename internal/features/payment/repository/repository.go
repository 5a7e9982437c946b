package repository

import (
	"context"

	"anon-relay-bot/internal/features/payment/models"
)

type PaymentRepository interface {
	// RecordOnce stores p and runs apply in the same transaction. It returns
	// false without calling apply when the charge id was already recorded.
	// An error from apply rolls the insert back.
	RecordOnce(ctx context.Context, p *models.Payment, apply func(ctx context.Context) error) (bool, error)
	Count(ctx context.Context) (int64, error)
}
