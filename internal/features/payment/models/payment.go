package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CurrencyStars is the Telegram Stars currency code.
const CurrencyStars = "XTR"

const ProductPremium = "premium"

var ErrInvalidPayload = errors.New("invalid invoice payload")

// Payment is a settled Telegram payment. ChargeID is unique per payment and
// makes recording idempotent.
// @Description Settled premium purchase
type Payment struct {
	ChargeID    string    `gorm:"primaryKey;size:128" json:"charge_id" example:"stxABC"`
	UserID      int64     `gorm:"index;not null" json:"user_id" example:"123456789"`
	Amount      int       `gorm:"not null" json:"amount" example:"100"`
	Currency    string    `gorm:"size:8;not null" json:"currency" example:"XTR"`
	Payload     string    `gorm:"size:128" json:"payload" example:"premium:30"`
	Product     string    `gorm:"size:32;not null" json:"product" example:"premium"`
	GrantedDays int       `gorm:"not null" json:"granted_days" example:"30"`
	CreatedAt   time.Time `json:"created_at"`
}

// Invoice describes what the bot asks the user to pay.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	Amount      int
}

// Payload encodes the product and the number of premium days.
func Payload(product string, days int) string {
	return fmt.Sprintf("%s:%d", product, days)
}

// ParsePayload is the inverse of Payload.
func ParsePayload(payload string) (product string, days int, err error) {
	product, rawDays, ok := strings.Cut(payload, ":")
	if !ok || product == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	days, err = strconv.Atoi(rawDays)
	if err != nil || days <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
	return product, days, nil
}
