package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxEmojiRunes bounds the glyph length in code points.
const MaxEmojiRunes = 4

var ErrInvalidEmoji = errors.New("invalid emoji")

// Reservation binds an emoji to exactly one owner.
// @Description Exclusive emoji reservation
type Reservation struct {
	Emoji      string    `json:"emoji" example:"🔥"`
	OwnerID    int64     `json:"owner_id" example:"123456789"`
	ReservedAt time.Time `json:"reserved_at" example:"2024-03-15T14:30:00Z"`
}

type ReserveStatus int

const (
	Reserved ReserveStatus = iota + 1
	Conflict
)

func (s ReserveStatus) String() string {
	switch s {
	case Reserved:
		return "reserved"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// ReserveResult is Reserved with the caller as owner, or Conflict with the
// current owner.
type ReserveResult struct {
	Status  ReserveStatus
	OwnerID int64
}

// Validate rejects blank glyphs and glyphs longer than MaxEmojiRunes.
func Validate(emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return ErrInvalidEmoji
	}
	if utf8.RuneCountInString(emoji) > MaxEmojiRunes {
		return ErrInvalidEmoji
	}
	return nil
}
