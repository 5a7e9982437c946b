package models

import (
	emojimodels "anon-relay-bot/internal/features/emoji/models"
	msgmodels "anon-relay-bot/internal/features/message/models"
	usermodels "anon-relay-bot/internal/features/user/models"
)

// StatsReport is the answer to Stats.
// @Description Bot statistics
type StatsReport struct {
	Users          int   `json:"users" example:"120"`
	PremiumUsers   int   `json:"premium_users" example:"12"`
	Messages       int   `json:"messages" example:"3400"`
	ReservedEmojis int   `json:"reserved_emojis" example:"7"`
	Payments       int64 `json:"payments" example:"9"`
}

// UserList is the answer to ListUsers.
type UserList struct {
	Items []*usermodels.User `json:"items"`
	Total int                `json:"total" example:"120"`
}

// History is the answer to MessageHistory.
type History struct {
	Message *msgmodels.Message     `json:"message"`
	Edits   []msgmodels.EditRecord `json:"edits"`
}

// EmojiFreed is the answer to FreeEmoji.
type EmojiFreed struct {
	Emoji   string `json:"emoji" example:"🔥"`
	OwnerID int64  `json:"owner_id,omitempty" example:"123456789"`
	Freed   bool   `json:"freed" example:"true"`
}

// Reservations is the answer to ListReservedEmojis.
type Reservations struct {
	Items []emojimodels.Reservation `json:"items"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error" example:"Error message"`
}

// PremiumGrant is the body of the grant premium endpoint.
type PremiumGrant struct {
	Days int `json:"days" example:"30"`
}
