package models

import "time"

// Counter selects one of the per-user activity counters.
type Counter int

const (
	CounterMessage Counter = iota + 1
	CounterEdit
	CounterDelete
)

func (c Counter) String() string {
	switch c {
	case CounterMessage:
		return "message"
	case CounterEdit:
		return "edit"
	case CounterDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// User is a bot user known by Telegram id. Users are never hard-deleted.
// @Description Relay bot user
type User struct {
	ID           int64      `json:"id" example:"123456789"`
	Username     string     `json:"username,omitempty" example:"johndoe"`
	DisplayName  string     `json:"display_name,omitempty" example:"John Doe"`
	Banned       bool       `json:"banned" example:"false"`
	PremiumUntil *time.Time `json:"premium_until,omitempty" example:"2024-04-15T14:30:00Z"`
	CurrentEmoji string     `json:"current_emoji" example:"📨"`
	MessageCount int64      `json:"message_count" example:"12"`
	EditCount    int64      `json:"edit_count" example:"1"`
	DeleteCount  int64      `json:"delete_count" example:"0"`
	RegisteredAt time.Time  `json:"registered_at" example:"2024-03-15T14:30:00Z"`
	LastActivity time.Time  `json:"last_activity" example:"2024-03-15T14:30:00Z"`
}

// IsPremium reports whether the premium window is open at now.
func (u *User) IsPremium(now time.Time) bool {
	return u.PremiumUntil != nil && u.PremiumUntil.After(now)
}

// PremiumLapsed reports a premium window that has passed but was not cleared yet.
func (u *User) PremiumLapsed(now time.Time) bool {
	return u.PremiumUntil != nil && !u.PremiumUntil.After(now)
}

func (u *User) Increment(c Counter) {
	switch c {
	case CounterMessage:
		u.MessageCount++
	case CounterEdit:
		u.EditCount++
	case CounterDelete:
		u.DeleteCount++
	}
}

func (u *User) Clone() *User {
	cp := *u
	if u.PremiumUntil != nil {
		until := *u.PremiumUntil
		cp.PremiumUntil = &until
	}
	return &cp
}
