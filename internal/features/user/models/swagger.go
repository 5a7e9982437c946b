package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error" example:"Error message"`
}

// BanUpdate represents a ban toggle request
type BanUpdate struct {
	Banned bool `json:"banned" example:"true"`
}

// MeResponse is the caller's own profile
// @Description Current user profile
type MeResponse struct {
	User          *User  `json:"user"`
	Premium       bool   `json:"premium" example:"true"`
	ReservedEmoji string `json:"reserved_emoji,omitempty" example:"🔥"`
}
