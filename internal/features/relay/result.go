package relay

import (
	"time"

	msgmodels "anon-relay-bot/internal/features/message/models"
)

type Status int

const (
	StatusCommitted Status = iota + 1
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Reason string

const (
	ReasonRateLimited      Reason = "rate_limited"
	ReasonCooldown         Reason = "cooldown"
	ReasonBanned           Reason = "banned"
	ReasonNotFound         Reason = "not_found"
	ReasonNotOwner         Reason = "not_owner"
	ReasonAlreadyDeleted   Reason = "already_deleted"
	ReasonNoChange         Reason = "no_change"
	ReasonPremiumRequired  Reason = "premium_required"
	ReasonNotEditable      Reason = "not_editable"
	ReasonEmptyContent     Reason = "empty_content"
	ReasonTooLong          Reason = "too_long"
	ReasonEmojiConflict    Reason = "emoji_conflict"
	ReasonInvalidEmoji     Reason = "invalid_emoji"
	ReasonGatewayError     Reason = "gateway_error"
	ReasonGatewayTimeout   Reason = "gateway_timeout"
	ReasonGatewayThrottled Reason = "gateway_throttled"
	ReasonInternal         Reason = "internal"
)

// Operation names what a request turned into.
type Operation int

const (
	OpPost Operation = iota + 1
	OpReply
	OpEdit
	OpDelete
	OpBeginEdit
	OpBeginReply
	OpBeginDelete
	OpSetEmoji
	OpGrantPremium
)

// Result is the terminal state of one coordinator request.
type Result struct {
	Status     Status
	Op         Operation
	Reason     Reason
	MessageID  int64
	RetryAfter time.Duration
	// OwnerID is the holder of a conflicting emoji.
	OwnerID int64
	Emoji   string
	Message *msgmodels.Message
	Err     error
}

func (r Result) Committed() bool {
	return r.Status == StatusCommitted
}

func committed(op Operation) Result {
	return Result{Status: StatusCommitted, Op: op}
}

func failed(op Operation, reason Reason) Result {
	return Result{Status: StatusFailed, Op: op, Reason: reason}
}

// retryable reasons leave a pending session in place.
func (r Result) retryable() bool {
	switch r.Reason {
	case ReasonEmptyContent, ReasonTooLong, ReasonRateLimited, ReasonCooldown, ReasonGatewayError, ReasonGatewayTimeout, ReasonGatewayThrottled:
		return true
	default:
		return false
	}
}
