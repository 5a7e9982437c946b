package relay

import (
	"context"
	"errors"
	"time"

	msgmodels "anon-relay-bot/internal/features/message/models"
)

var (
	// ErrNotModified is returned by Edit when the channel already shows the text.
	ErrNotModified = errors.New("gateway: message is not modified")
	// ErrMessageGone is returned by Delete when the channel no longer has the message.
	ErrMessageGone = errors.New("gateway: message not found in destination")
)

// Throttled is implemented by gateway errors caused by platform flood
// control. Backoff is how long the platform asked to wait.
type Throttled interface {
	error
	TooManyRequests() bool
	Backoff() time.Duration
}

// Outbound is a fully formatted post for the destination channel.
type Outbound struct {
	Kind    msgmodels.Kind
	Text    string
	FileID  string
	ReplyTo int64
}

// Gateway publishes to the destination channel. Send returns the channel
// message id assigned by the platform.
type Gateway interface {
	Send(ctx context.Context, destination string, msg Outbound) (int64, error)
	Edit(ctx context.Context, destination string, id int64, text string) error
	Delete(ctx context.Context, destination string, id int64) error
}
