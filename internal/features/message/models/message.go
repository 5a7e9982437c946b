package models

import (
	"errors"
	"time"
)

// MaxTextRunes is the Telegram limit for message text.
const MaxTextRunes = 4096

var (
	ErrMessageNotFound    = errors.New("message not found")
	ErrDuplicateMessageID = errors.New("duplicate message id")
)

type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindVoice    Kind = "voice"
	KindDocument Kind = "document"
)

// Editable reports whether the text of this kind can be changed in the channel.
func (k Kind) Editable() bool {
	return k == KindText
}

// Message is the ledger entry for one relayed channel post. ID is the
// channel message id returned by the gateway.
// @Description Relayed channel message
type Message struct {
	ID         int64      `json:"id" example:"1001"`
	OwnerID    int64      `json:"owner_id" example:"123456789"`
	Kind       Kind       `json:"kind" example:"text" enums:"text,photo,video,voice,document"`
	Text       string     `json:"text" example:"hello"`
	EmojiUsed  string     `json:"emoji_used" example:"🔥"`
	ReplyTo    int64      `json:"reply_to,omitempty" example:"1000"`
	CreatedAt  time.Time  `json:"created_at" example:"2024-03-15T14:30:00Z"`
	EditCount  int        `json:"edit_count" example:"0"`
	LastEditAt *time.Time `json:"last_edit_at,omitempty"`
	Deleted    bool       `json:"deleted" example:"false"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func (m *Message) Clone() *Message {
	cp := *m
	if m.LastEditAt != nil {
		t := *m.LastEditAt
		cp.LastEditAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

// EditRecord is one entry of a message's edit history.
// @Description Message edit history entry
type EditRecord struct {
	MessageID int64     `json:"message_id" example:"1001"`
	OldText   string    `json:"old_text" example:"helo"`
	NewText   string    `json:"new_text" example:"hello"`
	EditorID  int64     `json:"editor_id" example:"123456789"`
	EditedAt  time.Time `json:"edited_at" example:"2024-03-15T14:31:00Z"`
}

type RecordParams struct {
	ID      int64
	OwnerID int64
	Kind    Kind
	Text    string
	Emoji   string
	ReplyTo int64
}

// Requester identifies who asks for a mutation. Elevated requesters bypass
// the ownership check.
type Requester struct {
	UserID   int64
	Elevated bool
}

type Outcome int

const (
	OutcomeOK Outcome = iota + 1
	OutcomeNotFound
	OutcomeNotOwner
	OutcomeAlreadyDeleted
	OutcomeNoOp
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeNotOwner:
		return "not_owner"
	case OutcomeAlreadyDeleted:
		return "already_deleted"
	case OutcomeNoOp:
		return "no_op"
	default:
		return "unknown"
	}
}

// Mutation inspects and possibly changes m. The change is persisted only when
// it returns OutcomeOK; a non-nil EditRecord is appended in the same step.
type Mutation func(m *Message) (Outcome, *EditRecord)
