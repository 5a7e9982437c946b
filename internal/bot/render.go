package bot

import (
	"fmt"
	"strings"
	"time"

	"anon-relay-bot/internal/features/admin/models"
	msgmodels "anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/relay"
	usermodels "anon-relay-bot/internal/features/user/models"
)

const (
	textInternal = "⚠️ Something went wrong. Please try again later."

	textStart = "👋 Send me any message and I will post it anonymously to the channel.\n\n" +
		"Text, photos, videos, voice messages and documents are supported. " +
		"Forward a channel post to me to reply to it.\n\nSee /help for all commands."

	textHelp = "Commands:\n" +
		"/myemoji - show your signature emoji\n" +
		"/emoji <emoji> - change your signature emoji\n" +
		"/availableemojis - premium emojis nobody has reserved\n" +
		"/myreservations - your reserved emoji\n" +
		"/myposts - your latest posts and their ids\n" +
		"/edit <id> - edit one of your posts (premium)\n" +
		"/delete <id> - delete one of your posts (premium)\n" +
		"/cancel - cancel a pending edit or reply\n" +
		"/premium - your premium status\n" +
		"/buy_premium - buy premium with Telegram Stars"

	textUnsupported   = "This kind of message cannot be relayed. Send text, a photo, a video, a voice message or a document."
	textEditUsage     = "Usage: /edit <message id>"
	textDeleteUsage   = "Usage: /delete <message id>"
	textEmojiUsage    = "Usage: /emoji <emoji>"
	textCancelled     = "Cancelled."
	textNothingCancel = "Nothing to cancel."
	textNoPayments    = "Purchases are not available right now."
	textPaymentDone   = "⭐ Thank you! Premium is active. Reserve an emoji with /emoji."
	textNoPosts       = "You have no posts in the channel yet."
	textNoReservation = "You have no reserved emoji. Premium users reserve one with /emoji <emoji>."
)

var failureTexts = map[relay.Reason]string{
	relay.ReasonBanned:          "🚫 You are banned from posting.",
	relay.ReasonNotFound:        "Message not found.",
	relay.ReasonNotOwner:        "You can only change your own posts.",
	relay.ReasonAlreadyDeleted:  "That post was already deleted.",
	relay.ReasonNoChange:        "The text is unchanged.",
	relay.ReasonPremiumRequired: "⭐ Editing and deleting posts is a premium feature. See /buy_premium.",
	relay.ReasonNotEditable:     "Only text posts can be edited.",
	relay.ReasonEmptyContent:    "Nothing to send.",
	relay.ReasonTooLong:         "The message is too long.",
	relay.ReasonInvalidEmoji:    "Send a single emoji, for example /emoji 🦊",
	relay.ReasonGatewayError:    "⚠️ Telegram rejected the request. Please try again later.",
	relay.ReasonGatewayTimeout:  "⚠️ Telegram did not answer in time. Please try again.",
	relay.ReasonInternal:        textInternal,
}

// renderResult turns a coordinator result into the reply shown to the user.
// It never reveals who owns a conflicting emoji.
func renderResult(res relay.Result) string {
	if res.Committed() {
		switch res.Op {
		case relay.OpPost:
			return fmt.Sprintf("✅ Posted as %s. Message id: %d", res.Emoji, res.MessageID)
		case relay.OpReply:
			return fmt.Sprintf("✅ Reply posted as %s. Message id: %d", res.Emoji, res.MessageID)
		case relay.OpEdit:
			return fmt.Sprintf("✏️ Message %d updated.", res.MessageID)
		case relay.OpDelete:
			return fmt.Sprintf("🗑 Message %d deleted.", res.MessageID)
		case relay.OpBeginEdit:
			return fmt.Sprintf("Send the new text for message %d, or /cancel.", res.MessageID)
		case relay.OpBeginReply:
			return fmt.Sprintf("↩️ Replying to message %d. Send your reply, or /cancel.", res.MessageID)
		case relay.OpBeginDelete:
			return fmt.Sprintf("Delete message %d? This cannot be undone.", res.MessageID)
		case relay.OpSetEmoji:
			return fmt.Sprintf("Your emoji is now %s", res.Emoji)
		default:
			return "Done."
		}
	}

	switch res.Reason {
	case relay.ReasonRateLimited:
		return fmt.Sprintf("⏳ Too many messages. Try again in %s.", formatWait(res.RetryAfter))
	case relay.ReasonCooldown:
		return fmt.Sprintf("⏳ Slow down. You can post again in %s.", formatWait(res.RetryAfter))
	case relay.ReasonGatewayThrottled:
		return fmt.Sprintf("⏳ The channel is busy. Try again in %s.", formatWait(res.RetryAfter))
	case relay.ReasonEmojiConflict:
		return fmt.Sprintf("%s is reserved by another user. See /availableemojis.", res.Emoji)
	}
	if text, ok := failureTexts[res.Reason]; ok {
		return text
	}
	return textInternal
}

// formatWait rounds up to whole seconds.
func formatWait(d time.Duration) string {
	if d <= 0 {
		return "a moment"
	}
	return ((d + time.Second - 1) / time.Second * time.Second).String()
}

func renderPremium(u *usermodels.User, active bool) string {
	if !active || u.PremiumUntil == nil {
		return "You do not have premium. See /buy_premium."
	}
	return fmt.Sprintf("⭐ Premium is active until %s.", u.PremiumUntil.UTC().Format("2006-01-02 15:04 MST"))
}

// myPostsLimit caps the /myposts listing.
const myPostsLimit = 10

const postPreviewRunes = 40

// renderPosts lists posts newest first with the ids /edit and /delete take.
func renderPosts(posts []*msgmodels.Message) string {
	if len(posts) == 0 {
		return textNoPosts
	}
	var sb strings.Builder
	sb.WriteString("Your latest posts:")
	for _, m := range posts {
		preview := m.Text
		if r := []rune(preview); len(r) > postPreviewRunes {
			preview = string(r[:postPreviewRunes]) + "…"
		}
		if preview == "" {
			preview = "[" + string(m.Kind) + "]"
		}
		fmt.Fprintf(&sb, "\n#%d %s %s", m.ID, m.CreatedAt.UTC().Format("2006-01-02"), preview)
		if m.EditCount > 0 {
			fmt.Fprintf(&sb, " (edited %d×)", m.EditCount)
		}
	}
	return sb.String()
}

func renderEmojiList(title string, emojis []string) string {
	if len(emojis) == 0 {
		return title + "\nNone."
	}
	return title + "\n" + strings.Join(emojis, " ")
}

// renderAdmin formats an admin command answer for chat.
func renderAdmin(out any) string {
	switch v := out.(type) {
	case *usermodels.User:
		return renderUserLine(v)
	case models.EmojiFreed:
		if !v.Freed {
			return fmt.Sprintf("%s was not reserved.", v.Emoji)
		}
		return fmt.Sprintf("%s freed from user %d.", v.Emoji, v.OwnerID)
	case models.Reservations:
		if len(v.Items) == 0 {
			return "No reserved emojis."
		}
		var sb strings.Builder
		sb.WriteString("Reserved emojis:")
		for _, r := range v.Items {
			fmt.Fprintf(&sb, "\n%s %d", r.Emoji, r.OwnerID)
		}
		return sb.String()
	case models.StatsReport:
		return fmt.Sprintf("Users: %d\nPremium users: %d\nMessages: %d\nReserved emojis: %d\nPayments: %d",
			v.Users, v.PremiumUsers, v.Messages, v.ReservedEmojis, v.Payments)
	case models.UserList:
		var sb strings.Builder
		fmt.Fprintf(&sb, "Users (%d of %d):", len(v.Items), v.Total)
		for _, u := range v.Items {
			sb.WriteString("\n")
			sb.WriteString(renderUserLine(u))
		}
		return sb.String()
	case models.History:
		if v.Message == nil {
			return "Message not found."
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Message %d by %d, %s", v.Message.ID, v.Message.OwnerID, v.Message.Kind)
		if v.Message.Deleted {
			sb.WriteString(", deleted")
		}
		fmt.Fprintf(&sb, "\nCurrent: %s", v.Message.Text)
		for _, e := range v.Edits {
			fmt.Fprintf(&sb, "\n%s by %d: %q -> %q", e.EditedAt.UTC().Format(time.DateTime), e.EditorID, e.OldText, e.NewText)
		}
		return sb.String()
	default:
		return "Done."
	}
}

func renderUserLine(u *usermodels.User) string {
	line := fmt.Sprintf("%d %s", u.ID, u.CurrentEmoji)
	if u.Username != "" {
		line += " @" + u.Username
	}
	if u.Banned {
		line += " [banned]"
	}
	if u.PremiumUntil != nil && u.PremiumUntil.After(time.Now()) {
		line += " [premium]"
	}
	return line
}
