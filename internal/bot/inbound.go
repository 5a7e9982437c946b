package bot

import (
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	msgmodels "anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/relay"
)

// splitCommand returns the command name without slash or @bot suffix and the
// remaining arguments. name is empty for plain text.
func splitCommand(text string) (name string, args []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}

// messageIDArg parses the single message id argument of /edit and /delete.
func messageIDArg(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func displayName(u *telego.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// contentOf extracts what a message carries. ok is false for messages the
// bot cannot relay, such as stickers or locations.
func contentOf(msg *telego.Message) (relay.Content, bool) {
	switch {
	case len(msg.Photo) > 0:
		// the last size is the largest
		return relay.Content{Kind: msgmodels.KindPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID, Text: msg.Caption}, true
	case msg.Video != nil:
		return relay.Content{Kind: msgmodels.KindVideo, FileID: msg.Video.FileID, Text: msg.Caption}, true
	case msg.Voice != nil:
		return relay.Content{Kind: msgmodels.KindVoice, FileID: msg.Voice.FileID, Text: msg.Caption}, true
	case msg.Document != nil:
		return relay.Content{Kind: msgmodels.KindDocument, FileID: msg.Document.FileID, Text: msg.Caption}, true
	case msg.Text != "":
		return relay.Content{Kind: msgmodels.KindText, Text: msg.Text}, true
	default:
		return relay.Content{}, false
	}
}

// inboundFrom maps a private message to the coordinator's input. Forwards of
// posts from channel carry the channel message id.
func inboundFrom(msg *telego.Message, channel string) (relay.InboundMessage, bool) {
	if msg.From == nil {
		return relay.InboundMessage{}, false
	}

	in := relay.InboundMessage{
		UserID:      msg.From.ID,
		Username:    msg.From.Username,
		DisplayName: displayName(msg.From),
	}

	if origin, ok := msg.ForwardOrigin.(*telego.MessageOriginChannel); ok && isChannel(origin.Chat, channel) {
		in.ForwardedFrom = int64(origin.MessageID)
		return in, true
	}

	content, ok := contentOf(msg)
	if !ok {
		return relay.InboundMessage{}, false
	}
	in.Content = content
	return in, true
}

func isChannel(chat telego.Chat, channel string) bool {
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return chat.ID == id
	}
	return chat.Username != "" && strings.EqualFold(chat.Username, strings.TrimPrefix(channel, "@"))
}

const (
	callbackDelete = "delete"
	callbackCancel = "cancel"
)

func deleteCallback(id int64) string {
	return callbackDelete + ":" + strconv.FormatInt(id, 10)
}

// parseCallback splits "action:id" data. id is 0 for actions without one.
func parseCallback(data string) (action string, id int64, ok bool) {
	action, raw, found := strings.Cut(data, ":")
	switch action {
	case callbackCancel:
		return action, 0, true
	case callbackDelete:
		if !found {
			return "", 0, false
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return "", 0, false
		}
		return action, id, true
	default:
		return "", 0, false
	}
}
