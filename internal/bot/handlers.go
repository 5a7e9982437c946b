package bot

import (
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	adminmodels "anon-relay-bot/internal/features/admin/models"
	emojimodels "anon-relay-bot/internal/features/emoji/models"
)

func (b *Bot) startHandler(_ *telego.Bot, update telego.Update) {
	b.reply(update.Message.Chat.ID, textStart)
}

func (b *Bot) helpHandler(_ *telego.Bot, update telego.Update) {
	text := textHelp
	if b.Relay.IsAdmin(update.Message.From.ID) {
		text += "\n\nAdmin:\n" + strings.Join(adminmodels.Usage, "\n")
	}
	b.reply(update.Message.Chat.ID, text)
}

func (b *Bot) premiumHandler(_ *telego.Bot, update telego.Update) {
	ctx := update.Context()
	userID := update.Message.From.ID

	active, err := b.Users.IsPremiumActive(ctx, userID)
	if err != nil {
		b.fail(userID, "premium check", err)
		return
	}
	user, err := b.Users.Get(ctx, userID)
	if err != nil {
		b.fail(userID, "user lookup", err)
		return
	}
	b.reply(userID, renderPremium(user, active))
}

func (b *Bot) myEmojiHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	user, err := b.Users.Get(update.Context(), userID)
	if err != nil {
		b.fail(userID, "user lookup", err)
		return
	}
	b.reply(userID, fmt.Sprintf("Your emoji is %s", user.CurrentEmoji))
}

func (b *Bot) emojiHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	_, args := splitCommand(update.Message.Text)
	if len(args) != 1 {
		b.reply(userID, textEmojiUsage)
		return
	}
	res := b.Relay.SetEmoji(update.Context(), userID, args[0])
	b.reply(userID, renderResult(res))
}

func (b *Bot) availableEmojisHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	available, err := b.Emojis.ListAvailable(update.Context(), emojimodels.PremiumEmojis)
	if err != nil {
		b.fail(userID, "list available emojis", err)
		return
	}
	b.reply(userID, renderEmojiList("Available premium emojis:", available))
}

func (b *Bot) myReservationsHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	reservation, err := b.Emojis.ReservationOf(update.Context(), userID)
	if err != nil {
		b.fail(userID, "reservation lookup", err)
		return
	}
	if reservation == nil {
		b.reply(userID, textNoReservation)
		return
	}
	b.reply(userID, fmt.Sprintf("You reserved %s on %s.", reservation.Emoji, reservation.ReservedAt.UTC().Format("2006-01-02")))
}

func (b *Bot) myPostsHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	posts, err := b.Posts.ListByOwner(update.Context(), userID, myPostsLimit)
	if err != nil {
		b.fail(userID, "posts lookup", err)
		return
	}
	b.reply(userID, renderPosts(posts))
}

func (b *Bot) editHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	_, args := splitCommand(update.Message.Text)
	id, ok := messageIDArg(args)
	if !ok {
		b.reply(userID, textEditUsage)
		return
	}
	b.reply(userID, renderResult(b.Relay.BeginEdit(update.Context(), userID, id)))
}

// deleteHandler asks for confirmation; the post is removed by the callback.
func (b *Bot) deleteHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	_, args := splitCommand(update.Message.Text)
	id, ok := messageIDArg(args)
	if !ok {
		b.reply(userID, textDeleteUsage)
		return
	}

	res := b.Relay.BeginDelete(update.Context(), userID, id)
	if !res.Committed() {
		b.reply(userID, renderResult(res))
		return
	}

	msg := tu.Message(tu.ID(userID), renderResult(res)).WithReplyMarkup(tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🗑 Delete").WithCallbackData(deleteCallback(id)),
			tu.InlineKeyboardButton("Cancel").WithCallbackData(callbackCancel),
		),
	))
	if _, err := b.api.SendMessage(msg); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("Cannot send delete confirmation")
	}
}

func (b *Bot) cancelHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	if b.Relay.CancelSession(userID) {
		b.reply(userID, textCancelled)
		return
	}
	b.reply(userID, textNothingCancel)
}

func (b *Bot) callbackHandler(_ *telego.Bot, update telego.Update) {
	query := update.CallbackQuery
	userID := query.From.ID

	action, id, ok := parseCallback(query.Data)
	if !ok {
		b.answerCallback(query.ID, "")
		return
	}

	switch action {
	case callbackCancel:
		b.answerCallback(query.ID, textCancelled)
	case callbackDelete:
		res := b.Relay.Delete(update.Context(), userID, id)
		text := renderResult(res)
		b.answerCallback(query.ID, text)
		b.reply(userID, text)
	}
}

// relayHandler sends every other private message through the coordinator.
func (b *Bot) relayHandler(_ *telego.Bot, update telego.Update) {
	msg := update.Message
	if msg.From == nil {
		return
	}
	if name, _ := splitCommand(msg.Text); name != "" {
		b.reply(msg.From.ID, "Unknown command. See /help.")
		return
	}

	in, ok := inboundFrom(msg, b.Channel)
	if !ok {
		b.reply(msg.From.ID, textUnsupported)
		return
	}

	res := b.Relay.HandleMessage(update.Context(), in)
	if !res.Committed() {
		b.log.Debug().Int64("user_id", in.UserID).Str("reason", string(res.Reason)).Msg("Relay request rejected")
	}
	b.reply(msg.From.ID, renderResult(res))
}

func (b *Bot) adminHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	if !b.Relay.IsAdmin(userID) {
		b.reply(userID, "Unknown command. See /help.")
		return
	}

	cmd, err := adminmodels.Parse(update.Message.Text)
	if err != nil {
		b.reply(userID, err.Error()+"\n\n"+strings.Join(adminmodels.Usage, "\n"))
		return
	}

	out, err := b.Admin.Execute(update.Context(), userID, cmd)
	if err != nil {
		b.log.Warn().Err(err).Int64("admin_id", userID).Str("command", cmd.Name()).Msg("Admin command failed")
		b.reply(userID, "❌ "+err.Error())
		return
	}
	b.reply(userID, renderAdmin(out))
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.SendMessage(tu.Message(tu.ID(chatID), text)); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("Cannot send message")
	}
}

func (b *Bot) answerCallback(queryID, text string) {
	err := b.api.AnswerCallbackQuery(&telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("Cannot answer callback query")
	}
}

func (b *Bot) fail(userID int64, step string, err error) {
	b.log.Error().Err(err).Int64("user_id", userID).Str("step", step).Msg("Command failed")
	b.reply(userID, textInternal)
}
