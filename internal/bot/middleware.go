package bot

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
)

func (b *Bot) recoverMiddleware(bot *telego.Bot, update telego.Update, next th.Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Int("update_id", update.UpdateID).Msg("Update handler panicked")
		}
	}()
	next(bot, update)
}

// privateOnlyMiddleware drops messages from groups and channels. The bot only
// talks to users one on one.
func (b *Bot) privateOnlyMiddleware(bot *telego.Bot, update telego.Update, next th.Handler) {
	if update.Message != nil && update.Message.Chat.Type != telego.ChatTypePrivate {
		return
	}
	next(bot, update)
}

// userFillMiddleware registers every sender so later lookups never miss.
func (b *Bot) userFillMiddleware(bot *telego.Bot, update telego.Update, next th.Handler) {
	from := sender(update)
	if from == nil {
		next(bot, update)
		return
	}

	if _, err := b.Users.Upsert(update.Context(), from.ID, from.Username, displayName(from)); err != nil {
		b.log.Error().Err(err).Int64("user_id", from.ID).Msg("Cannot register user")
		if update.Message != nil {
			b.reply(from.ID, textInternal)
		}
		return
	}
	next(bot, update)
}

func sender(update telego.Update) *telego.User {
	switch {
	case update.Message != nil:
		return update.Message.From
	case update.CallbackQuery != nil:
		return &update.CallbackQuery.From
	case update.PreCheckoutQuery != nil:
		return &update.PreCheckoutQuery.From
	default:
		return nil
	}
}
