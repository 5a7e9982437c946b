package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"github.com/rs/zerolog"

	"anon-relay-bot/internal/common/logger"
	"anon-relay-bot/internal/features/admin/models"
	emojimodels "anon-relay-bot/internal/features/emoji/models"
	msgmodels "anon-relay-bot/internal/features/message/models"
	paymodels "anon-relay-bot/internal/features/payment/models"
	payservice "anon-relay-bot/internal/features/payment/service"
	"anon-relay-bot/internal/features/relay"
	usermodels "anon-relay-bot/internal/features/user/models"
)

var (
	ErrGetMe          = errors.New("cannot retrieve bot user")
	ErrUpdatesChannel = errors.New("cannot get updates channel")
	ErrHandlerInit    = errors.New("cannot initialize update handler")
)

type Relay interface {
	HandleMessage(ctx context.Context, in relay.InboundMessage) relay.Result
	BeginEdit(ctx context.Context, userID, id int64) relay.Result
	BeginDelete(ctx context.Context, userID, id int64) relay.Result
	Delete(ctx context.Context, userID, id int64) relay.Result
	SetEmoji(ctx context.Context, userID int64, emoji string) relay.Result
	CancelSession(userID int64) bool
	IsAdmin(userID int64) bool
}

type Users interface {
	Upsert(ctx context.Context, id int64, username, displayName string) (*usermodels.User, error)
	Get(ctx context.Context, id int64) (*usermodels.User, error)
	IsPremiumActive(ctx context.Context, id int64) (bool, error)
}

type Emojis interface {
	ReservationOf(ctx context.Context, userID int64) (*emojimodels.Reservation, error)
	ListAvailable(ctx context.Context, all []string) ([]string, error)
}

type Posts interface {
	ListByOwner(ctx context.Context, ownerID int64, limit int) ([]*msgmodels.Message, error)
}

type Admin interface {
	Execute(ctx context.Context, actorID int64, cmd models.Command) (any, error)
}

type Payments interface {
	PremiumInvoice() paymodels.Invoice
	ValidateCheckout(payload, currency string, amount int) error
	Complete(ctx context.Context, c payservice.Completion) (bool, error)
}

type Deps struct {
	Relay  Relay
	Users  Users
	Emojis Emojis
	Posts  Posts
	Admin  Admin
	// Payments is nil when Stars purchases are disabled.
	Payments Payments
	// Channel is the destination channel id or @username. Forwards from it
	// start a reply.
	Channel string
}

// Bot is the private-chat front end: commands, relayed messages, delete
// confirmations and Stars payments.
type Bot struct {
	api *telego.Bot
	Deps
	log zerolog.Logger
}

func NewBot(api *telego.Bot, deps Deps) *Bot {
	return &Bot{
		api:  api,
		Deps: deps,
		log:  logger.Component("bot"),
	}
}

// Run long-polls updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.api.GetMe()
	if err != nil {
		b.log.Error().Err(err).Msg("Cannot retrieve bot user")
		return fmt.Errorf("%w: %v", ErrGetMe, err)
	}
	b.log.Info().Int64("id", me.ID).Str("username", me.Username).Msg("Running bot")

	updates, err := b.api.UpdatesViaLongPolling(nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdatesChannel, err)
	}
	defer b.api.StopLongPolling()

	bh, err := th.NewBotHandler(b.api, updates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandlerInit, err)
	}

	b.register(bh)

	go bh.Start()
	<-ctx.Done()
	bh.Stop()

	b.log.Info().Msg("Bot stopped")
	return nil
}

func (b *Bot) register(bh *th.BotHandler) {
	bh.Use(b.recoverMiddleware)
	bh.Use(b.privateOnlyMiddleware)
	bh.Use(b.userFillMiddleware)

	bh.Handle(b.preCheckoutHandler, th.AnyPreCheckoutQuery())
	bh.Handle(b.callbackHandler, th.AnyCallbackQuery())
	bh.Handle(b.successfulPaymentHandler, successfulPayment)

	bh.Handle(b.startHandler, th.CommandEqual("start"))
	bh.Handle(b.helpHandler, th.CommandEqual("help"))
	bh.Handle(b.premiumHandler, th.CommandEqual("premium"))
	bh.Handle(b.myEmojiHandler, th.CommandEqual("myemoji"))
	bh.Handle(b.emojiHandler, th.CommandEqual("emoji"))
	bh.Handle(b.availableEmojisHandler, th.CommandEqual("availableemojis"))
	bh.Handle(b.myReservationsHandler, th.CommandEqual("myreservations"))
	bh.Handle(b.myPostsHandler, th.CommandEqual("myposts"))
	bh.Handle(b.editHandler, th.CommandEqual("edit"))
	bh.Handle(b.deleteHandler, th.CommandEqual("delete"))
	bh.Handle(b.cancelHandler, th.CommandEqual("cancel"))
	bh.Handle(b.buyPremiumHandler, th.CommandEqual("buy_premium"))
	bh.Handle(b.adminHandler, isAdminCommand)

	bh.Handle(b.relayHandler, th.AnyMessage())
}

func successfulPayment(update telego.Update) bool {
	return update.Message != nil && update.Message.SuccessfulPayment != nil
}

func isAdminCommand(update telego.Update) bool {
	if update.Message == nil {
		return false
	}
	name, _ := splitCommand(update.Message.Text)
	return adminCommands[name]
}

var adminCommands = map[string]bool{
	"ban": true, "unban": true, "grant": true, "freeemoji": true,
	"emojis": true, "stats": true, "users": true, "history": true,
}
