package bot

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	payservice "anon-relay-bot/internal/features/payment/service"
)

func (b *Bot) buyPremiumHandler(_ *telego.Bot, update telego.Update) {
	userID := update.Message.From.ID
	if b.Payments == nil {
		b.reply(userID, textNoPayments)
		return
	}

	inv := b.Payments.PremiumInvoice()
	_, err := b.api.SendInvoice(&telego.SendInvoiceParams{
		ChatID:      tu.ID(userID),
		Title:       inv.Title,
		Description: inv.Description,
		Payload:     inv.Payload,
		Currency:    inv.Currency,
		Prices:      []telego.LabeledPrice{{Label: inv.Title, Amount: inv.Amount}},
	})
	if err != nil {
		b.fail(userID, "send invoice", err)
	}
}

// preCheckoutHandler must answer within ten seconds or Telegram cancels the
// payment.
func (b *Bot) preCheckoutHandler(_ *telego.Bot, update telego.Update) {
	query := update.PreCheckoutQuery
	params := &telego.AnswerPreCheckoutQueryParams{PreCheckoutQueryID: query.ID, Ok: true}

	if b.Payments == nil {
		params.Ok, params.ErrorMessage = false, textNoPayments
	} else if err := b.Payments.ValidateCheckout(query.InvoicePayload, query.Currency, query.TotalAmount); err != nil {
		b.log.Warn().Err(err).Int64("user_id", query.From.ID).Str("payload", query.InvoicePayload).Msg("Pre-checkout rejected")
		params.Ok, params.ErrorMessage = false, "This invoice is no longer valid. Use /buy_premium to get a new one."
	}

	if err := b.api.AnswerPreCheckoutQuery(params); err != nil {
		b.log.Error().Err(err).Int64("user_id", query.From.ID).Msg("Cannot answer pre-checkout query")
	}
}

func (b *Bot) successfulPaymentHandler(_ *telego.Bot, update telego.Update) {
	msg := update.Message
	if msg.From == nil || b.Payments == nil {
		return
	}
	paid := msg.SuccessfulPayment

	granted, err := b.Payments.Complete(update.Context(), payservice.Completion{
		UserID:   msg.From.ID,
		ChargeID: paid.TelegramPaymentChargeID,
		Payload:  paid.InvoicePayload,
		Currency: paid.Currency,
		Amount:   paid.TotalAmount,
	})
	if err != nil {
		b.fail(msg.From.ID, "complete payment", err)
		return
	}
	if granted {
		b.reply(msg.From.ID, textPaymentDone)
	}
}
