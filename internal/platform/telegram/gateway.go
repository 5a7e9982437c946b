package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"anon-relay-bot/internal/common/logger"
	msgmodels "anon-relay-bot/internal/features/message/models"
	"anon-relay-bot/internal/features/relay"
)

// ChannelGateway publishes relayed posts to a channel through the Bot API.
type ChannelGateway struct {
	client *Client
}

var (
	_ relay.Gateway   = (*ChannelGateway)(nil)
	_ relay.Throttled = (*APIError)(nil)
)

func NewChannelGateway(client *Client) *ChannelGateway {
	return &ChannelGateway{client: client}
}

type replyParameters struct {
	MessageID                int64 `json:"message_id"`
	AllowSendingWithoutReply bool  `json:"allow_sending_without_reply"`
}

type sendParams struct {
	ChatID          any              `json:"chat_id"`
	Text            string           `json:"text,omitempty"`
	Caption         string           `json:"caption,omitempty"`
	Photo           string           `json:"photo,omitempty"`
	Video           string           `json:"video,omitempty"`
	Voice           string           `json:"voice,omitempty"`
	Document        string           `json:"document,omitempty"`
	ReplyParameters *replyParameters `json:"reply_parameters,omitempty"`
}

type editParams struct {
	ChatID    any    `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

type deleteParams struct {
	ChatID    any   `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

func (g *ChannelGateway) Send(ctx context.Context, destination string, msg relay.Outbound) (int64, error) {
	params := sendParams{ChatID: chatID(destination)}
	if msg.ReplyTo != 0 {
		params.ReplyParameters = &replyParameters{MessageID: msg.ReplyTo, AllowSendingWithoutReply: true}
	}

	var method string
	switch msg.Kind {
	case msgmodels.KindText, "":
		method = "sendMessage"
		params.Text = msg.Text
	case msgmodels.KindPhoto:
		method = "sendPhoto"
		params.Photo, params.Caption = msg.FileID, msg.Text
	case msgmodels.KindVideo:
		method = "sendVideo"
		params.Video, params.Caption = msg.FileID, msg.Text
	case msgmodels.KindVoice:
		method = "sendVoice"
		params.Voice, params.Caption = msg.FileID, msg.Text
	case msgmodels.KindDocument:
		method = "sendDocument"
		params.Document, params.Caption = msg.FileID, msg.Text
	default:
		return 0, fmt.Errorf("unsupported message kind %q", msg.Kind)
	}

	sent, err := call[message](ctx, g.client, method, params)
	if err != nil {
		return 0, err
	}
	if sent.MessageID == 0 {
		return 0, fmt.Errorf("%s: response without message_id", method)
	}

	logger.Debug().Str("method", method).Int64("message_id", sent.MessageID).Msg("Posted to channel")
	return sent.MessageID, nil
}

func (g *ChannelGateway) Edit(ctx context.Context, destination string, id int64, text string) error {
	_, err := call[message](ctx, g.client, "editMessageText", editParams{
		ChatID:    chatID(destination),
		MessageID: id,
		Text:      text,
	})
	if err != nil && describes(err, "message is not modified") {
		return fmt.Errorf("%w: %v", relay.ErrNotModified, err)
	}
	return err
}

func (g *ChannelGateway) Delete(ctx context.Context, destination string, id int64) error {
	_, err := call[bool](ctx, g.client, "deleteMessage", deleteParams{
		ChatID:    chatID(destination),
		MessageID: id,
	})
	if err != nil && describes(err, "message to delete not found") {
		return fmt.Errorf("%w: %v", relay.ErrMessageGone, err)
	}
	return err
}

// chatID sends numeric ids as numbers and @usernames as strings.
func chatID(destination string) any {
	if id, err := strconv.ParseInt(destination, 10, 64); err == nil {
		return id
	}
	if !strings.HasPrefix(destination, "@") {
		return "@" + destination
	}
	return destination
}

func describes(err error, fragment string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Description), fragment)
}
