package push

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the subset of the Telegram client used for delivery.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers messages as Telegram chat messages.
type TelegramSender struct {
	api BotAPI
}

// NewTelegramSender wraps a bot client.
func NewTelegramSender(api BotAPI) *TelegramSender {
	return &TelegramSender{api: api}
}

// NewTelegramSenderFromToken connects a bot using its API token.
func NewTelegramSenderFromToken(token string) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return NewTelegramSender(api), nil
}

// Send posts msg to the chat identified by token.
func (s *TelegramSender) Send(ctx context.Context, token string, msg Message) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	chatID, err := strconv.ParseInt(strings.TrimPrefix(token, "telegram:"), 10, 64)
	if err != nil {
		return Result{}, fmt.Errorf("invalid telegram chat id %q: %w", token, err)
	}

	text := msg.Title
	if msg.Body != "" {
		text = msg.Title + "\n" + msg.Body
	}
	sent, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return Result{}, fmt.Errorf("telegram send: %w", err)
	}
	return Result{ID: strconv.Itoa(sent.MessageID), Status: "ok"}, nil
}
