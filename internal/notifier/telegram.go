package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewBotAPI connects to the Bot API. An empty endpoint uses the public one;
// the format must carry two %s verbs for the token and the method.
func NewBotAPI(token, endpoint string, client *http.Client) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("bot token is required")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return bot, nil
}

// TelegramNotifier implements Notifier on the Telegram Bot API.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramNotifier(bot *tgbotapi.BotAPI) (*TelegramNotifier, error) {
	if bot == nil {
		return nil, errors.New("telegram bot is required")
	}
	return &TelegramNotifier{bot: bot}, nil
}

func (t *TelegramNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

func (t *TelegramNotifier) SendFile(ctx context.Context, chatID int64, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("telegram sendDocument: %w", err)
	}
	return nil
}
