// Package bot answers manual commands sent from the configured chat.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/uksgomel/uks_checker/internal/logger"
	"github.com/uksgomel/uks_checker/internal/monitor"
	"github.com/uksgomel/uks_checker/internal/probe"
	"github.com/uksgomel/uks_checker/internal/repository"
)

const helpText = "Привет! Слежу за PDF, новостями и страницей 1.\n" +
	"Команды:\n" +
	"/getpdf — получить текущий PDF\n" +
	"/getnews — получить текущую новость\n" +
	"/state — показать сохранённое состояние"

// Commands are the read-only operations behind the chat commands.
type Commands interface {
	GetState() repository.State
	FetchLatestDocument(ctx context.Context) (*monitor.LatestDocument, error)
	FetchLatestArticle(ctx context.Context) (probe.Article, error)
	MaxAttachmentBytes() int64
}

// Replier formats and sends the answers.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
	CurrentDocument(ctx context.Context, chatID int64, name string, data []byte) error
	CurrentDocumentOversize(ctx context.Context, chatID int64, name, url string, size, limit int64) error
	CurrentArticle(ctx context.Context, chatID int64, title, url string) error
	DocumentNotFound(ctx context.Context, chatID int64) error
	ArticleNotFound(ctx context.Context, chatID int64) error
	FetchFailed(ctx context.Context, chatID int64) error
}

// UpdateSource is the part of *tgbotapi.BotAPI used for long polling.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	updates  UpdateSource
	commands Commands
	replier  Replier
	chatID   int64
}

func New(updates UpdateSource, commands Commands, replier Replier, chatID int64) (*Bot, error) {
	switch {
	case updates == nil:
		return nil, errors.New("update source is required")
	case commands == nil:
		return nil, errors.New("commands are required")
	case replier == nil:
		return nil, errors.New("replier is required")
	case chatID == 0:
		return nil, errors.New("chat id is required")
	}
	return &Bot{updates: updates, commands: commands, replier: replier, chatID: chatID}, nil
}

// Run long-polls updates until ctx is cancelled. Commands are handled one
// at a time.
func (b *Bot) Run(ctx context.Context) {
	log := logger.WithComponent("bot")

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.updates.GetUpdatesChan(cfg)
	log.Info("listening for commands")

	for {
		select {
		case <-ctx.Done():
			b.updates.StopReceivingUpdates()
			log.Info("command listener stopped")
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.Handle(ctx, u)
		}
	}
}

// Handle serves one update. Messages from other chats are ignored.
func (b *Bot) Handle(ctx context.Context, u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	log := logger.WithComponent("bot").WithField("command", msg.Command())
	if msg.Chat.ID != b.chatID {
		log.Warnf("ignoring command from chat %d", msg.Chat.ID)
		return
	}

	var err error
	switch msg.Command() {
	case "start", "help":
		err = b.replier.Reply(ctx, b.chatID, helpText)
	case "state":
		err = b.state(ctx)
	case "getpdf":
		err = b.getDocument(ctx)
	case "getnews":
		err = b.getArticle(ctx)
	default:
		err = b.replier.Reply(ctx, b.chatID, helpText)
	}
	if err != nil {
		log.Errorf("reply failed: %v", err)
	}
}

func (b *Bot) state(ctx context.Context) error {
	payload, err := json.MarshalIndent(b.commands.GetState(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return b.replier.Reply(ctx, b.chatID, "Текущее состояние:\n"+string(payload))
}

func (b *Bot) getDocument(ctx context.Context) error {
	doc, err := b.commands.FetchLatestDocument(ctx)
	var tooLarge *monitor.DocumentTooLargeError
	switch {
	case errors.Is(err, monitor.ErrNoCandidate):
		return b.replier.DocumentNotFound(ctx, b.chatID)
	case errors.As(err, &tooLarge):
		size, limit := tooLarge.Size, b.commands.MaxAttachmentBytes()
		if size < 0 {
			limit = tooLarge.Limit
		}
		return b.replier.CurrentDocumentOversize(ctx, b.chatID, tooLarge.Name, tooLarge.URL, size, limit)
	case err != nil:
		logger.WithComponent("bot").Warnf("fetch latest document: %v", err)
		return b.replier.FetchFailed(ctx, b.chatID)
	}

	if limit := b.commands.MaxAttachmentBytes(); int64(len(doc.Data)) > limit {
		return b.replier.CurrentDocumentOversize(ctx, b.chatID, doc.Name, doc.URL, int64(len(doc.Data)), limit)
	}
	return b.replier.CurrentDocument(ctx, b.chatID, doc.Name, doc.Data)
}

func (b *Bot) getArticle(ctx context.Context) error {
	a, err := b.commands.FetchLatestArticle(ctx)
	switch {
	case errors.Is(err, monitor.ErrNoCandidate):
		return b.replier.ArticleNotFound(ctx, b.chatID)
	case err != nil:
		logger.WithComponent("bot").Warnf("fetch latest article: %v", err)
		return b.replier.FetchFailed(ctx, b.chatID)
	}
	return b.replier.CurrentArticle(ctx, b.chatID, a.Title, a.URL)
}
