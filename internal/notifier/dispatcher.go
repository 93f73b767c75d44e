package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/uksgomel/uks_checker/internal/logger"
)

// Dispatcher binds a Notifier to one destination and owns the message
// templates. Text always goes out before an attachment.
type Dispatcher struct {
	notifier Notifier
	chatID   int64
}

func NewDispatcher(n Notifier, chatID int64) (*Dispatcher, error) {
	if n == nil {
		return nil, errors.New("notifier is required")
	}
	if chatID == 0 {
		return nil, errors.New("chat id is required")
	}
	return &Dispatcher{notifier: n, chatID: chatID}, nil
}

// ChatID is the bound destination.
func (d *Dispatcher) ChatID() int64 {
	return d.chatID
}

// NewDocument announces a new edition and attaches it.
func (d *Dispatcher) NewDocument(ctx context.Context, name string, data []byte) error {
	return d.textThenFile(ctx, d.chatID, msgNewDocument, name, data)
}

// DocumentOversize announces a new edition that is too large to attach.
func (d *Dispatcher) DocumentOversize(ctx context.Context, name, url string, size, limit int64) error {
	return d.text(ctx, d.chatID, newDocumentOversizeText(name, url, size, limit))
}

func (d *Dispatcher) NewArticle(ctx context.Context, title, url string) error {
	return d.text(ctx, d.chatID, newArticleText(title, url))
}

func (d *Dispatcher) PageChanged(ctx context.Context, url string) error {
	return d.text(ctx, d.chatID, pageChangedText(url))
}

// CurrentDocument answers a manual request with the latest edition.
func (d *Dispatcher) CurrentDocument(ctx context.Context, chatID int64, name string, data []byte) error {
	return d.textThenFile(ctx, chatID, msgCurrentDocument, name, data)
}

// CurrentDocumentOversize answers a manual request whose edition is too
// large to attach. size is negative when the download was cut off at limit.
func (d *Dispatcher) CurrentDocumentOversize(ctx context.Context, chatID int64, name, url string, size, limit int64) error {
	return d.text(ctx, chatID, currentDocumentOversizeText(name, url, size, limit))
}

func (d *Dispatcher) CurrentArticle(ctx context.Context, chatID int64, title, url string) error {
	return d.text(ctx, chatID, currentArticleText(title, url))
}

func (d *Dispatcher) DocumentNotFound(ctx context.Context, chatID int64) error {
	return d.text(ctx, chatID, msgDocumentMissing)
}

func (d *Dispatcher) ArticleNotFound(ctx context.Context, chatID int64) error {
	return d.text(ctx, chatID, msgArticleMissing)
}

// FetchFailed is the plain reply used instead of surfacing raw errors.
func (d *Dispatcher) FetchFailed(ctx context.Context, chatID int64) error {
	return d.text(ctx, chatID, msgFetchFailed)
}

// Reply sends arbitrary text to chatID.
func (d *Dispatcher) Reply(ctx context.Context, chatID int64, text string) error {
	return d.text(ctx, chatID, text)
}

func (d *Dispatcher) text(ctx context.Context, chatID int64, text string) error {
	if err := d.notifier.SendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

func (d *Dispatcher) textThenFile(ctx context.Context, chatID int64, text, name string, data []byte) error {
	if err := d.text(ctx, chatID, text); err != nil {
		return err
	}
	if err := d.notifier.SendFile(ctx, chatID, name, data); err != nil {
		return fmt.Errorf("send file %s: %w", name, err)
	}
	logger.WithComponent("notifier").Infof("sent %s (%d bytes)", name, len(data))
	return nil
}
