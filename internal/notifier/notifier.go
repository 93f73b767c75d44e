// Package notifier formats change notifications and delivers them to the
// configured chat.
package notifier

import (
	"context"
)

// Notifier is the messaging transport.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendFile(ctx context.Context, chatID int64, name string, data []byte) error
}
