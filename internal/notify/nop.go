package notify

import "context"

// NopNotifier drops every message. Used when the Telegram transport is
// disabled so callers never need a nil check.
type NopNotifier struct{}

func (NopNotifier) SendMessage(ctx context.Context, chatID int64, text string) error { return nil }

func (NopNotifier) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	return nil
}

var _ Notifier = NopNotifier{}
