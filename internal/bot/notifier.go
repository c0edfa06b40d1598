package bot

import (
	"context"

	tele "gopkg.in/telebot.v3"
)

// sender is the part of *tele.Bot the notifier needs.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier delivers broadcast messages through the Bot API.
type Notifier struct {
	bot sender
}

// NewNotifier wraps a telebot instance.
func NewNotifier(b *tele.Bot) *Notifier {
	return &Notifier{bot: b}
}

// Notify sends text to the private chat of userID. ctx is only checked
// before the request is made.
func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := n.bot.Send(&tele.User{ID: userID}, text)
	return err
}
