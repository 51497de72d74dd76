package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/mise/pkg/messages"
	"github.com/korjavin/mise/pkg/scheduler"
)

// Callback data prefixes for the task buttons
const (
	startPrefix = "start:"
	donePrefix  = "done:"
	latePrefix  = "late:"
)

// Notifier sends runner events to one chat
type Notifier struct {
	sender Sender
	chatID int64
}

// NewNotifier creates a notifier for chatID
func NewNotifier(sender Sender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

// Notify implements scheduler.Notifier
func (n *Notifier) Notify(_ context.Context, ev scheduler.Event) error {
	text := messages.Event(ev)
	var err error
	switch ev.Kind {
	case scheduler.EventReady:
		_, err = n.sender.SendMessageWithKeyboard(n.chatID, text, taskButton("▶️ Start", startPrefix, ev.Task.ID))
	case scheduler.EventOverdue:
		_, err = n.sender.SendMessageWithKeyboard(n.chatID, text, taskButton("✅ Done", donePrefix, ev.Task.ID))
	case scheduler.EventViolated:
		_, err = n.sender.SendMessageWithKeyboard(n.chatID, text, taskButton("⚠️ Start late", latePrefix, ev.Task.ID))
	default:
		_, err = n.sender.SendMessage(n.chatID, text)
	}
	if err != nil {
		return fmt.Errorf("failed to send %s notification: %w", ev.Kind, err)
	}
	return nil
}

func taskButton(label, prefix, taskID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label+" "+taskID, prefix+taskID)),
	)
}
