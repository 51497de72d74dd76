// Package telegram connects the scheduler to a Telegram chat: runner events
// become messages and chat commands drive the kitchen service.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/mise/pkg/logger"
)

// Sender is the part of the bot handlers and notifiers talk to
type Sender interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallbackQuery(callbackID string, text string) error
}

// Bot represents a Telegram bot instance
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *logger.Logger
}

// HandlerFunc is a function that handles a Telegram update
type HandlerFunc func(ctx context.Context, update tgbotapi.Update)

// CommandHandler is a function that handles a Telegram command
type CommandHandler func(ctx context.Context, message *tgbotapi.Message)

// CallbackHandler is a function that handles a Telegram callback query
type CallbackHandler func(ctx context.Context, callback *tgbotapi.CallbackQuery)

// Router dispatches updates to handlers
type Router struct {
	Commands map[string]CommandHandler
	// Callbacks are matched by data prefix
	Callbacks map[string]CallbackHandler
	Default   HandlerFunc
}

// New creates a new Telegram bot instance
func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	bot := &Bot{
		api:    api,
		logger: logger.New("telegram"),
	}

	bot.logger.Info("Telegram bot created: @%s", api.Self.UserName)
	return bot, nil
}

// Start listens for updates until ctx is done
func (b *Bot) Start(ctx context.Context, router Router) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			router.Handle(ctx, update, b.logger)
		}
	}
}

// Handle routes one update and reports whether a handler took it
func (r Router) Handle(ctx context.Context, update tgbotapi.Update, log *logger.Logger) bool {
	if update.Message != nil && update.Message.IsCommand() {
		command := update.Message.Command()
		if handler, ok := r.Commands[command]; ok {
			log.Info("Handling command: %s in chat %d", command, update.Message.Chat.ID)
			handler(ctx, update.Message)
			return true
		}
	}

	if update.CallbackQuery != nil {
		data := update.CallbackQuery.Data
		for prefix, handler := range r.Callbacks {
			if strings.HasPrefix(data, prefix) {
				log.Info("Handling callback: %s", data)
				handler(ctx, update.CallbackQuery)
				return true
			}
		}
		return false
	}

	if r.Default != nil {
		r.Default(ctx, update)
		return true
	}
	return false
}

// SendMessage sends a text message to a chat
func (b *Bot) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return b.api.Send(msg)
}

// SendMessageWithKeyboard sends a text message with an inline keyboard
func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	return b.api.Send(msg)
}

// AnswerCallbackQuery answers a callback query
func (b *Bot) AnswerCallbackQuery(callbackID string, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := b.api.Request(callback)
	return err
}
