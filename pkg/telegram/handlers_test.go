package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korjavin/mise/pkg/compiler"
	"github.com/korjavin/mise/pkg/kitchen"
	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/ontology"
	"github.com/korjavin/mise/pkg/scheduler"
	"github.com/korjavin/mise/pkg/state"
	"github.com/korjavin/mise/pkg/storage"
)

const pasta = "Bring a pot of water to a boil — 10 min\nAdd pasta and cook for 8 minutes\nDrain"

var now = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type sent struct {
	chatID int64
	text   string
	button string
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sent
	answers  []string
}

func (f *fakeSender) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sent{chatID: chatID, text: text})
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sent{chatID: chatID, text: text, button: *keyboard.InlineKeyboard[0][0].CallbackData})
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) AnswerCallbackQuery(_ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeSender) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return sent{}
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) buttons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.button != "" {
			out = append(out, m.button)
		}
	}
	return out
}

func command(chatID int64, text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func plain(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}}
}

func newHandlers(t *testing.T) (*Handlers, *fakeSender, Router) {
	t.Helper()
	store, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log, _ := logger.NewObserved("compiler")
	k := kitchen.New(store, compiler.New(ontology.MustDefault(), nil, log), scheduler.DefaultOptions())
	k.SetClock(func() time.Time { return now })

	sender := &fakeSender{}
	h := NewHandlers(k, state.New(), sender, compiler.Options{})
	h.Now = func() time.Time { return now }
	t.Cleanup(h.Stop)
	return h, sender, h.Router()
}

func TestCookingConversation(t *testing.T) {
	_, sender, router := newHandlers(t)
	ctx := context.Background()
	log, _ := logger.NewObserved("telegram")
	say := func(u tgbotapi.Update) string {
		require.True(t, router.Handle(ctx, u, log))
		return sender.last().text
	}

	assert.Contains(t, say(command(1, "/start")), "I turn recipes into a cooking plan")
	assert.Contains(t, say(command(1, "/begin")), "Send me a recipe first")

	assert.Contains(t, say(command(1, "/recipe")), "Send me the recipe")
	assert.Contains(t, say(plain(1, pasta)), "📋 Recipe: 3 tasks")

	assert.Contains(t, say(command(1, "/plan 45m")), "Serving at 18:45 is doable")

	reply := say(command(1, "/begin 19:00"))
	assert.Contains(t, reply, "Let's cook! Serving at 19:00")
	assert.Contains(t, reply, "✅ Ready to start\n  t1 ")
	assert.Contains(t, say(command(1, "/begin")), "already cooking")

	assert.Equal(t, "🙅 Can't start t2 now, it is pending.", say(command(1, "/start t2")))
	assert.Equal(t, "🤷 There is no task nope.", say(command(1, "/start nope")))
	assert.Contains(t, say(command(1, "/start t1")), "👍 Got it.")
	assert.Contains(t, say(command(1, "/done t1")), "👍 Got it.")
	assert.Contains(t, say(command(1, "/status")), "t2 Add pasta")
	assert.Contains(t, say(command(1, "/plan")), "Serving at 19:00 is doable")

	assert.Contains(t, say(command(1, "/end")), "Done cooking")
	assert.Contains(t, say(command(1, "/status")), "Nothing cooking")
}

func TestCallbackButtons(t *testing.T) {
	_, sender, router := newHandlers(t)
	ctx := context.Background()
	log, _ := logger.NewObserved("telegram")

	router.Handle(ctx, command(5, "/recipe "+pasta), log)
	router.Handle(ctx, command(5, "/begin"), log)

	cb := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    "done:t1",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 5}},
	}}
	require.True(t, router.Handle(ctx, cb, log))
	assert.Equal(t, []string{"🙅 Can't finish t1 now, it is ready."}, sender.answers)

	cb.CallbackQuery.Data = "start:t1"
	require.True(t, router.Handle(ctx, cb, log))
	assert.Contains(t, sender.last().text, "👍 Got it.")

	cb.CallbackQuery.Data = "unknown:t1"
	assert.False(t, router.Handle(ctx, cb, log))
}

func TestLateStartAfterMissedWindow(t *testing.T) {
	h, sender, router := newHandlers(t)
	var elapsed atomic.Int64
	h.kitchen.SetClock(func() time.Time { return now.Add(time.Duration(elapsed.Load())) })
	ctx := context.Background()
	log, _ := logger.NewObserved("telegram")
	say := func(u tgbotapi.Update) string {
		require.True(t, router.Handle(ctx, u, log))
		return sender.last().text
	}

	say(command(6, "/recipe "+pasta))
	say(command(6, "/begin"))
	assert.Contains(t, say(command(6, "/late")), "Which task?")
	assert.Equal(t, "🙅 Can't start late t2 now, it is pending.", say(command(6, "/late t2")))

	say(command(6, "/start t1"))
	elapsed.Store(int64(10 * time.Minute))
	say(command(6, "/done t1"))

	// the boiling water went cold
	elapsed.Store(int64(3 * time.Hour))
	assert.Contains(t, say(command(6, "/status")), "Window missed")
	assert.Equal(t, "🙅 Can't start t2 now, it is pending.", say(command(6, "/start t2")))

	cb := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb2",
		Data:    "late:t2",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 6}},
	}}
	require.True(t, router.Handle(ctx, cb, log))
	assert.Contains(t, sender.last().text, "👍 Got it.")
	assert.Contains(t, sender.last().text, "t2")

	router.Handle(ctx, command(6, "/end"), log)
}

func TestPlainTextIgnoredWithoutRecipeRequest(t *testing.T) {
	_, sender, router := newHandlers(t)
	log, _ := logger.NewObserved("telegram")
	router.Handle(context.Background(), plain(3, pasta), log)
	assert.Empty(t, sender.messages)
}

type failingExtractor struct{}

func (failingExtractor) Ingredients(context.Context, string) ([]string, error) {
	return nil, errors.New("offline")
}

func TestRecipeCompilesWhenIngredientExtractionFails(t *testing.T) {
	h, sender, router := newHandlers(t)
	h.Ingredients = failingExtractor{}
	log, _ := logger.NewObserved("telegram")

	router.Handle(context.Background(), command(2, "/recipe "+pasta), log)
	assert.Contains(t, sender.last().text, "📋 Recipe: 3 tasks")

	router.Handle(context.Background(), command(2, "/recipe ## Ingredients"), log)
	assert.Contains(t, sender.last().text, "couldn't find any cooking steps")
}

func TestRunnerNotifiesReadyTasks(t *testing.T) {
	h, sender, router := newHandlers(t)
	h.RunnerInterval = 5 * time.Millisecond
	log, _ := logger.NewObserved("telegram")

	router.Handle(context.Background(), command(9, "/recipe "+pasta), log)
	router.Handle(context.Background(), command(9, "/begin"), log)

	require.Eventually(t, func() bool {
		for _, b := range sender.buttons() {
			if b == "start:t1" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	router.Handle(context.Background(), command(9, "/end"), log)
}

func TestNotifierFormatsEvents(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, 4)
	task := scheduler.Event{Kind: scheduler.EventOverdue}
	task.Task.ID, task.Task.Text = "t3", "Drain"

	require.NoError(t, n.Notify(context.Background(), task))
	assert.Equal(t, "done:t3", sender.last().button)

	task.Kind = scheduler.EventViolated
	require.NoError(t, n.Notify(context.Background(), task))
	assert.Equal(t, "late:t3", sender.last().button)
	assert.Contains(t, sender.last().text, "/late t3")

	task.Kind = scheduler.EventFinished
	require.NoError(t, n.Notify(context.Background(), task))
	assert.Equal(t, "👍 t3 done: Drain", sender.last().text)
	assert.Equal(t, int64(4), sender.last().chatID)
}
