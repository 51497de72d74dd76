package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/korjavin/mise/pkg/compiler"
	"github.com/korjavin/mise/pkg/critpath"
	"github.com/korjavin/mise/pkg/kitchen"
	"github.com/korjavin/mise/pkg/logger"
	"github.com/korjavin/mise/pkg/messages"
	"github.com/korjavin/mise/pkg/models"
	"github.com/korjavin/mise/pkg/scheduler"
	"github.com/korjavin/mise/pkg/state"
)

// IngredientExtractor lists the ingredients of a recipe
type IngredientExtractor interface {
	Ingredients(ctx context.Context, text string) ([]string, error)
}

// Handlers implements the chat commands on top of the kitchen service
type Handlers struct {
	kitchen *kitchen.Service
	states  *state.Manager
	sender  Sender
	compile compiler.Options
	logger  *logger.Logger

	// Ingredients, when set, fills the guard ingredient list of each recipe
	Ingredients IngredientExtractor
	// RunnerInterval > 0 starts a runner with notifications for each session
	RunnerInterval time.Duration
	Observer       scheduler.Observer
	Now            func() time.Time

	mu      sync.Mutex
	runners map[int64]*scheduler.Runner
}

// NewHandlers creates the handlers
func NewHandlers(k *kitchen.Service, states *state.Manager, sender Sender, opts compiler.Options) *Handlers {
	return &Handlers{
		kitchen: k,
		states:  states,
		sender:  sender,
		compile: opts,
		logger:  logger.New("bot"),
		Now:     time.Now,
		runners: make(map[int64]*scheduler.Runner),
	}
}

// Router returns the routing table for the bot
func (h *Handlers) Router() Router {
	return Router{
		Commands: map[string]CommandHandler{
			"start":  h.start,
			"help":   h.help,
			"recipe": h.recipe,
			"plan":   h.plan,
			"begin":  h.begin,
			"status": h.status,
			"done":   h.done,
			"late":   h.late,
			"end":    h.end,
		},
		Callbacks: map[string]CallbackHandler{
			startPrefix: h.callback(startPrefix, h.kitchen.StartTask),
			donePrefix:  h.callback(donePrefix, h.kitchen.FinishTask),
			latePrefix:  h.callback(latePrefix, h.kitchen.StartTaskLate),
		},
		Default: h.text,
	}
}

// Stop stops every runner started by /begin
func (h *Handlers) Stop() {
	h.mu.Lock()
	runners := h.runners
	h.runners = make(map[int64]*scheduler.Runner)
	h.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
}

func (h *Handlers) reply(chatID int64, text string) {
	if _, err := h.sender.SendMessage(chatID, text); err != nil {
		h.logger.Error("Failed to send message to chat %d: %v", chatID, err)
	}
}

func (h *Handlers) help(_ context.Context, message *tgbotapi.Message) {
	h.reply(message.Chat.ID, messages.Welcome)
}

// start greets without arguments and starts a task with one
func (h *Handlers) start(ctx context.Context, message *tgbotapi.Message) {
	taskID := strings.TrimSpace(message.CommandArguments())
	if taskID == "" {
		h.help(ctx, message)
		return
	}
	h.transition(message.Chat.ID, taskID, h.kitchen.StartTask)
}

func (h *Handlers) done(_ context.Context, message *tgbotapi.Message) {
	taskID := strings.TrimSpace(message.CommandArguments())
	if taskID == "" {
		h.reply(message.Chat.ID, "Which task? For example /done c1.s2")
		return
	}
	h.transition(message.Chat.ID, taskID, h.kitchen.FinishTask)
}

// late starts a task whose dependency window has already expired
func (h *Handlers) late(_ context.Context, message *tgbotapi.Message) {
	taskID := strings.TrimSpace(message.CommandArguments())
	if taskID == "" {
		h.reply(message.Chat.ID, "Which task? For example /late c1.s3")
		return
	}
	h.transition(message.Chat.ID, taskID, h.kitchen.StartTaskLate)
}

func (h *Handlers) recipe(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		h.states.SetState(chatID, state.StateAwaitingRecipe)
		h.reply(chatID, "📝 Send me the recipe instructions.")
		return
	}
	h.compileRecipe(ctx, chatID, text)
}

// text handles plain messages, which only matter after a bare /recipe
func (h *Handlers) text(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" || update.Message.IsCommand() {
		return
	}
	chatID := update.Message.Chat.ID
	if h.states.GetState(chatID) != state.StateAwaitingRecipe {
		return
	}
	h.states.ClearState(chatID)
	h.compileRecipe(ctx, chatID, update.Message.Text)
}

func (h *Handlers) compileRecipe(ctx context.Context, chatID int64, text string) {
	opts := h.compile
	if h.Ingredients != nil {
		ingredients, err := h.Ingredients.Ingredients(ctx, text)
		if err != nil {
			h.logger.Warn("Failed to extract ingredients, compiling without them: %v", err)
		}
		opts.Ingredients = ingredients
	}

	g, err := h.kitchen.Compile(ctx, text, opts)
	if err != nil {
		if errors.Is(err, compiler.ErrEmptyRecipe) {
			h.reply(chatID, "🤔 I couldn't find any cooking steps in that.")
			return
		}
		h.logger.Error("Failed to compile recipe: %v", err)
		h.reply(chatID, "😢 Sorry, something went wrong. Please try again later.")
		return
	}
	h.states.SetGraph(chatID, g.ID)
	h.reply(chatID, messages.Graph(g)+"\n\nSend /plan 19:30 or /begin when you are ready.")
}

// graph loads the chat's last compiled graph, telling the chat when there is none
func (h *Handlers) graph(chatID int64) (*models.Graph, bool) {
	id := h.states.Graph(chatID)
	if id == "" {
		h.reply(chatID, "Send me a recipe first with /recipe.")
		return nil, false
	}
	g, err := h.kitchen.Graph(id)
	if err != nil {
		h.logger.Error("Failed to load graph %s: %v", id, err)
		h.reply(chatID, "😢 I lost that recipe, please send it again.")
		return nil, false
	}
	return g, true
}

// serveTime reads the argument or falls back to the earliest possible finish
func (h *Handlers) serveTime(chatID int64, arg string, g *models.Graph) (time.Time, bool) {
	now := h.Now()
	if strings.TrimSpace(arg) == "" {
		return now.Add(critpath.Compute(g.Tasks, now, now).CriticalPathDuration), true
	}
	serve, err := kitchen.ParseServe(arg, now)
	if err != nil {
		h.reply(chatID, "🕰 "+err.Error())
		return time.Time{}, false
	}
	return serve, true
}

func (h *Handlers) plan(_ context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	arg := message.CommandArguments()

	if sessionID := h.states.Session(chatID); sessionID != "" && strings.TrimSpace(arg) == "" {
		text, err := h.sessionPlan(sessionID)
		if err == nil {
			h.reply(chatID, text)
			return
		}
		h.logger.Error("Failed to plan session %s: %v", sessionID, err)
	}

	g, ok := h.graph(chatID)
	if !ok {
		return
	}
	serve, ok := h.serveTime(chatID, arg, g)
	if !ok {
		return
	}
	h.reply(chatID, messages.Plan(g, critpath.Compute(g.Tasks, serve, h.Now()), serve))
}

// sessionPlan replans the work left in a session against its serve time
func (h *Handlers) sessionPlan(sessionID string) (string, error) {
	st, err := h.kitchen.Session(sessionID)
	if err != nil {
		return "", err
	}
	g, err := h.kitchen.Graph(st.GraphID)
	if err != nil {
		return "", err
	}
	res, err := h.kitchen.Plan(sessionID)
	if err != nil {
		return "", err
	}
	return messages.Plan(g, res, st.ServeAt), nil
}

func (h *Handlers) begin(_ context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if h.states.Session(chatID) != "" {
		h.reply(chatID, "You are already cooking. Send /end first to start over.")
		return
	}
	g, ok := h.graph(chatID)
	if !ok {
		return
	}
	serve, ok := h.serveTime(chatID, message.CommandArguments(), g)
	if !ok {
		return
	}

	st, err := h.kitchen.BeginSession(g.ID, serve)
	if err != nil {
		h.logger.Error("Failed to begin session: %v", err)
		h.reply(chatID, "😢 Sorry, I couldn't start cooking.")
		return
	}
	h.states.SetSession(chatID, st.ID)
	h.startRunner(chatID, st.ID)

	snap, err := h.kitchen.Snapshot(st.ID)
	if err != nil {
		h.logger.Error("Failed to evaluate session %s: %v", st.ID, err)
		return
	}
	h.reply(chatID, fmt.Sprintf("🍳 Let's cook! Serving at %s.\n\n%s", serve.Format("15:04"), messages.Snapshot(g, snap)))
}

func (h *Handlers) startRunner(chatID int64, sessionID string) {
	if h.RunnerInterval <= 0 {
		return
	}
	live, err := h.kitchen.Live(sessionID)
	if err != nil {
		h.logger.Error("Failed to load session %s: %v", sessionID, err)
		return
	}
	opts := []scheduler.RunnerOption{
		scheduler.WithClock(h.Now),
		scheduler.WithNotifier(NewNotifier(h.sender, chatID)),
		scheduler.WithLogger(h.logger.Named("runner")),
	}
	if h.Observer != nil {
		opts = append(opts, scheduler.WithObserver(h.Observer))
	}
	r := scheduler.NewRunner(live, h.RunnerInterval, opts...)

	h.mu.Lock()
	h.runners[chatID] = r
	h.mu.Unlock()
	r.Start()
}

func (h *Handlers) stopRunner(chatID int64) {
	h.mu.Lock()
	r, ok := h.runners[chatID]
	delete(h.runners, chatID)
	h.mu.Unlock()
	if ok {
		r.Stop()
	}
}

func (h *Handlers) status(_ context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	sessionID := h.states.Session(chatID)
	if sessionID == "" {
		h.reply(chatID, "Nothing cooking. Send /begin to start.")
		return
	}
	st, err := h.kitchen.Session(sessionID)
	if err != nil {
		h.logger.Error("Failed to load session %s: %v", sessionID, err)
		h.reply(chatID, "😢 I lost track of this session, send /end and /begin again.")
		return
	}
	g, err := h.kitchen.Graph(st.GraphID)
	if err != nil {
		h.logger.Error("Failed to load graph %s: %v", st.GraphID, err)
		return
	}
	snap, err := h.kitchen.Snapshot(sessionID)
	if err != nil {
		h.reply(chatID, "🙅 "+err.Error())
		return
	}
	h.reply(chatID, messages.Snapshot(g, snap))
}

func (h *Handlers) end(_ context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	sessionID := h.states.Session(chatID)
	if sessionID == "" {
		h.reply(chatID, "Nothing cooking.")
		return
	}
	h.stopRunner(chatID)
	if err := h.kitchen.EndSession(sessionID); err != nil {
		h.logger.Error("Failed to end session %s: %v", sessionID, err)
	}
	h.states.SetSession(chatID, "")
	h.reply(chatID, "🧽 Done cooking. Time to clean up!")
}

type transitionFunc func(sessionID, taskID string) (scheduler.Snapshot, error)

// apply records a start or finish and returns the text to show
func (h *Handlers) apply(chatID int64, taskID string, fn transitionFunc) string {
	sessionID := h.states.Session(chatID)
	if sessionID == "" {
		return "Nothing cooking. Send /begin to start."
	}
	snap, err := fn(sessionID, taskID)
	var te *scheduler.TransitionError
	switch {
	case errors.As(err, &te):
		return fmt.Sprintf("🙅 Can't %s %s now, it is %s.", te.Event, te.TaskID, strings.ReplaceAll(string(te.From), "_", " "))
	case errors.Is(err, scheduler.ErrUnknownTask):
		return fmt.Sprintf("🤷 There is no task %s.", taskID)
	case err != nil:
		h.logger.Error("Failed to update task %s: %v", taskID, err)
		return "😢 Sorry, something went wrong."
	}

	st, err := h.kitchen.Session(sessionID)
	if err != nil {
		return "👍"
	}
	g, err := h.kitchen.Graph(st.GraphID)
	if err != nil {
		return "👍"
	}
	return "👍 Got it.\n\n" + messages.Snapshot(g, snap)
}

func (h *Handlers) transition(chatID int64, taskID string, fn transitionFunc) {
	h.reply(chatID, h.apply(chatID, taskID, fn))
}

func (h *Handlers) callback(prefix string, fn transitionFunc) CallbackHandler {
	return func(_ context.Context, cb *tgbotapi.CallbackQuery) {
		if cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		text := h.apply(cb.Message.Chat.ID, strings.TrimPrefix(cb.Data, prefix), fn)
		if err := h.sender.AnswerCallbackQuery(cb.ID, firstLine(text)); err != nil {
			h.logger.Warn("Failed to answer callback: %v", err)
		}
		h.reply(cb.Message.Chat.ID, text)
	}
}

func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
