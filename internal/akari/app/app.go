// Package app wires Akari together: storage, Matrix, the intent engine,
// the tool registry, slash commands, and the background loops. Each
// inbound message flows through one pipeline: watch-room capture →
// allowlist → slash command → active flow → intent detection → tool flow
// → conversational fallback.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/mkoriyama/Akari/common/trace"
	"github.com/mkoriyama/Akari/internal/akari/commands"
	"github.com/mkoriyama/Akari/internal/akari/flow"
	"github.com/mkoriyama/Akari/internal/akari/intent"
	"github.com/mkoriyama/Akari/internal/akari/matrix"
	"github.com/mkoriyama/Akari/internal/akari/nlp"
	"github.com/mkoriyama/Akari/internal/akari/observability"
	"github.com/mkoriyama/Akari/internal/akari/store"
	"github.com/mkoriyama/Akari/internal/akari/tools"
)

// typingTimeout is how long the typing indicator stays on if a turn stalls.
const typingTimeout = 30 * time.Second

// msgNoProvider answers ordinary chat when no LLM is configured.
const msgNoProvider = "I can save notes, find them again, check your notifications, and search the web. " +
	"Try \"save a note that …\" or \"what did I say about …\"."

// personaPrompt is the fixed system prompt for the conversational fallback.
// It deliberately names only the tools that exist so the model does not
// promise abilities Akari lacks.
const personaPrompt = "You are Akari, a concise personal assistant living in a Matrix chat room. " +
	"Reply in plain text, at most three sentences. " +
	"You can save notes, retrieve saved notes, search captured notifications, and search the web " +
	"when the user asks for those directly; never claim other abilities."

// LLMConfig holds the OpenAI-compatible provider settings.
type LLMConfig struct {
	// APIKey enables the generative tier. Empty keeps Akari fully
	// deterministic: keyword classification, trigger-stripping extraction,
	// canned conversational replies.
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// RateLimit is the maximum inference calls per user per minute.
	// Defaults to nlp.DefaultRateLimit when zero.
	RateLimit int
	// TokenBudget is the maximum LLM tokens per user per UTC day.
	// Defaults to nlp.DefaultTokenBudget when zero.
	TokenBudget int
}

// Config holds the Akari application configuration.
type Config struct {
	// DatabasePath is the SQLite file backing notes, notifications, the
	// activity trail, the search cache, and the Matrix sync position.
	DatabasePath string

	// Matrix holds homeserver, credentials, and the two room sets.
	Matrix matrix.Config

	// AllowedUsers restricts who Akari answers in assistant rooms. Empty
	// means every room member.
	AllowedUsers []string

	// MasterKey enables AES-256-GCM encryption of note content at rest.
	// Nil stores plaintext.
	MasterKey []byte

	LLM LLMConfig

	// HTTPAddr serves /health and /status when non-empty.
	HTTPAddr string
}

// App is the assembled Akari application.
type App struct {
	config   *Config
	store    *store.Store
	matrix   *matrix.Client
	flows    *flow.Orchestrator
	registry *tools.Registry
	router   *commands.Router
	handlers *commands.Handlers
	health   *HealthServer
	provider nlp.Provider
	limiter  *nlp.RateLimiter
	budget   *nlp.TokenBudget
}

// New assembles the application. Subsystems come up in dependency order and
// a failure tears down what was already opened.
func New(config *Config) (*App, error) {
	slog.Info("opening database", "path", config.DatabasePath, "encryption", len(config.MasterKey) > 0)
	st, err := store.New(config.DatabasePath, config.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Inject the DB so the client can persist the sync token across restarts.
	matrixCfg := config.Matrix
	matrixCfg.DB = st.DB()
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}

	// Inference guard rails exist even before a key does, so limits apply
	// the moment a provider is configured.
	limiter := nlp.NewRateLimiter(config.LLM.RateLimit, time.Minute)
	budget := nlp.NewTokenBudget(config.LLM.TokenBudget)

	// The generative tier is optional; everything below it runs without it.
	var (
		provider   nlp.Provider
		classifier *nlp.Classifier
		extractor  *nlp.Extractor
	)
	if config.LLM.APIKey != "" {
		provider = nlp.New(nlp.Config{
			APIKey:  config.LLM.APIKey,
			BaseURL: config.LLM.BaseURL,
			Model:   config.LLM.Model,
			Timeout: config.LLM.Timeout,
		})
		classifier = nlp.NewClassifier(provider, limiter, budget)
		extractor = nlp.NewExtractor(provider, limiter, budget)
		slog.Info("LLM provider ready", "model", config.LLM.Model, "daily_tokens_per_user", budget.Budget())
	} else {
		slog.Info("no LLM API key; running in deterministic mode (set AKARI_LLM_API_KEY to enable the generative tier)")
	}

	// Tool registry: the activity trail goes through the store.
	registry := tools.NewRegistry(st, slog.Default())
	notes := tools.NewNotes(st, slog.Default())
	notifications := tools.NewNotifications(st)
	webSearch := tools.NewWebSearch(st, tools.WebSearchConfig{}, slog.Default())

	for _, reg := range []struct {
		it   intent.Intent
		exec tools.ExecFunc
	}{
		{intent.SaveNote, notes.Save},
		{intent.RetrieveNote, notes.Retrieve},
		{intent.SearchNotifications, notifications.Search},
		{intent.WebSearch, webSearch.Run},
	} {
		def, ok := intent.Lookup(string(reg.it))
		if !ok {
			st.Close()
			return nil, fmt.Errorf("no definition for tool %q", reg.it)
		}
		if err := registry.Register(def, reg.exec); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to register tool: %w", err)
		}
	}
	slog.Info("tool registry ready", "tools", len(registry.Definitions()))

	// The orchestrator: model tiers are nil in deterministic mode, and the
	// interfaces must stay nil rather than holding a typed nil pointer.
	flowCfg := flow.Config{
		Gate:       intent.NewGate(),
		Dispatcher: registry,
		Logger:     slog.Default(),
	}
	if classifier != nil {
		flowCfg.Model = classifier
	}
	if extractor != nil {
		flowCfg.Extractor = extractor
	}
	flows, err := flow.New(flowCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to build flow orchestrator: %w", err)
	}

	// Slash commands.
	router := commands.NewRouter("/akari")
	handlers := commands.NewHandlers(st, flows)
	router.Register("help", handlers.HandleHelp)
	router.Register("version", handlers.HandleVersion)
	router.Register("ping", handlers.HandlePing)
	router.Register("notes.list", handlers.HandleNotesList)
	router.Register("notes.search", handlers.HandleNotesSearch)
	router.Register("notes.delete", handlers.HandleNotesDelete)
	router.Register("notifications.tail", handlers.HandleNotificationsTail)
	router.Register("activity.tail", handlers.HandleActivityTail)
	router.Register("trace", handlers.HandleTrace)
	router.Register("forget", handlers.HandleForget)

	var health *HealthServer
	if config.HTTPAddr != "" {
		health = NewHealthServer(config.HTTPAddr, st)
		slog.Info("health server configured", "addr", config.HTTPAddr)
	}

	return &App{
		config:   config,
		store:    st,
		matrix:   matrixClient,
		flows:    flows,
		registry: registry,
		router:   router,
		handlers: handlers,
		health:   health,
		provider: provider,
		limiter:  limiter,
		budget:   budget,
	}, nil
}

// Run starts the application and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.health != nil {
		if err := a.health.Start(ctx); err != nil {
			slog.Warn("health server failed to start; continuing without it", "err", err)
		}
	}

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	go a.reminderLoop(ctx)
	go a.pruneLoop(ctx)

	for _, roomID := range a.config.Matrix.AssistantRooms {
		a.matrix.SendNotice(roomID, "✅ Akari is awake. Say hi, or /akari help for commands.")
	}

	slog.Info("Akari is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop tears the application down.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	if a.health != nil {
		slog.Info("stopping health server")
		a.health.Stop()
	}

	slog.Info("closing database")
	a.store.Close()
}

// handleMessage processes one inbound Matrix message. The Matrix client has
// already filtered to foreign text messages in configured rooms.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msgContent := evt.Content.AsMessage()
	if msgContent == nil {
		return
	}
	roomID := evt.RoomID.String()
	sender := evt.Sender.String()
	text := msgContent.Body

	// Watch rooms feed the notification inbox and get no replies. A room in
	// both sets behaves as an assistant room.
	if a.matrix.IsWatchRoom(roomID) && !a.matrix.IsAssistantRoom(roomID) {
		a.captureNotification(ctx, roomID, sender, text)
		return
	}
	if !a.matrix.IsAssistantRoom(roomID) {
		return
	}

	// Sender allowlist, enforced only when configured. Silently ignoring
	// others keeps Akari invisible to room members it does not serve.
	if len(a.config.AllowedUsers) > 0 && !contains(a.config.AllowedUsers, sender) {
		return
	}

	// One trace ID covers everything this message causes.
	traceID := trace.NewID()
	ctx = trace.Stamp(ctx, traceID)
	log := observability.WithTrace(ctx)

	// Latest message wins: a new message from the same user cancels the
	// turn still in flight.
	ctx, end := a.flows.BeginTurn(ctx, sender)
	defer end()

	// Slash commands run first so /akari forget works mid-flow.
	response, err := a.router.Route(ctx, text, evt)
	switch {
	case err == nil:
		a.reply(evt, response)
		return
	case !errors.Is(err, commands.ErrNotACommand):
		a.matrix.ReplyToMessage(roomID, evt.ID.String(), fmt.Sprintf("❌ Error: %s", err))
		return
	}

	// A pending flow consumes the message as its next step.
	if a.flows.HasActiveFlow(sender) {
		reply, err := a.flows.ExecuteToolFlow(ctx, text, "", sender)
		if err == nil {
			a.reply(evt, reply)
			return
		}
		if errors.Is(err, flow.ErrSuperseded) {
			log.Debug("turn superseded during flow continuation", "user", sender)
			return
		}
		// The flow expired between the check and the lock. Fall through and
		// treat the message as a fresh one.
		log.Debug("active flow vanished; treating message as new", "user", sender, "err", err)
	}

	it, err := a.flows.DetectToolIntent(ctx, sender, text)
	if err != nil {
		if errors.Is(err, flow.ErrSuperseded) {
			log.Debug("turn superseded during detection", "user", sender)
			return
		}
		log.Warn("intent detection failed", "err", err)
	}

	if it.Valid() {
		a.matrix.SetTyping(roomID, true, typingTimeout)
		defer a.matrix.SetTyping(roomID, false, 0)

		reply, err := a.flows.ExecuteToolFlow(ctx, text, it, sender)
		if err != nil {
			if errors.Is(err, flow.ErrSuperseded) {
				log.Debug("turn superseded during tool flow", "user", sender)
				return
			}
			log.Error("tool flow failed", "intent", string(it), "err", err)
			a.reply(evt, "⚠️ Something went wrong on my side. Please try that again.")
			return
		}
		a.reply(evt, reply)
		return
	}

	// No tool intent: ordinary conversation.
	a.converse(ctx, evt, sender, text)
}

// captureNotification stores one watch-room message in the inbox.
func (a *App) captureNotification(ctx context.Context, roomID, sender, body string) {
	err := a.store.InsertNotification(ctx, &store.Notification{
		RoomID: roomID,
		Sender: sender,
		Body:   body,
	})
	if err != nil {
		slog.Warn("failed to capture notification", "room", roomID, "err", err)
		return
	}
	slog.Debug("notification captured", "room", roomID, "sender", sender)
}

// converse answers a plain chat message: a single persona-framed generation
// when a provider is configured, a canned capability reply otherwise.
func (a *App) converse(ctx context.Context, evt *event.Event, sender, text string) {
	log := observability.WithTrace(ctx)

	if a.provider == nil {
		a.reply(evt, msgNoProvider)
		return
	}
	if !a.limiter.Allow(sender) {
		a.reply(evt, nlp.RateLimitMessage)
		return
	}
	if !a.budget.Allow(sender) {
		a.reply(evt, nlp.DailyLimitMessage)
		return
	}

	roomID := evt.RoomID.String()
	a.matrix.SetTyping(roomID, true, typingTimeout)
	defer a.matrix.SetTyping(roomID, false, 0)

	resp, err := a.provider.Generate(ctx, nlp.Request{
		System:      personaPrompt,
		Prompt:      text,
		MaxTokens:   512,
		Temperature: 0.7,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug("turn superseded during generation", "user", sender)
			return
		}
		log.Warn("conversational generation failed", "err", err)
		a.reply(evt, msgNoProvider)
		return
	}
	if resp.Usage != nil {
		a.budget.RecordUsage(sender, resp.Usage.TotalTokens)
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		answer = msgNoProvider
	}
	a.reply(evt, answer)
}

// reply renders Markdown to Matrix HTML and sends it to the event's room.
func (a *App) reply(evt *event.Event, text string) {
	if text == "" {
		return
	}
	roomID := evt.RoomID.String()
	htmlBody := markdownToHTML(text)
	if err := a.matrix.SendFormattedMessage(roomID, htmlBody, text); err != nil {
		slog.Error("failed to send response", "room", roomID, "err", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
