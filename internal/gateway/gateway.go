package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/bus"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/channel"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/chat"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/config"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/cron"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/server"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/session"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/tasks"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

const sessionSweepJob = "session-sweep"

// Options for creating a Gateway.
type Options struct {
	SignalChan chan os.Signal // for testing signal handling
}

// Gateway wires the HTTP API and the chat channels to one shared
// conversation engine and task pipeline.
type Gateway struct {
	cfg          *config.Config
	bus          *bus.MessageBus
	store        *session.Store
	orchestrator *chat.Orchestrator
	pipeline     *tasks.Pipeline
	llm          llm.Client
	taxonomy     taxonomy.Client
	channels     *channel.ChannelManager
	cron         *cron.Service
	server       *server.Server
	signalChan   chan os.Signal
	logger       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]string // channel session key -> elicitation session id
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		bus:        bus.NewMessageBus(config.DefaultBufSize),
		signalChan: opts.SignalChan,
		sessions:   make(map[string]string),
		logger:     log.With().Str("component", "gateway").Logger(),
	}

	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	store, err := session.Open(cfg.Session.DBPath, ttl)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	g.store = store

	g.llm = llm.NewClient(cfg)
	g.taxonomy = taxonomy.NewClient(cfg)
	g.orchestrator = chat.NewOrchestrator(g.llm, g.taxonomy, store)
	g.pipeline = tasks.NewPipeline(g.llm, g.taxonomy)
	g.server = server.New(cfg, g.orchestrator, g.pipeline, g.llm, g.taxonomy)

	chMgr, err := channel.NewChannelManager(cfg.Channels, g.bus)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	g.cron = cron.NewService()
	if err := g.cron.Add(sessionSweepJob, cfg.Session.SweepSchedule, g.sweepSessions); err != nil {
		_ = store.Close()
		return nil, err
	}

	return g, nil
}

func (g *Gateway) sweepSessions() {
	n, err := g.store.SweepExpired()
	if err != nil {
		g.logger.Warn().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		g.logger.Info().Int("removed", n).Msg("expired sessions swept")
	}
}

// Run starts everything and blocks until an interrupt arrives.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	g.logger.Info().Strs("channels", g.channels.EnabledChannels()).Msg("channels started")

	g.cron.Start()

	if err := g.server.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	go g.processLoop(ctx)

	g.logger.Info().
		Str("host", g.cfg.Gateway.Host).
		Int("port", g.cfg.Gateway.Port).
		Msg("running")

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	g.logger.Info().Msg("shutting down")
	return g.Shutdown()
}

// processLoop drives channel conversations: one elicitation session per
// channel chat, started with "/start <job title>".
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}

	if strings.HasPrefix(content, "/start") {
		g.startConversation(ctx, msg, strings.TrimSpace(strings.TrimPrefix(content, "/start")))
		return
	}

	key := msg.SessionKey()
	g.mu.Lock()
	sessionID, ok := g.sessions[key]
	g.mu.Unlock()
	if !ok {
		g.reply(msg, "Hi! Send /start followed by your job title to begin, e.g. /start Head Chef")
		return
	}

	resp, err := g.orchestrator.HandleMessage(ctx, sessionID, content)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			g.forget(key)
			g.reply(msg, "That conversation has expired. Send /start <job title> to begin again.")
			return
		}
		g.logger.Error().Err(err).Str("session", sessionID).Msg("handle message failed")
		g.reply(msg, "Sorry, something went wrong processing your message.")
		return
	}

	reply := resp.Message
	if resp.ShouldShowSuggestions && len(resp.Suggestions) > 0 {
		reply += "\n\n" + formatSuggestions(resp.Suggestions)
	}
	g.reply(msg, reply)

	if resp.IsComplete {
		g.finishConversation(ctx, msg, key, sessionID)
	}
}

func (g *Gateway) startConversation(ctx context.Context, msg bus.InboundMessage, jobTitle string) {
	if jobTitle == "" {
		g.reply(msg, "Please include your job title, e.g. /start Head Chef")
		return
	}

	resp, err := g.orchestrator.StartSession(ctx, jobTitle, nil)
	if err != nil {
		g.logger.Error().Err(err).Str("jobTitle", jobTitle).Msg("start session failed")
		g.reply(msg, "Sorry, I could not start the conversation. Please try again.")
		return
	}

	key := msg.SessionKey()
	g.mu.Lock()
	g.sessions[key] = resp.SessionID
	g.mu.Unlock()

	g.logger.Info().
		Str("session", resp.SessionID).
		Str("chat", key).
		Str("jobTitle", jobTitle).
		Msg("conversation started")
	g.reply(msg, resp.Message)
}

// finishConversation runs the full pipeline over the transcript and
// posts the canonical task list back to the chat.
func (g *Gateway) finishConversation(ctx context.Context, msg bus.InboundMessage, key, sessionID string) {
	defer g.forget(key)

	st, err := g.orchestrator.GetState(sessionID)
	if err != nil {
		g.logger.Warn().Err(err).Str("session", sessionID).Msg("load state for wrap-up failed")
		return
	}

	records := g.pipeline.ProcessFast(ctx, st.JobTitle, st.Transcript)
	records = g.pipeline.Match(ctx, records)
	if len(records) == 0 {
		g.reply(msg, "Thanks for your time! I could not pull distinct tasks out of our chat this time.")
		return
	}
	g.reply(msg, formatTaskList(records))
}

func (g *Gateway) forget(key string) {
	g.mu.Lock()
	delete(g.sessions, key)
	g.mu.Unlock()
}

func (g *Gateway) reply(msg bus.InboundMessage, content string) {
	g.bus.Outbound <- bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: content,
	}
}

func formatSuggestions(suggestions []chat.Suggestion) string {
	var sb strings.Builder
	sb.WriteString("Do any of these sound like part of your job?\n")
	for i, s := range suggestions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatTaskList(records []tasks.TaskRecord) string {
	var sb strings.Builder
	sb.WriteString("**Here is the task list I captured:**\n")
	for i, rec := range records {
		fmt.Fprintf(&sb, "%d. %s", i+1, rec.Statement)
		if rec.Matched && rec.OccupationTitle != "" {
			fmt.Fprintf(&sb, " (matches %q, %s confidence)", rec.TaxonomyStatement, rec.Confidence)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nThanks for walking me through your work!")
	return sb.String()
}

func (g *Gateway) Shutdown() error {
	if err := g.server.Stop(); err != nil {
		g.logger.Warn().Err(err).Msg("server stop failed")
	}
	g.cron.Stop()
	_ = g.channels.StopAll()
	if err := g.store.Close(); err != nil {
		g.logger.Warn().Err(err).Msg("close session store failed")
	}
	g.logger.Info().Msg("shutdown complete")
	return nil
}
