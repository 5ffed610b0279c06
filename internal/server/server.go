package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/chat"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/config"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/tasks"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

// Server exposes the elicitation and pipeline API over HTTP.
type Server struct {
	orchestrator *chat.Orchestrator
	pipeline     *tasks.Pipeline
	llm          llm.Client
	taxonomy     taxonomy.Client
	host         string
	port         int
	server       *http.Server
	logger       zerolog.Logger
}

func New(cfg *config.Config, orch *chat.Orchestrator, pipe *tasks.Pipeline, client llm.Client, tax taxonomy.Client) *Server {
	host := cfg.Gateway.Host
	if host == "" {
		host = config.DefaultHost
	}
	port := cfg.Gateway.Port
	if port == 0 {
		port = config.DefaultPort
	}

	return &Server{
		orchestrator: orch,
		pipeline:     pipe,
		llm:          client,
		taxonomy:     tax,
		host:         host,
		port:         port,
		logger:       log.With().Str("component", "server").Logger(),
	}
}

// Handler builds the route table. Exposed so tests can drive it through
// httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/chat/stream", s.handleChatStream)
	mux.HandleFunc("/api/tasks/process", s.handleTasksProcess)
	mux.HandleFunc("/api/tasks/match", s.handleTasksMatch)
	mux.HandleFunc("/api/taxonomy/suggestions", s.handleSuggestions)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("server error")
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	s.logger.Info().Msg("stopped")
	return nil
}
