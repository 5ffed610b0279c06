package cron

import (
	"fmt"
	"sync"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service runs recurring maintenance jobs on cron schedules with a
// seconds field, e.g. "0 */10 * * * *" for every ten minutes.
type Service struct {
	mu      sync.Mutex
	cron    *rcron.Cron
	entries map[string]rcron.EntryID
	logger  zerolog.Logger
}

func NewService() *Service {
	return &Service{
		cron:    rcron.New(rcron.WithSeconds()),
		entries: make(map[string]rcron.EntryID),
		logger:  log.With().Str("component", "cron").Logger(),
	}
}

// Add registers a named job. Adding a name twice replaces the earlier
// schedule.
func (s *Service) Add(name, expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
		delete(s.entries, name)
	}

	logger := s.logger
	id, err := s.cron.AddFunc(expr, func() {
		logger.Debug().Str("job", name).Msg("running")
		fn()
	})
	if err != nil {
		return fmt.Errorf("register job %s (%s): %w", name, expr, err)
	}
	s.entries[name] = id
	return nil
}

// Remove unregisters a job. Unknown names are ignored.
func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Jobs lists registered job names.
func (s *Service) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *Service) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.Jobs())).Msg("started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("stopped")
}
