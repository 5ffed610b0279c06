package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"
	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// ErrSessionNotFound covers both unknown and expired sessions.
var ErrSessionNotFound = errors.New("session not found or expired")

// Record is one persisted conversation session. State holds the full
// conversation state JSON; this store never interprets it beyond
// patching individual fields.
type Record struct {
	ID        string
	JobTitle  string
	State     json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Store struct {
	db     *sql.DB
	ttl    time.Duration
	mu     sync.Mutex
	logger zerolog.Logger
}

func Open(dbPath string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{
		db:     db,
		ttl:    ttl,
		logger: log.With().Str("component", "session").Logger(),
	}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			job_title TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Create(id, jobTitle string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, job_title, state) VALUES (?, ?, ?)`,
		id, jobTitle, string(state),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns the session, or ErrSessionNotFound when it is absent or
// has outlived the TTL. Expired rows are deleted lazily.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, job_title, state, created_at, updated_at FROM sessions WHERE id = ?`, id)

	var rec Record
	var state, createdAt, updatedAt string
	if err := row.Scan(&rec.ID, &rec.JobTitle, &state, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	rec.State = json.RawMessage(state)
	rec.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdAt)
	rec.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedAt)

	if s.ttl > 0 && time.Since(rec.UpdatedAt.UTC()) > s.ttl {
		if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
			s.logger.Warn().Err(err).Str("session", id).Msg("delete expired session failed")
		}
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

// Put replaces the full state and refreshes the TTL clock.
func (s *Store) Put(id string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE sessions SET state = ?, updated_at = datetime('now') WHERE id = ?`,
		string(state), id,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Patch applies a partial update to the stored state JSON. Keys may be
// nested paths like "coverage.workOutput".
func (s *Store) Patch(id string, fields map[string]any) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}

	state := []byte(rec.State)
	for key, value := range fields {
		state, err = sjson.SetBytes(state, key, value)
		if err != nil {
			return fmt.Errorf("patch field %q: %w", key, err)
		}
	}
	return s.Put(id, state)
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SweepExpired hard-deletes sessions past the TTL. Run from the cron
// service so expired rows do not rely on a later Get to clean up.
func (s *Store) SweepExpired() (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	modifier := fmt.Sprintf("-%d seconds", int(s.ttl.Seconds()))
	res, err := s.db.Exec(`DELETE FROM sessions WHERE updated_at < datetime('now', ?)`, modifier)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("removed", n).Msg("swept expired sessions")
	}
	return int(n), nil
}
