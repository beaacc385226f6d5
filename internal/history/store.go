// Package history persists finished turns so they can be listed and shown
// again later.
//
// Each turn keeps the raw model output next to the transcript chosen when the
// turn ended. Redisplay rebuilds the text from the raw output, so turns saved
// before a change to the finalization rules pick up the new rules.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// timestampLayout keeps a fixed width so created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	ErrNotFound  = errors.New("turn not found")
	ErrAmbiguous = errors.New("turn id prefix is ambiguous")
)

// Turn is one prompt and the model output it produced.
type Turn struct {
	ID         string
	Model      string
	Prompt     string
	RawOutput  string
	Transcript string
	CreatedAt  time.Time
}

// Store manages turn persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open initializes or connects to the history database and applies migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, logger: logger}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Save inserts a turn, assigning an ID and timestamp when they are unset.
func (s *Store) Save(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO turns (id, model, prompt, raw_output, transcript, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID,
		turn.Model,
		turn.Prompt,
		turn.RawOutput,
		turn.Transcript,
		turn.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	s.logger.Debug("saved turn", zap.String("turn_id", turn.ID), zap.Int("transcript_len", len(turn.Transcript)))
	return nil
}

// List returns up to limit turns, newest first. A limit of zero or less
// returns every turn.
func (s *Store) List(ctx context.Context, limit int) ([]Turn, error) {
	query := `SELECT id, model, prompt, raw_output, transcript, created_at
        FROM turns ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, *turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// Get returns the turn whose ID equals or starts with id.
func (s *Store) Get(ctx context.Context, id string) (*Turn, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, model, prompt, raw_output, transcript, created_at
        FROM turns WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY id = ? DESC LIMIT 2`,
		id, len(id), id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get turn: %w", err)
	}
	defer rows.Close()

	var matches []*Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case matches[0].ID == id || len(matches) == 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurn(row rowScanner) (*Turn, error) {
	var (
		turn      Turn
		createdAt string
	)
	if err := row.Scan(&turn.ID, &turn.Model, &turn.Prompt, &turn.RawOutput, &turn.Transcript, &createdAt); err != nil {
		return nil, fmt.Errorf("scan turn: %w", err)
	}
	ts, err := time.Parse(timestampLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	turn.CreatedAt = ts
	return &turn, nil
}
