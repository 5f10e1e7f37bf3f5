// Package store persists the snippet library and chat transcripts in a
// local sqlite database. Plain CRUD; no scheduling or retry logic lives
// here; failures surface to the HTTP layer as errors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"codesmith/internal/logging"
)

// Snippet is one saved library entry.
type Snippet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one chat transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Session   string    `json:"session"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc's driver does not tolerate concurrent writers on one handle.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Get(logging.CategoryStore).Infof("store opened at %s", path)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS snippets (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	language   TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session, created_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveSnippet inserts a snippet, assigning an ID when absent.
func (s *Store) SaveSnippet(ctx context.Context, sn Snippet) (Snippet, error) {
	if sn.ID == "" {
		sn.ID = uuid.NewString()
	}
	if sn.Title == "" {
		return Snippet{}, fmt.Errorf("snippet title is required")
	}
	sn.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snippets (id, title, language, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		sn.ID, sn.Title, sn.Language, sn.Body, sn.CreatedAt)
	if err != nil {
		return Snippet{}, fmt.Errorf("failed to save snippet: %w", err)
	}
	return sn, nil
}

// GetSnippet fetches one snippet by ID.
func (s *Store) GetSnippet(ctx context.Context, id string) (Snippet, error) {
	var sn Snippet
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, language, body, created_at FROM snippets WHERE id = ?`, id).
		Scan(&sn.ID, &sn.Title, &sn.Language, &sn.Body, &sn.CreatedAt)
	if err == sql.ErrNoRows {
		return Snippet{}, fmt.Errorf("snippet %s not found", id)
	}
	if err != nil {
		return Snippet{}, fmt.Errorf("failed to load snippet: %w", err)
	}
	return sn, nil
}

// ListSnippets returns all snippets, newest first.
func (s *Store) ListSnippets(ctx context.Context) ([]Snippet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, language, body, created_at FROM snippets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}
	defer rows.Close()

	var out []Snippet
	for rows.Next() {
		var sn Snippet
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Language, &sn.Body, &sn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// DeleteSnippet removes a snippet. Unknown IDs are an error so the UI can
// tell the user.
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("snippet %s not found", id)
	}
	return nil
}

// AppendMessage records one transcript entry.
func (s *Store) AppendMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Session == "" || m.Role == "" {
		return Message{}, fmt.Errorf("message session and role are required")
	}
	m.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Session, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return m, nil
}

// Transcript returns a session's messages in order.
func (s *Store) Transcript(ctx context.Context, session string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session, role, content, created_at FROM messages WHERE session = ? ORDER BY created_at, rowid`,
		session)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Session, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
