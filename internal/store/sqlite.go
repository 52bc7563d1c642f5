package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/agentslack/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/agentslack.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/agentslack.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS slack_apps (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT UNIQUE NOT NULL,
		token TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS humans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		expertise TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS tool_calls (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		agent TEXT NOT NULL DEFAULT '',
		params TEXT NOT NULL DEFAULT '{}',
		outcome TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tool_calls_created_at ON tool_calls(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListSlackApps returns the identity pool in provisioning order.
func (s *SQLiteStore) ListSlackApps(ctx context.Context) ([]models.SlackApp, error) {
	defer observe(time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, token FROM slack_apps ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []models.SlackApp
	for rows.Next() {
		var app models.SlackApp
		if err := rows.Scan(&app.UserID, &app.Token); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// ListHumans returns the human roster.
func (s *SQLiteStore) ListHumans(ctx context.Context) ([]models.Human, error) {
	defer observe(time.Now())
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, name, expertise FROM humans ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var humans []models.Human
	for rows.Next() {
		var h models.Human
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Expertise); err != nil {
			return nil, err
		}
		humans = append(humans, h)
	}
	return humans, rows.Err()
}

// AddSlackApp provisions an identity binding.
func (s *SQLiteStore) AddSlackApp(ctx context.Context, app models.SlackApp) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slack_apps (user_id, token) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET token = excluded.token
	`, app.UserID, app.Token)
	return err
}

// AddHuman adds or updates a roster entry.
func (s *SQLiteStore) AddHuman(ctx context.Context, h models.Human) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO humans (id, user_id, name, expertise) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, name = excluded.name, expertise = excluded.expertise
	`, h.ID, h.UserID, h.Name, h.Expertise)
	return err
}

// RecordToolCall appends to the audit trail.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, call models.ToolCall) error {
	defer observe(time.Now())
	params := string(call.Params)
	if params == "" {
		params = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (id, tool, agent, params, outcome, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, call.ID, call.Tool, call.Agent, params, call.Outcome, call.Duration.Milliseconds(), call.At.UTC())
	return err
}

// RecentToolCalls returns the newest audit entries first.
func (s *SQLiteStore) RecentToolCalls(ctx context.Context, limit int) ([]models.ToolCall, error) {
	defer observe(time.Now())
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool, agent, params, outcome, duration_ms, created_at
		FROM tool_calls
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []models.ToolCall
	for rows.Next() {
		var (
			c      models.ToolCall
			params string
			ms     int64
		)
		if err := rows.Scan(&c.ID, &c.Tool, &c.Agent, &params, &c.Outcome, &ms, &c.At); err != nil {
			return nil, err
		}
		c.Params = []byte(params)
		c.Duration = time.Duration(ms) * time.Millisecond
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// CountToolCalls returns the audit trail size.
func (s *SQLiteStore) CountToolCalls(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_calls`).Scan(&count)
	return count, err
}
