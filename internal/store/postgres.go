package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/agentslack/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// makes sure the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS slack_apps (
		user_id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		position SERIAL
	);

	CREATE TABLE IF NOT EXISTS humans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		expertise TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS tool_calls (
		id UUID PRIMARY KEY,
		tool TEXT NOT NULL,
		agent TEXT NOT NULL DEFAULT '',
		params JSONB NOT NULL DEFAULT '{}',
		outcome TEXT NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_tool_calls_created_at ON tool_calls(created_at);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListSlackApps returns the identity pool in provisioning order.
func (s *PostgresStore) ListSlackApps(ctx context.Context) ([]models.SlackApp, error) {
	defer observe(time.Now())
	rows, err := s.pool.Query(ctx, `SELECT user_id, token FROM slack_apps ORDER BY position`)
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
func (s *PostgresStore) ListHumans(ctx context.Context) ([]models.Human, error) {
	defer observe(time.Now())
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, name, expertise FROM humans ORDER BY id`)
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
func (s *PostgresStore) AddSlackApp(ctx context.Context, app models.SlackApp) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO slack_apps (user_id, token) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token
	`, app.UserID, app.Token)
	return err
}

// AddHuman adds or updates a roster entry.
func (s *PostgresStore) AddHuman(ctx context.Context, h models.Human) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO humans (id, user_id, name, expertise) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, name = EXCLUDED.name, expertise = EXCLUDED.expertise
	`, h.ID, h.UserID, h.Name, h.Expertise)
	return err
}

// RecordToolCall appends to the audit trail.
func (s *PostgresStore) RecordToolCall(ctx context.Context, call models.ToolCall) error {
	defer observe(time.Now())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tool_calls (id, tool, agent, params, outcome, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, call.ID, call.Tool, call.Agent, string(call.Params), call.Outcome, call.Duration.Milliseconds(), call.At)
	return err
}

// RecentToolCalls returns the newest audit entries first.
func (s *PostgresStore) RecentToolCalls(ctx context.Context, limit int) ([]models.ToolCall, error) {
	defer observe(time.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, tool, agent, params::text, outcome, duration_ms, created_at
		FROM tool_calls
		ORDER BY created_at DESC
		LIMIT $1
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
func (s *PostgresStore) CountToolCalls(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tool_calls`).Scan(&count)
	return count, err
}
