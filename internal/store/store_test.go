package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/agentslack/internal/models"
)

func call(id, tool string, at time.Time) models.ToolCall {
	return models.ToolCall{
		ID:       id,
		Tool:     tool,
		Agent:    "alice",
		Params:   json.RawMessage(`{"your_name":"alice"}`),
		Outcome:  "ok",
		Duration: 12 * time.Millisecond,
		At:       at,
	}
}

// exerciseAudit runs the audit-trail contract against any DirectoryStore.
func exerciseAudit(t *testing.T, s DirectoryStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordToolCall(ctx, call("0190a000-0000-7000-8000-000000000001", "send_dm", base)))
	require.NoError(t, s.RecordToolCall(ctx, call("0190a000-0000-7000-8000-000000000002", "read_dm", base.Add(time.Second))))

	n, err := s.CountToolCalls(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recent, err := s.RecentToolCalls(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "read_dm", recent[0].Tool)
	assert.Equal(t, 12*time.Millisecond, recent[0].Duration)
	assert.JSONEq(t, `{"your_name":"alice"}`, string(recent[0].Params))
	assert.True(t, base.Add(time.Second).Equal(recent[0].At))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "nested", "agentslack.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.AddSlackApp(ctx, models.SlackApp{UserID: "U2", Token: "xoxb-2"}))
	require.NoError(t, s.AddSlackApp(ctx, models.SlackApp{UserID: "U1", Token: "xoxb-1"}))
	require.NoError(t, s.AddSlackApp(ctx, models.SlackApp{UserID: "U2", Token: "xoxb-2b"}))
	require.NoError(t, s.AddHuman(ctx, models.Human{ID: "sam", UserID: "UH1", Name: "Sam", Expertise: "ops"}))

	apps, err := s.ListSlackApps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.SlackApp{{UserID: "U2", Token: "xoxb-2b"}, {UserID: "U1", Token: "xoxb-1"}}, apps)

	humans, err := s.ListHumans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Human{{ID: "sam", UserID: "UH1", Name: "Sam", Expertise: "ops"}}, humans)

	exerciseAudit(t, s)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `TRUNCATE slack_apps, humans, tool_calls`)
	require.NoError(t, err)
	require.NoError(t, s.AddSlackApp(ctx, models.SlackApp{UserID: "U1", Token: "xoxb-1"}))

	apps, err := s.ListSlackApps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.SlackApp{{UserID: "U1", Token: "xoxb-1"}}, apps)

	exerciseAudit(t, s)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
apps:
  - user_id: U1
    token: xoxb-1
  - user_id: U2
    token: xoxb-2
humans:
  - id: sam
    user_id: UH1
    name: Sam
    expertise: databases
`), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	apps, err := s.ListSlackApps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.SlackApp{{UserID: "U1", Token: "xoxb-1"}, {UserID: "U2", Token: "xoxb-2"}}, apps)

	humans, err := s.ListHumans(ctx)
	require.NoError(t, err)
	assert.Equal(t, "databases", humans[0].Expertise)

	exerciseAudit(t, s)
}

func TestFileStoreRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileStore(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("apps:\n  - token: xoxb\n"), 0o600))
	_, err = NewFileStore(bad)
	assert.ErrorContains(t, err, "no user_id")
}

type failingRecorder struct{}

func (failingRecorder) RecordToolCall(context.Context, models.ToolCall) error {
	return errors.New("disk full")
}

func TestTee(t *testing.T) {
	fs := &FileStore{}
	rec := Tee(fs, nil, failingRecorder{})

	err := rec.RecordToolCall(context.Background(), call("id", "send_dm", time.Now()))
	assert.ErrorContains(t, err, "disk full")

	n, _ := fs.CountToolCalls(context.Background())
	assert.Equal(t, int64(1), n)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Client().Del(ctx, recentCallsKey).Err())

	at := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.RecordToolCall(ctx, call("a", "send_dm", at.Add(-time.Second))))
	require.NoError(t, s.RecordToolCall(ctx, call("b", "read_dm", at)))

	recent, err := s.RecentToolCalls(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)

	last, ok, err := s.LastActivity(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, at.Equal(last))
}
