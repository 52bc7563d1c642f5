package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/eldtechnologies/agentslack/internal/models"
)

const fileAuditCap = 1000

// DirectoryFile is the on-disk layout of a YAML directory.
type DirectoryFile struct {
	Apps   []models.SlackApp `yaml:"apps"`
	Humans []models.Human    `yaml:"humans"`
}

// FileStore serves the directory from a YAML file and keeps the most recent
// tool calls in memory.
type FileStore struct {
	dir DirectoryFile

	mu    sync.Mutex
	calls []models.ToolCall // oldest first, capped
	total int64
}

// NewFileStore reads a YAML directory file.
func NewFileStore(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	var dir DirectoryFile
	if err := yaml.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("parse directory file %s: %w", path, err)
	}
	for i, app := range dir.Apps {
		if app.UserID == "" {
			return nil, fmt.Errorf("directory file %s: app %d has no user_id", path, i)
		}
	}
	return &FileStore{dir: dir}, nil
}

// Close is a no-op.
func (s *FileStore) Close() {}

// Ping always succeeds.
func (s *FileStore) Ping(ctx context.Context) error { return nil }

// ListSlackApps returns the apps in file order.
func (s *FileStore) ListSlackApps(ctx context.Context) ([]models.SlackApp, error) {
	return append([]models.SlackApp(nil), s.dir.Apps...), nil
}

// ListHumans returns the humans in file order.
func (s *FileStore) ListHumans(ctx context.Context) ([]models.Human, error) {
	return append([]models.Human(nil), s.dir.Humans...), nil
}

// RecordToolCall keeps the call in the in-memory window.
func (s *FileStore) RecordToolCall(ctx context.Context, call models.ToolCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	if len(s.calls) > fileAuditCap {
		s.calls = s.calls[len(s.calls)-fileAuditCap:]
	}
	s.total++
	return nil
}

// RecentToolCalls returns the newest calls first.
func (s *FileStore) RecentToolCalls(ctx context.Context, limit int) ([]models.ToolCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ToolCall, 0, limit)
	for i := len(s.calls) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.calls[i])
	}
	return out, nil
}

// CountToolCalls returns how many calls were recorded since start.
func (s *FileStore) CountToolCalls(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}
