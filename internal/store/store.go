package store

import (
	"context"
	"errors"
	"time"

	"github.com/eldtechnologies/agentslack/internal/metrics"
	"github.com/eldtechnologies/agentslack/internal/models"
)

// DirectoryStore holds the pre-provisioned identity pool and human roster,
// plus the tool-call audit trail. PostgresStore, SQLiteStore and FileStore
// implement it.
type DirectoryStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Directory
	ListSlackApps(ctx context.Context) ([]models.SlackApp, error)
	ListHumans(ctx context.Context) ([]models.Human, error)

	// Audit trail
	RecordToolCall(ctx context.Context, call models.ToolCall) error
	RecentToolCalls(ctx context.Context, limit int) ([]models.ToolCall, error)
	CountToolCalls(ctx context.Context) (int64, error)
}

// Recorder is anything that can persist a tool call.
type Recorder interface {
	RecordToolCall(ctx context.Context, call models.ToolCall) error
}

// Tee records every call to each non-nil recorder.
func Tee(recs ...Recorder) Recorder {
	var out tee
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type tee []Recorder

func (t tee) RecordToolCall(ctx context.Context, call models.ToolCall) error {
	var errs []error
	for _, r := range t {
		if err := r.RecordToolCall(ctx, call); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func observe(start time.Time) {
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
}
