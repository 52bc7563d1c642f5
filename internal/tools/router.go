// Package tools exposes the coordination layer to agents as a fixed set of
// named tools. A call is looked up by name, its parameter bag is validated
// against the tool's declared parameters, and only then is the handler run.
package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/metrics"
	"github.com/eldtechnologies/agentslack/internal/models"
)

// Args is the parameter bag of a tool call.
type Args map[string]any

// String returns a validated string parameter.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Handler runs a tool. Args have already been validated.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is the public definition of a tool.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  []Param `json:"parameters"`
}

// Recorder persists an audit trail of tool calls.
type Recorder interface {
	RecordToolCall(ctx context.Context, call models.ToolCall) error
}

type entry struct {
	tool    Tool
	handler Handler
}

// Router dispatches tool calls by name.
type Router struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string

	recorder Recorder
	logger   zerolog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithRecorder enables the audit trail.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) { r.recorder = rec }
}

// WithLogger sets the router's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) { r.logger = logger.With().Str("component", "tools").Logger() }
}

// NewRouter returns an empty router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		entries: make(map[string]entry),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names must be unique.
func (r *Router) Register(tool Tool, handler Handler) error {
	if tool.Name == "" {
		return apperr.New(apperr.InvalidArgument, "tool name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[tool.Name]; exists {
		return apperr.New(apperr.AlreadyExists, "tool %q already registered", tool.Name)
	}
	r.entries[tool.Name] = entry{tool: tool, handler: handler}
	r.order = append(r.order, tool.Name)
	return nil
}

// Tools returns every definition in registration order.
func (r *Router) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].tool)
	}
	return out
}

// Tool returns the definition of one tool.
func (r *Router) Tool(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Tool{}, r.notFoundLocked(name)
	}
	return e.tool, nil
}

// Call validates args and runs the named tool. An unknown tool fails with
// ToolNotFound before anything else happens.
func (r *Router) Call(ctx context.Context, name string, args Args) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	if !ok {
		err := r.notFoundLocked(name)
		r.mu.RUnlock()
		metrics.ToolCalls.WithLabelValues("unknown", string(apperr.ToolNotFound)).Inc()
		return nil, err
	}
	r.mu.RUnlock()

	if args == nil {
		args = Args{}
	}
	start := time.Now()

	result, err := func() (any, error) {
		if err := validate(e.tool.Parameters, args); err != nil {
			return nil, err
		}
		return e.handler(ctx, args)
	}()

	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	metrics.ToolCalls.WithLabelValues(name, outcome).Inc()
	r.logger.Debug().
		Str("tool", name).
		Str("agent", args.String("your_name")).
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("tool call")
	r.audit(ctx, name, args, outcome, start)

	return result, err
}

func (r *Router) audit(ctx context.Context, name string, args Args, outcome string, start time.Time) {
	if r.recorder == nil {
		return
	}
	params, err := json.Marshal(args)
	if err != nil {
		params = []byte("{}")
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	call := models.ToolCall{
		ID:       id.String(),
		Tool:     name,
		Agent:    args.String("your_name"),
		Params:   params,
		Outcome:  outcome,
		Duration: time.Since(start),
		At:       start.UTC(),
	}
	if err := r.recorder.RecordToolCall(ctx, call); err != nil {
		r.logger.Warn().Err(err).Str("tool", name).Msg("failed to record tool call")
	}
}

func (r *Router) notFoundLocked(name string) error {
	return apperr.New(apperr.ToolNotFound, "unknown tool %q; available: %s", name, strings.Join(r.order, ", "))
}
