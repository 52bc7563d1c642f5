// Package inbox turns provider history into per-agent "new message" views.
//
// Every read goes through the same pipeline: fetch history, drop anything
// older than the world's start epoch, then hand the rest to
// Registry.Deliver, which returns only what the agent has not seen on that
// channel and records it as seen.
package inbox

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/metrics"
	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/provider"
	"github.com/eldtechnologies/agentslack/internal/registry"
)

const (
	DefaultHistoryLimit     = 100
	DefaultSweepConcurrency = 8
)

// Config tunes the engine.
type Config struct {
	HistoryLimit     int
	SweepConcurrency int
	Logger           zerolog.Logger
}

// Engine reads and writes messages on behalf of registered agents.
type Engine struct {
	reg         *registry.Registry
	limit       int
	concurrency int
	logger      zerolog.Logger
}

// New creates an engine over reg.
func New(reg *registry.Registry, cfg Config) *Engine {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = DefaultSweepConcurrency
	}
	return &Engine{
		reg:         reg,
		limit:       cfg.HistoryLimit,
		concurrency: cfg.SweepConcurrency,
		logger:      cfg.Logger.With().Str("component", "inbox").Logger(),
	}
}

// ReadChannel returns the messages on a broadcast channel the agent has not
// seen yet. Provider failures yield an empty result.
func (e *Engine) ReadChannel(ctx context.Context, agentName, channelName string) ([]models.Message, error) {
	b, err := e.reg.Bind(agentName)
	if err != nil {
		return nil, err
	}
	ch, err := e.reg.AgentChannel(agentName, channelName)
	if err != nil {
		return nil, err
	}
	return e.readNew(ctx, b, ch.ID, "channel")
}

// ReadDM returns the unseen messages of the direct conversation between
// readerName and senderName.
func (e *Engine) ReadDM(ctx context.Context, readerName, senderName string) ([]models.Message, error) {
	reader, err := e.reg.Bind(readerName)
	if err != nil {
		return nil, err
	}
	sender, err := e.reg.Agent(senderName)
	if err != nil {
		return nil, err
	}
	channelID, err := e.ResolveDM(ctx, reader, sender.App.UserID)
	if err != nil {
		return nil, err
	}
	if err := e.reg.SetVisibleChannels(readerName, []models.Channel{{ID: channelID, Name: models.DMChannelName}}); err != nil {
		return nil, err
	}
	return e.readNew(ctx, reader, channelID, "dm")
}

func (e *Engine) readNew(ctx context.Context, b registry.Binding, channelID, source string) ([]models.Message, error) {
	fetched, err := e.fetch(ctx, b, channelID)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("agent", b.Agent.Name).
			Str("channel_id", channelID).
			Msg("history fetch failed")
		return []models.Message{}, nil
	}
	fresh, err := e.reg.Deliver(b.Agent.Name, channelID, fetched)
	if err != nil {
		return nil, err
	}
	metrics.MessagesDelivered.WithLabelValues(source).Add(float64(len(fresh)))
	if fresh == nil {
		fresh = []models.Message{}
	}
	return fresh, nil
}

// fetch pulls recent history and keeps messages at or after the world's
// start epoch, oldest first.
func (e *Engine) fetch(ctx context.Context, b registry.Binding, channelID string) ([]models.Message, error) {
	raw, err := b.Client.FetchHistory(ctx, channelID, e.limit)
	if err != nil {
		return nil, err
	}
	return sinceEpoch(raw, channelID, b), nil
}

func sinceEpoch(raw []provider.RawMessage, channelID string, b registry.Binding) []models.Message {
	out := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		ts, ok := models.ParseTS(r.TS)
		if !ok || ts.Before(b.StartEpoch) {
			continue
		}
		out = append(out, models.Message{
			Text:      r.Text,
			ChannelID: channelID,
			UserID:    r.User,
			Timestamp: r.TS,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// RecordSent marks a message the agent just posted as already seen, so it
// never comes back to its author as new.
func (e *Engine) RecordSent(agentName string, msg models.Message) error {
	_, err := e.reg.Deliver(agentName, msg.ChannelID, []models.Message{msg})
	return err
}

func unavailable(err error, format string, args ...any) error {
	return apperr.Wrap(apperr.ProviderUnavailable, err, format, args...)
}
