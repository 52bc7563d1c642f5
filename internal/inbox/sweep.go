package inbox

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/eldtechnologies/agentslack/internal/metrics"
	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/registry"
)

// Batch is the new messages of one channel.
type Batch struct {
	ChannelID   string           `json:"channel_id"`
	ChannelName string           `json:"channel_name"`
	Messages    []models.Message `json:"messages"`
}

// Failure records a channel a sweep could not read.
type Failure struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Error       string `json:"error"`
}

// SweepResult is the outcome of a cross-channel sweep. Channels with nothing
// new are omitted from Batches.
type SweepResult struct {
	Batches  []Batch   `json:"batches"`
	Failures []Failure `json:"failures,omitempty"`
}

// Sweep collects everything new for an agent across all the channels it
// belongs to. A channel whose provider calls fail is reported in Failures
// and skipped; the sweep itself only fails for an unknown agent.
func (e *Engine) Sweep(ctx context.Context, agentName string) (SweepResult, error) {
	b, err := e.reg.Bind(agentName)
	if err != nil {
		return SweepResult{}, err
	}

	candidates := e.candidates(ctx, b)

	type outcome struct {
		visited bool
		batch   Batch
		failure *Failure
	}
	outcomes := make([]outcome, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, ch := range candidates {
		i, ch := i, ch
		g.Go(func() error {
			fail := func(err error) {
				outcomes[i].failure = &Failure{ChannelID: ch.ID, ChannelName: ch.Name, Error: err.Error()}
			}
			if !ch.IsDM() {
				members, err := b.Client.GetChannelMembers(gctx, ch.ID)
				if err != nil {
					fail(err)
					return nil
				}
				if !contains(members, b.Agent.App.UserID) {
					return nil
				}
			}
			fetched, err := e.fetch(gctx, b, ch.ID)
			if err != nil {
				fail(err)
				return nil
			}
			fresh, err := e.reg.Deliver(b.Agent.Name, ch.ID, fetched)
			if err != nil {
				fail(err)
				return nil
			}
			outcomes[i].visited = true
			outcomes[i].batch = Batch{ChannelID: ch.ID, ChannelName: ch.Name, Messages: fresh}
			return nil
		})
	}
	_ = g.Wait()

	var (
		res     SweepResult
		visible []models.Channel
	)
	res.Batches = []Batch{}
	for i, o := range outcomes {
		switch {
		case o.failure != nil:
			res.Failures = append(res.Failures, *o.failure)
			metrics.SweepChannelFailures.Inc()
			e.logger.Warn().
				Str("agent", agentName).
				Str("channel_id", o.failure.ChannelID).
				Str("error", o.failure.Error).
				Msg("sweep skipped channel")
		case o.visited:
			visible = append(visible, candidates[i])
			if len(o.batch.Messages) > 0 {
				res.Batches = append(res.Batches, o.batch)
				metrics.MessagesDelivered.WithLabelValues("sweep").Add(float64(len(o.batch.Messages)))
			}
		}
	}
	if err := e.reg.SetVisibleChannels(agentName, visible); err != nil {
		return SweepResult{}, err
	}
	return res, nil
}

// candidates is the agent's known channels plus its active direct
// conversations and the provider's channel list. Listing failures shrink the
// set but never abort the sweep.
func (e *Engine) candidates(ctx context.Context, b registry.Binding) []models.Channel {
	var dms []models.Channel
	if ids, err := b.Client.ListActiveConversations(ctx); err != nil {
		e.logger.Warn().Err(err).Str("agent", b.Agent.Name).Msg("listing direct conversations failed")
	} else {
		for _, id := range ids {
			dms = append(dms, models.Channel{ID: id, Name: models.DMChannelName})
		}
	}

	listed, err := b.Client.ListChannels(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("agent", b.Agent.Name).Msg("listing channels failed")
	}

	all := models.MergeChannels(b.Agent.Channels, dms...)
	return models.MergeChannels(all, listed...)
}
