package inbox

import (
	"context"
	"time"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/registry"
)

// ResolveDM finds the direct conversation between the reader and otherUserID.
//
// DMs are opened with the world's human roster always included, so the
// conversation we want has exactly humans+2 members. When several match,
// the most recently active wins, then the lowest channel id.
func (e *Engine) ResolveDM(ctx context.Context, reader registry.Binding, otherUserID string) (string, error) {
	expected := reader.Humans + 2
	self := reader.Agent.App.UserID

	active, err := reader.Client.ListActiveConversations(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.DmNotFound, err, "listing conversations of %q", reader.Agent.Name)
	}

	var candidates []string
	for _, id := range active {
		members, err := reader.Client.GetChannelMembers(ctx, id)
		if err != nil {
			e.logger.Debug().Err(err).Str("channel_id", id).Msg("skipping conversation, members unavailable")
			continue
		}
		if len(members) == expected && contains(members, self) && contains(members, otherUserID) {
			candidates = append(candidates, id)
		}
	}

	switch len(candidates) {
	case 0:
		return "", apperr.New(apperr.DmNotFound, "no direct conversation between %q and %s", reader.Agent.Name, otherUserID)
	case 1:
		return candidates[0], nil
	}
	return e.mostRecent(ctx, reader, candidates), nil
}

func (e *Engine) mostRecent(ctx context.Context, reader registry.Binding, ids []string) string {
	best := ""
	var bestAt time.Time
	for _, id := range ids {
		var at time.Time
		if raw, err := reader.Client.FetchHistory(ctx, id, 1); err == nil && len(raw) > 0 {
			at, _ = models.ParseTS(raw[0].TS)
		}
		if best == "" || at.After(bestAt) || (at.Equal(bestAt) && id < best) {
			best, bestAt = id, at
		}
	}
	return best
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
