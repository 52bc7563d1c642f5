package inbox

import (
	"context"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/metrics"
	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/provider"
)

// SendDM opens (or reuses) the direct conversation between two agents, with
// the world's human roster included, and posts text into it.
func (e *Engine) SendDM(ctx context.Context, senderName, recipientName, text string) (models.Message, error) {
	sender, err := e.reg.Bind(senderName)
	if err != nil {
		return models.Message{}, err
	}
	recipient, err := e.reg.Agent(recipientName)
	if err != nil {
		return models.Message{}, err
	}

	users := []string{recipient.App.UserID}
	for _, uid := range sender.Roster {
		if uid != sender.Agent.App.UserID && !contains(users, uid) {
			users = append(users, uid)
		}
	}
	channelID, err := sender.Client.OpenDirectConversation(ctx, users)
	if err != nil {
		return models.Message{}, unavailable(err, "opening conversation with %q", recipientName)
	}

	msg, err := e.post(ctx, senderName, sender.Client, channelID, text)
	if err != nil {
		return models.Message{}, err
	}
	if err := e.reg.SetVisibleChannels(senderName, []models.Channel{{ID: channelID, Name: models.DMChannelName}}); err != nil {
		return models.Message{}, err
	}
	metrics.MessagesSent.WithLabelValues("dm").Inc()
	return msg, nil
}

// SendBroadcast posts text to a channel the agent knows by name.
func (e *Engine) SendBroadcast(ctx context.Context, senderName, channelName, text string) (models.Message, error) {
	sender, err := e.reg.Bind(senderName)
	if err != nil {
		return models.Message{}, err
	}
	ch, err := e.reg.AgentChannel(senderName, channelName)
	if err != nil {
		return models.Message{}, err
	}
	msg, err := e.post(ctx, senderName, sender.Client, ch.ID, text)
	if err != nil {
		return models.Message{}, err
	}
	metrics.MessagesSent.WithLabelValues("broadcast").Inc()
	return msg, nil
}

func (e *Engine) post(ctx context.Context, senderName string, client provider.Client, channelID, text string) (models.Message, error) {
	ts, err := client.PostMessage(ctx, channelID, text)
	if err != nil {
		return models.Message{}, unavailable(err, "posting to %s", channelID)
	}
	msg := models.Message{
		Text:      text,
		ChannelID: channelID,
		UserID:    client.UserID(),
		Timestamp: ts,
	}
	if err := e.RecordSent(senderName, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListChannels returns the broadcast channels the provider shows the agent.
// Provider failures yield an empty list.
func (e *Engine) ListChannels(ctx context.Context, agentName string) ([]models.Channel, error) {
	b, err := e.reg.Bind(agentName)
	if err != nil {
		return nil, err
	}
	chans, err := b.Client.ListChannels(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("agent", agentName).Msg("listing channels failed")
		return []models.Channel{}, nil
	}
	if chans == nil {
		chans = []models.Channel{}
	}
	return chans, nil
}

// CreateChannel creates a broadcast channel as the agent and invites the
// world's human roster, minus the humans excluded for the agent. When the
// name is already taken the existing channel is adopted and the agent joins
// it through the binding's inviter.
func (e *Engine) CreateChannel(ctx context.Context, agentName, channelName string) (models.Channel, error) {
	b, err := e.reg.Bind(agentName)
	if err != nil {
		return models.Channel{}, err
	}

	invitees := b.Invitees
	id, err := b.Client.CreateChannel(ctx, channelName, false)
	switch {
	case provider.IsNameTaken(err):
		if id, err = e.existingChannelID(ctx, b.Client, channelName); err != nil {
			return models.Channel{}, err
		}
		if err := b.Inviter.InviteUsers(ctx, id, []string{b.Agent.App.UserID}); err != nil {
			return models.Channel{}, unavailable(err, "joining existing channel %q", channelName)
		}
	case err != nil:
		return models.Channel{}, unavailable(err, "creating channel %q", channelName)
	}

	ch := models.Channel{ID: id, Name: channelName}
	if err := e.reg.RegisterChannel(agentName, id, channelName); err != nil {
		return models.Channel{}, err
	}
	if len(invitees) > 0 {
		if err := b.Inviter.InviteUsers(ctx, id, invitees); err != nil {
			e.logger.Warn().Err(err).Str("channel_id", id).Msg("roster invite failed")
		}
	}
	e.logger.Info().Str("agent", agentName).Str("channel", channelName).Str("channel_id", id).Msg("channel created")
	return ch, nil
}

func (e *Engine) existingChannelID(ctx context.Context, client provider.Client, name string) (string, error) {
	chans, err := client.ListChannels(ctx)
	if err != nil {
		return "", unavailable(err, "channel %q exists but could not be listed", name)
	}
	for _, ch := range chans {
		if ch.Name == name {
			return ch.ID, nil
		}
	}
	return "", apperr.New(apperr.ProviderUnavailable, "channel %q is taken but not visible", name)
}
