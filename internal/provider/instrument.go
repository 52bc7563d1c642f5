package provider

import (
	"context"
	"time"

	"github.com/eldtechnologies/agentslack/internal/metrics"
	"github.com/eldtechnologies/agentslack/internal/models"
)

// Instrument wraps c so every call is recorded in the provider metrics.
func Instrument(c Client) Client {
	if _, ok := c.(*instrumented); ok {
		return c
	}
	return &instrumented{next: c}
}

// InstrumentDialer applies Instrument to every client d produces.
func InstrumentDialer(d Dialer) Dialer {
	return func(app models.SlackApp) Client {
		return Instrument(d(app))
	}
}

type instrumented struct {
	next Client
}

func observe(op string, start time.Time, err error) {
	metrics.ProviderLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(op).Inc()
	}
}

func (c *instrumented) UserID() string { return c.next.UserID() }

func (c *instrumented) ListChannels(ctx context.Context) (channels []models.Channel, err error) {
	defer func(start time.Time) { observe(OpListChannels, start, err) }(time.Now())
	return c.next.ListChannels(ctx)
}

func (c *instrumented) CreateChannel(ctx context.Context, name string, private bool) (id string, err error) {
	defer func(start time.Time) { observe(OpCreateChannel, start, err) }(time.Now())
	return c.next.CreateChannel(ctx, name, private)
}

func (c *instrumented) InviteUsers(ctx context.Context, channelID string, userIDs []string) (err error) {
	defer func(start time.Time) { observe(OpInviteUsers, start, err) }(time.Now())
	return c.next.InviteUsers(ctx, channelID, userIDs)
}

func (c *instrumented) OpenDirectConversation(ctx context.Context, userIDs []string) (id string, err error) {
	defer func(start time.Time) { observe(OpOpenDirectConversation, start, err) }(time.Now())
	return c.next.OpenDirectConversation(ctx, userIDs)
}

func (c *instrumented) PostMessage(ctx context.Context, channelID, text string) (ts string, err error) {
	defer func(start time.Time) { observe(OpPostMessage, start, err) }(time.Now())
	return c.next.PostMessage(ctx, channelID, text)
}

func (c *instrumented) FetchHistory(ctx context.Context, channelID string, limit int) (msgs []RawMessage, err error) {
	defer func(start time.Time) { observe(OpFetchHistory, start, err) }(time.Now())
	return c.next.FetchHistory(ctx, channelID, limit)
}

func (c *instrumented) ListActiveConversations(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { observe(OpListActiveConversations, start, err) }(time.Now())
	return c.next.ListActiveConversations(ctx)
}

func (c *instrumented) GetChannelMembers(ctx context.Context, channelID string) (members []string, err error) {
	defer func(start time.Time) { observe(OpGetChannelMembers, start, err) }(time.Now())
	return c.next.GetChannelMembers(ctx, channelID)
}
