// Package slackapi implements provider.Client on top of the Slack Web API.
package slackapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/provider"
)

const pageSize = 200

// Options configures the HTTP side of the Slack client.
type Options struct {
	Timeout time.Duration
	APIURL  string // override for tests; must end with "/"
}

// Client is a provider.Client acting as one Slack app's bot user.
type Client struct {
	api    *slack.Client
	userID string
}

// New creates a Slack client for app.
func New(app models.SlackApp, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	slackOpts := []slack.Option{
		slack.OptionHTTPClient(&http.Client{Timeout: opts.Timeout}),
	}
	if opts.APIURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(opts.APIURL))
	}
	return &Client{
		api:    slack.New(app.Token, slackOpts...),
		userID: app.UserID,
	}
}

// Dialer returns a provider.Dialer producing Slack clients.
func Dialer(opts Options) provider.Dialer {
	return func(app models.SlackApp) provider.Client {
		return New(app, opts)
	}
}

// UserID returns the Slack user the bot token acts as.
func (c *Client) UserID() string { return c.userID }

// ListChannels lists public and private channels visible to the bot.
func (c *Client) ListChannels(ctx context.Context) ([]models.Channel, error) {
	chans, err := c.listConversations(ctx, []string{"public_channel", "private_channel"})
	if err != nil {
		return nil, wrap(provider.OpListChannels, err)
	}
	out := make([]models.Channel, 0, len(chans))
	for _, ch := range chans {
		out = append(out, models.Channel{ID: ch.ID, Name: ch.Name})
	}
	return out, nil
}

// CreateChannel creates a channel. A name collision is reported as
// provider.ErrNameTaken.
func (c *Client) CreateChannel(ctx context.Context, name string, private bool) (string, error) {
	ch, err := c.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: name,
		IsPrivate:   private,
	})
	if err != nil {
		if errorCode(err) == "name_taken" {
			return "", &provider.Error{Op: provider.OpCreateChannel, Code: "name_taken", Err: provider.ErrNameTaken}
		}
		return "", wrap(provider.OpCreateChannel, err)
	}
	return ch.ID, nil
}

// InviteUsers adds users to a channel. Users already present are not an
// error.
func (c *Client) InviteUsers(ctx context.Context, channelID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.api.InviteUsersToConversationContext(ctx, channelID, userIDs...)
	if err != nil && errorCode(err) != "already_in_channel" {
		return wrap(provider.OpInviteUsers, err)
	}
	return nil
}

// OpenDirectConversation opens (or reuses) an im/mpim with userIDs.
func (c *Client) OpenDirectConversation(ctx context.Context, userIDs []string) (string, error) {
	ch, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: userIDs,
	})
	if err != nil {
		return "", wrap(provider.OpOpenDirectConversation, err)
	}
	return ch.ID, nil
}

// PostMessage posts plain text and returns the message timestamp.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return "", wrap(provider.OpPostMessage, err)
	}
	return ts, nil
}

// FetchHistory returns up to limit messages, newest first.
func (c *Client) FetchHistory(ctx context.Context, channelID string, limit int) ([]provider.RawMessage, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, wrap(provider.OpFetchHistory, err)
	}
	out := make([]provider.RawMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, provider.RawMessage{Text: m.Text, User: m.User, TS: m.Timestamp})
	}
	return out, nil
}

// ListActiveConversations lists the im and mpim conversations of the bot.
func (c *Client) ListActiveConversations(ctx context.Context) ([]string, error) {
	chans, err := c.listConversations(ctx, []string{"im", "mpim"})
	if err != nil {
		return nil, wrap(provider.OpListActiveConversations, err)
	}
	ids := make([]string, 0, len(chans))
	for _, ch := range chans {
		ids = append(ids, ch.ID)
	}
	return ids, nil
}

// GetChannelMembers returns the user ids in a conversation.
func (c *Client) GetChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		page, next, err := c.api.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
			Limit:     pageSize,
		})
		if err != nil {
			return nil, wrap(provider.OpGetChannelMembers, err)
		}
		members = append(members, page...)
		if next == "" {
			return members, nil
		}
		cursor = next
	}
}

func (c *Client) listConversations(ctx context.Context, types []string) ([]slack.Channel, error) {
	var all []slack.Channel
	cursor := ""
	for {
		page, next, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Cursor:          cursor,
			ExcludeArchived: true,
			Limit:           pageSize,
			Types:           types,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

func wrap(op string, err error) error {
	return &provider.Error{Op: op, Code: errorCode(err), Err: err}
}

// errorCode extracts the Slack error string ("channel_not_found", ...).
func errorCode(err error) string {
	var resp slack.SlackErrorResponse
	if errors.As(err, &resp) {
		return resp.Err
	}
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return "ratelimited"
	}
	return ""
}
