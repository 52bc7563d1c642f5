// Package provider defines the messaging platform the coordination layer
// runs on. A Client acts as exactly one platform identity; implementations
// live in the slackapi and memory subpackages.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/eldtechnologies/agentslack/internal/models"
)

// Operation names, used in errors and metrics labels.
const (
	OpListChannels            = "list_channels"
	OpCreateChannel           = "create_channel"
	OpInviteUsers             = "invite_users"
	OpOpenDirectConversation  = "open_direct_conversation"
	OpPostMessage             = "post_message"
	OpFetchHistory            = "fetch_history"
	OpListActiveConversations = "list_active_conversations"
	OpGetChannelMembers       = "get_channel_members"
)

// ErrNameTaken is returned by CreateChannel when a channel with the
// requested name already exists.
var ErrNameTaken = errors.New("channel name already taken")

// RawMessage is a history entry as the platform returns it.
type RawMessage struct {
	Text string `json:"text"`
	User string `json:"user"`
	TS   string `json:"ts"`
}

// Client is the set of platform calls the coordination layer needs. Every
// call may fail; callers decide whether a failure is fatal.
type Client interface {
	// UserID is the platform user this client acts as.
	UserID() string

	ListChannels(ctx context.Context) ([]models.Channel, error)
	CreateChannel(ctx context.Context, name string, private bool) (string, error)
	InviteUsers(ctx context.Context, channelID string, userIDs []string) error
	OpenDirectConversation(ctx context.Context, userIDs []string) (string, error)
	PostMessage(ctx context.Context, channelID, text string) (string, error)
	// FetchHistory returns up to limit messages, newest first.
	FetchHistory(ctx context.Context, channelID string, limit int) ([]RawMessage, error)
	// ListActiveConversations returns the direct-message conversations the
	// identity currently takes part in.
	ListActiveConversations(ctx context.Context) ([]string, error)
	GetChannelMembers(ctx context.Context, channelID string) ([]string, error)
}

// Dialer builds a Client for an identity binding.
type Dialer func(app models.SlackApp) Client

// Error describes a failed platform call.
type Error struct {
	Op   string
	Code string // platform error code, e.g. "channel_not_found"
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider: %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNameTaken reports whether err is a channel-name collision.
func IsNameTaken(err error) bool {
	return errors.Is(err, ErrNameTaken)
}
