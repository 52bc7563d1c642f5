package tools

import (
	"context"

	"github.com/eldtechnologies/agentslack/internal/inbox"
	"github.com/eldtechnologies/agentslack/internal/models"
)

// Tool names.
const (
	SendDM           = "send_dm"
	SendBroadcast    = "send_broadcast"
	ReadChannel      = "read_channel"
	ReadDM           = "read_dm"
	CheckNewMessages = "check_new_messages"
	ListChannels     = "list_channels"
	CreateChannel    = "create_channel"
)

// Names resolves provider user ids to display names.
type Names interface {
	DisplayName(userID string) string
}

// MessageView is a message as shown to an agent.
type MessageView struct {
	Author    string `json:"author"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	ChannelID string `json:"channel_id"`
	Timestamp string `json:"timestamp"`
}

// SendResult is returned by the write tools.
type SendResult struct {
	Status    string `json:"status"`
	ChannelID string `json:"channel_id"`
	Timestamp string `json:"timestamp"`
}

// ReadResult is returned by read_channel and read_dm.
type ReadResult struct {
	Channel  string        `json:"channel,omitempty"`
	Sender   string        `json:"sender,omitempty"`
	Messages []MessageView `json:"messages"`
}

// BatchView groups new messages by channel.
type BatchView struct {
	ChannelID   string        `json:"channel_id"`
	ChannelName string        `json:"channel_name"`
	Messages    []MessageView `json:"messages"`
}

// CheckResult is returned by check_new_messages.
type CheckResult struct {
	Batches  []BatchView     `json:"batches"`
	Failures []inbox.Failure `json:"failures,omitempty"`
}

// ChannelsResult is returned by list_channels.
type ChannelsResult struct {
	Channels []models.Channel `json:"channels"`
}

var yourName = Param{Name: "your_name", Type: TypeString, Description: "Your registered agent name"}

// RegisterAgentTools installs the agent-facing tools backed by eng.
func (r *Router) RegisterAgentTools(eng *inbox.Engine, names Names) error {
	a := &agentTools{eng: eng, names: names}
	defs := []struct {
		tool    Tool
		handler Handler
	}{
		{Tool{
			Name:        SendDM,
			Description: "Send a direct message to another agent",
			Parameters: []Param{
				yourName,
				{Name: "recipient_name", Type: TypeString, Description: "Name of the receiving agent"},
				{Name: "message", Type: TypeString, Description: "Message text"},
			},
		}, a.sendDM},
		{Tool{
			Name:        SendBroadcast,
			Description: "Post a message to a channel",
			Parameters: []Param{
				yourName,
				{Name: "channel_name", Type: TypeString, Description: "Channel to post to"},
				{Name: "message", Type: TypeString, Description: "Message text"},
			},
		}, a.sendBroadcast},
		{Tool{
			Name:        ReadChannel,
			Description: "Read the messages in a channel you have not seen yet",
			Parameters: []Param{
				yourName,
				{Name: "channel_name", Type: TypeString, Description: "Channel to read"},
			},
		}, a.readChannel},
		{Tool{
			Name:        ReadDM,
			Description: "Read new direct messages from another agent",
			Parameters: []Param{
				yourName,
				{Name: "sender_name", Type: TypeString, Description: "Agent whose messages to read"},
			},
		}, a.readDM},
		{Tool{
			Name:        CheckNewMessages,
			Description: "Collect new messages across all your channels and direct messages",
			Parameters:  []Param{yourName},
		}, a.checkNew},
		{Tool{
			Name:        ListChannels,
			Description: "List the channels in the workspace",
			Parameters:  []Param{yourName},
		}, a.listChannels},
		{Tool{
			Name:        CreateChannel,
			Description: "Create a channel, or join the existing one with that name",
			Parameters: []Param{
				yourName,
				{Name: "channel_name", Type: TypeString, Description: "Name of the new channel"},
			},
		}, a.createChannel},
	}
	for _, d := range defs {
		if err := r.Register(d.tool, d.handler); err != nil {
			return err
		}
	}
	return nil
}

type agentTools struct {
	eng   *inbox.Engine
	names Names
}

func (a *agentTools) sendDM(ctx context.Context, args Args) (any, error) {
	msg, err := a.eng.SendDM(ctx, args.String("your_name"), args.String("recipient_name"), args.String("message"))
	if err != nil {
		return nil, err
	}
	return sent(msg), nil
}

func (a *agentTools) sendBroadcast(ctx context.Context, args Args) (any, error) {
	msg, err := a.eng.SendBroadcast(ctx, args.String("your_name"), args.String("channel_name"), args.String("message"))
	if err != nil {
		return nil, err
	}
	return sent(msg), nil
}

func (a *agentTools) readChannel(ctx context.Context, args Args) (any, error) {
	channel := args.String("channel_name")
	msgs, err := a.eng.ReadChannel(ctx, args.String("your_name"), channel)
	if err != nil {
		return nil, err
	}
	return ReadResult{Channel: channel, Messages: a.views(msgs)}, nil
}

func (a *agentTools) readDM(ctx context.Context, args Args) (any, error) {
	sender := args.String("sender_name")
	msgs, err := a.eng.ReadDM(ctx, args.String("your_name"), sender)
	if err != nil {
		return nil, err
	}
	return ReadResult{Sender: sender, Messages: a.views(msgs)}, nil
}

func (a *agentTools) checkNew(ctx context.Context, args Args) (any, error) {
	res, err := a.eng.Sweep(ctx, args.String("your_name"))
	if err != nil {
		return nil, err
	}
	out := CheckResult{Batches: make([]BatchView, 0, len(res.Batches)), Failures: res.Failures}
	for _, b := range res.Batches {
		out.Batches = append(out.Batches, BatchView{
			ChannelID:   b.ChannelID,
			ChannelName: b.ChannelName,
			Messages:    a.views(b.Messages),
		})
	}
	return out, nil
}

func (a *agentTools) listChannels(ctx context.Context, args Args) (any, error) {
	chans, err := a.eng.ListChannels(ctx, args.String("your_name"))
	if err != nil {
		return nil, err
	}
	return ChannelsResult{Channels: chans}, nil
}

func (a *agentTools) createChannel(ctx context.Context, args Args) (any, error) {
	ch, err := a.eng.CreateChannel(ctx, args.String("your_name"), args.String("channel_name"))
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (a *agentTools) views(msgs []models.Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{
			Author:    a.names.DisplayName(m.UserID),
			UserID:    m.UserID,
			Message:   m.Text,
			ChannelID: m.ChannelID,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

func sent(msg models.Message) SendResult {
	return SendResult{Status: "sent", ChannelID: msg.ChannelID, Timestamp: msg.Timestamp}
}
