package agentslack

import "context"

// Channel is a provider channel.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is a message as delivered to an agent.
type Message struct {
	Author    string `json:"author"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	ChannelID string `json:"channel_id"`
	Timestamp string `json:"timestamp"`
}

// SendResult is returned by SendDM and SendBroadcast.
type SendResult struct {
	Status    string `json:"status"`
	ChannelID string `json:"channel_id"`
	Timestamp string `json:"timestamp"`
}

// Batch holds new messages from one channel.
type Batch struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	Messages    []Message `json:"messages"`
}

// Failure names a channel a sweep could not read.
type Failure struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Error       string `json:"error"`
}

// CheckResult is returned by CheckNewMessages.
type CheckResult struct {
	Batches  []Batch   `json:"batches"`
	Failures []Failure `json:"failures"`
}

// SendDM sends a direct message to another agent.
func (c *Client) SendDM(ctx context.Context, recipient, message string) (*SendResult, error) {
	var res SendResult
	err := c.CallTool(ctx, "send_dm", map[string]any{"recipient_name": recipient, "message": message}, &res)
	return &res, err
}

// SendBroadcast posts to a channel.
func (c *Client) SendBroadcast(ctx context.Context, channel, message string) (*SendResult, error) {
	var res SendResult
	err := c.CallTool(ctx, "send_broadcast", map[string]any{"channel_name": channel, "message": message}, &res)
	return &res, err
}

// ReadChannel returns the channel's messages not yet delivered to the agent.
func (c *Client) ReadChannel(ctx context.Context, channel string) ([]Message, error) {
	var res struct {
		Messages []Message `json:"messages"`
	}
	err := c.CallTool(ctx, "read_channel", map[string]any{"channel_name": channel}, &res)
	return res.Messages, err
}

// ReadDM returns new direct messages with sender.
func (c *Client) ReadDM(ctx context.Context, sender string) ([]Message, error) {
	var res struct {
		Messages []Message `json:"messages"`
	}
	err := c.CallTool(ctx, "read_dm", map[string]any{"sender_name": sender}, &res)
	return res.Messages, err
}

// CheckNewMessages sweeps every channel and DM the agent can see.
func (c *Client) CheckNewMessages(ctx context.Context) (*CheckResult, error) {
	var res CheckResult
	err := c.CallTool(ctx, "check_new_messages", nil, &res)
	return &res, err
}

// ListChannels lists the workspace channels.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var res struct {
		Channels []Channel `json:"channels"`
	}
	err := c.CallTool(ctx, "list_channels", nil, &res)
	return res.Channels, err
}

// CreateChannel creates a channel or returns the existing one.
func (c *Client) CreateChannel(ctx context.Context, name string) (*Channel, error) {
	var res Channel
	err := c.CallTool(ctx, "create_channel", map[string]any{"channel_name": name}, &res)
	return &res, err
}
