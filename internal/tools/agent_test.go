package tools

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/inbox"
	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/provider/memory"
	"github.com/eldtechnologies/agentslack/internal/registry"
)

func newAgentRouter(t *testing.T) (*Router, *registry.Registry, *memory.Workspace) {
	t.Helper()
	ws := memory.NewWorkspace()
	reg := registry.New(registry.Config{
		Directory: registry.Directory{
			Apps:   []models.SlackApp{{UserID: "UA"}, {UserID: "UB"}},
			Humans: []models.Human{{ID: "sam", UserID: "UH", Name: "Sam"}},
		},
		Dial:   ws.Dialer(),
		World:  ws.Client("UW"),
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return time.Unix(1718900000, 0) },
	})
	ws.AddConversation("general", false, "UW")

	ctx := context.Background()
	_, err := reg.RegisterAgent(ctx, "alice", "office")
	require.NoError(t, err)
	_, err = reg.RegisterAgent(ctx, "bob", "office")
	require.NoError(t, err)

	r := NewRouter()
	require.NoError(t, r.RegisterAgentTools(inbox.New(reg, inbox.Config{Logger: zerolog.Nop()}), reg))
	return r, reg, ws
}

func TestAgentToolDefinitions(t *testing.T) {
	r, _, _ := newAgentRouter(t)

	var names []string
	for _, tool := range r.Tools() {
		names = append(names, tool.Name)
		assert.Equal(t, "your_name", tool.Parameters[0].Name)
	}
	assert.Equal(t, []string{
		SendDM, SendBroadcast, ReadChannel, ReadDM, CheckNewMessages, ListChannels, CreateChannel,
	}, names)
}

func TestBroadcastThenReadChannel(t *testing.T) {
	r, _, _ := newAgentRouter(t)
	ctx := context.Background()

	res, err := r.Call(ctx, SendBroadcast, Args{"your_name": "bob", "channel_name": "general", "message": "standup at 10"})
	require.NoError(t, err)
	assert.Equal(t, "sent", res.(SendResult).Status)

	res, err = r.Call(ctx, ReadChannel, Args{"your_name": "alice", "channel_name": "general"})
	require.NoError(t, err)
	read := res.(ReadResult)
	require.Len(t, read.Messages, 1)
	assert.Equal(t, "bob", read.Messages[0].Author)
	assert.Equal(t, "standup at 10", read.Messages[0].Message)

	res, err = r.Call(ctx, ReadChannel, Args{"your_name": "alice", "channel_name": "general"})
	require.NoError(t, err)
	assert.Empty(t, res.(ReadResult).Messages)
}

func TestDMThenReadDMAndCheck(t *testing.T) {
	r, _, ws := newAgentRouter(t)
	ctx := context.Background()

	_, err := r.Call(ctx, SendDM, Args{"your_name": "alice", "recipient_name": "bob", "message": "ping"})
	require.NoError(t, err)

	res, err := r.Call(ctx, CheckNewMessages, Args{"your_name": "bob"})
	require.NoError(t, err)
	check := res.(CheckResult)
	require.Len(t, check.Batches, 1)
	assert.Equal(t, models.DMChannelName, check.Batches[0].ChannelName)
	assert.Equal(t, "alice", check.Batches[0].Messages[0].Author)

	res, err = r.Call(ctx, ReadDM, Args{"your_name": "bob", "sender_name": "alice"})
	require.NoError(t, err)
	assert.Empty(t, res.(ReadResult).Messages, "already delivered by the sweep")

	dmID := check.Batches[0].ChannelID
	require.NoError(t, ws.Inject(dmID, "UH", "hi both", time.Now()))
	res, err = r.Call(ctx, ReadDM, Args{"your_name": "bob", "sender_name": "alice"})
	require.NoError(t, err)
	msgs := res.(ReadResult).Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "Sam", msgs[0].Author)
}

func TestCreateAndListChannels(t *testing.T) {
	r, reg, _ := newAgentRouter(t)
	ctx := context.Background()

	res, err := r.Call(ctx, CreateChannel, Args{"your_name": "alice", "channel_name": "design"})
	require.NoError(t, err)
	created := res.(models.Channel)

	res, err = r.Call(ctx, CreateChannel, Args{"your_name": "bob", "channel_name": "design"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.(models.Channel).ID)

	ch, err := reg.Channel("design")
	require.NoError(t, err)
	assert.Equal(t, created.ID, ch.ID)

	res, err = r.Call(ctx, ListChannels, Args{"your_name": "alice"})
	require.NoError(t, err)
	assert.Contains(t, res.(ChannelsResult).Channels, created)
}

func TestAgentToolErrors(t *testing.T) {
	r, reg, _ := newAgentRouter(t)
	ctx := context.Background()
	before := reg.Stats()

	_, err := r.Call(ctx, "send_fax", Args{"your_name": "alice"})
	assert.Equal(t, apperr.ToolNotFound, apperr.KindOf(err))
	assert.Equal(t, before, reg.Stats())

	_, err = r.Call(ctx, SendDM, Args{"your_name": "alice", "recipient_name": "carol", "message": "x"})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = r.Call(ctx, SendBroadcast, Args{"your_name": "alice", "channel_name": "general"})
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	_, err = r.Call(ctx, ReadDM, Args{"your_name": "alice", "sender_name": "bob"})
	assert.Equal(t, apperr.DmNotFound, apperr.KindOf(err))
}
