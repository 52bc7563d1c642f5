package inbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/provider"
	"github.com/eldtechnologies/agentslack/internal/provider/memory"
	"github.com/eldtechnologies/agentslack/internal/registry"
)

var worldStart = time.Unix(1718900000, 0)

type fixture struct {
	ws  *memory.Workspace
	reg *registry.Registry
	eng *Engine
}

func setup(t *testing.T, humans ...models.Human) *fixture {
	t.Helper()
	ws := memory.NewWorkspace()
	var apps []models.SlackApp
	for i := 0; i < 4; i++ {
		apps = append(apps, models.SlackApp{UserID: fmt.Sprintf("UA%d", i)})
	}
	reg := registry.New(registry.Config{
		Directory: registry.Directory{Apps: apps, Humans: humans},
		Dial:      ws.Dialer(),
		World:     ws.Client("UW"),
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return worldStart },
	})
	return &fixture{
		ws:  ws,
		reg: reg,
		eng: New(reg, Config{HistoryLimit: 50, SweepConcurrency: 2, Logger: zerolog.Nop()}),
	}
}

// register adds agents to the "office" world; the n-th agent is bound to
// user UA<n>.
func (f *fixture) register(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := f.reg.RegisterAgent(context.Background(), name, "office")
		require.NoError(t, err)
	}
}

func texts(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestReadChannelFiltersEpochAndDedups(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	general := f.ws.AddConversation("general", false, "UW")
	require.NoError(t, f.ws.Inject(general, "UW", "before the world", worldStart.Add(-time.Hour)))
	f.register(t, "alice", "bob")

	_, err := f.eng.SendBroadcast(ctx, "bob", "general", "hi")
	require.NoError(t, err)

	got, err := f.eng.ReadChannel(ctx, "alice", "general")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, texts(got))
	assert.Equal(t, "UA1", got[0].UserID)

	got, err = f.eng.ReadChannel(ctx, "alice", "general")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.eng.SendBroadcast(ctx, "bob", "general", "again")
	require.NoError(t, err)
	got, err = f.eng.ReadChannel(ctx, "alice", "general")
	require.NoError(t, err)
	assert.Equal(t, []string{"again"}, texts(got))

	got, err = f.eng.ReadChannel(ctx, "bob", "general")
	require.NoError(t, err)
	assert.Empty(t, got, "authors never see their own posts as new")
}

func TestReadChannelErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	general := f.ws.AddConversation("general", false, "UW")
	f.register(t, "alice")

	_, err := f.eng.ReadChannel(ctx, "alice", "genral")
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Contains(t, err.Error(), "general")

	_, err = f.eng.ReadChannel(ctx, "nobody", "general")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	f.ws.Fail(provider.OpFetchHistory, general, errors.New("timeout"))
	got, err := f.eng.ReadChannel(ctx, "alice", "general")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSinceEpochDropsOldAndUnparseable(t *testing.T) {
	b := registry.Binding{StartEpoch: worldStart}
	raw := []provider.RawMessage{
		{Text: "new", User: "U1", TS: models.FormatTS(worldStart.Add(time.Second))},
		{Text: "garbage", User: "U1", TS: "not-a-ts"},
		{Text: "at epoch", User: "U1", TS: models.FormatTS(worldStart)},
		{Text: "old", User: "U1", TS: models.FormatTS(worldStart.Add(-time.Second))},
	}

	got := sinceEpoch(raw, "C1", b)
	assert.Equal(t, []string{"at epoch", "new"}, texts(got))
	assert.Equal(t, "C1", got[0].ChannelID)
}

func TestSendDMAndReadDM(t *testing.T) {
	f := setup(t, models.Human{ID: "sam", UserID: "UH1", Name: "Sam"})
	ctx := context.Background()
	f.register(t, "alice", "bob")

	sent, err := f.eng.SendDM(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	members, err := f.ws.Client("UA0").GetChannelMembers(ctx, sent.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, []string{"UA0", "UA1", "UH1"}, members)

	got, err := f.eng.ReadDM(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, []models.Message{sent}, got)

	got, err = f.eng.ReadDM(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.eng.ReadDM(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.eng.SendDM(ctx, "alice", "carol", "hi")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestResolveDMPicksExactMemberSet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pair := f.ws.AddConversation(models.DMChannelName, true, "UA0", "UA1")
	f.ws.AddConversation(models.DMChannelName, true, "UA0", "UA1", "UC")
	f.ws.AddConversation(models.DMChannelName, true, "UA0", "UA1", "UD", "UE")
	f.register(t, "alice", "bob")

	b, err := f.reg.Bind("alice")
	require.NoError(t, err)
	id, err := f.eng.ResolveDM(ctx, b, "UA1")
	require.NoError(t, err)
	assert.Equal(t, pair, id)
}

func TestResolveDMTieBreak(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.ws.AddConversation(models.DMChannelName, true, "UA0", "UA1")
	second := f.ws.AddConversation(models.DMChannelName, true, "UA0", "UA1")
	f.register(t, "alice", "bob")
	b, err := f.reg.Bind("alice")
	require.NoError(t, err)

	lowest := first
	if second < first {
		lowest = second
	}
	id, err := f.eng.ResolveDM(ctx, b, "UA1")
	require.NoError(t, err)
	assert.Equal(t, lowest, id, "without history the lowest id wins")

	require.NoError(t, f.ws.Inject(first, "UA1", "old", worldStart.Add(time.Minute)))
	require.NoError(t, f.ws.Inject(second, "UA1", "recent", worldStart.Add(time.Hour)))
	id, err = f.eng.ResolveDM(ctx, b, "UA1")
	require.NoError(t, err)
	assert.Equal(t, second, id, "the most recently active conversation wins")
}

func TestReadDMNotFound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.register(t, "alice", "bob")

	_, err := f.eng.ReadDM(ctx, "alice", "bob")
	assert.True(t, apperr.Is(err, apperr.DmNotFound))

	_, err = f.eng.ReadDM(ctx, "alice", "zed")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	f.ws.Fail(provider.OpListActiveConversations, "", errors.New("down"))
	_, err = f.eng.ReadDM(ctx, "alice", "bob")
	assert.True(t, apperr.Is(err, apperr.DmNotFound))
}

func TestSweepPartialFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	x := f.ws.AddConversation("x", false, "UW")
	y := f.ws.AddConversation("y", false, "UW")
	f.register(t, "alice", "bob")

	_, err := f.eng.SendBroadcast(ctx, "bob", "x", "in x")
	require.NoError(t, err)
	_, err = f.eng.SendBroadcast(ctx, "bob", "y", "in y")
	require.NoError(t, err)

	f.ws.Fail(provider.OpFetchHistory, x, errors.New("timeout"))
	res, err := f.eng.Sweep(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, y, res.Batches[0].ChannelID)
	assert.Equal(t, []string{"in y"}, texts(res.Batches[0].Messages))
	require.Len(t, res.Failures, 1)
	assert.Equal(t, x, res.Failures[0].ChannelID)

	f.ws.Heal()
	res, err = f.eng.Sweep(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, x, res.Batches[0].ChannelID)
	assert.Empty(t, res.Failures)
}

func TestSweepDeliversEachMessageOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.AddConversation("general", false, "UW")
	f.register(t, "alice", "bob")

	_, err := f.eng.SendBroadcast(ctx, "bob", "general", "one")
	require.NoError(t, err)
	dm, err := f.eng.SendDM(ctx, "bob", "alice", "psst")
	require.NoError(t, err)

	res, err := f.eng.Sweep(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)
	byChannel := map[string][]string{}
	for _, b := range res.Batches {
		byChannel[b.ChannelName] = texts(b.Messages)
	}
	assert.Equal(t, []string{"one"}, byChannel["general"])
	assert.Equal(t, []string{"psst"}, byChannel[models.DMChannelName])

	res, err = f.eng.Sweep(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, res.Batches)

	a, err := f.reg.Agent("alice")
	require.NoError(t, err)
	assert.True(t, a.HasChannelID(dm.ChannelID))

	got, err := f.eng.ReadChannel(ctx, "alice", "general")
	require.NoError(t, err)
	assert.Empty(t, got, "sweep and read_channel share one cursor")
}

func TestSweepSkipsChannelsWithoutMembership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.register(t, "alice", "bob")

	ch, err := f.eng.CreateChannel(ctx, "bob", "design")
	require.NoError(t, err)
	_, err = f.eng.SendBroadcast(ctx, "bob", "design", "private talk")
	require.NoError(t, err)

	res, err := f.eng.Sweep(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, res.Batches)
	_, visited := f.reg.Delivered("alice", ch.ID)
	assert.False(t, visited)
}

func TestSweepUnknownAgent(t *testing.T) {
	f := setup(t)
	_, err := f.eng.Sweep(context.Background(), "ghost")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCreateChannel(t *testing.T) {
	f := setup(t, models.Human{ID: "sam", UserID: "UH1"})
	ctx := context.Background()
	f.register(t, "alice")

	ch, err := f.eng.CreateChannel(ctx, "alice", "design")
	require.NoError(t, err)
	members, err := f.ws.Client("UA0").GetChannelMembers(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"UA0", "UH1"}, members)

	listed, err := f.eng.ListChannels(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, listed, ch)

	taken := f.ws.AddConversation("ops", false, "UW")
	ch, err = f.eng.CreateChannel(ctx, "alice", "ops")
	require.NoError(t, err)
	assert.Equal(t, taken, ch.ID)
	known, err := f.reg.AgentChannel("alice", "ops")
	require.NoError(t, err)
	assert.Equal(t, taken, known.ID)
	members, err = f.ws.Client("UW").GetChannelMembers(ctx, taken)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"UW", "UA0", "UH1"}, members)

	f.ws.Fail(provider.OpCreateChannel, "", errors.New("boom"))
	_, err = f.eng.CreateChannel(ctx, "alice", "later")
	assert.True(t, apperr.Is(err, apperr.ProviderUnavailable))
}

func TestCreateChannelAdoptionJoinsAgent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.register(t, "alice", "bob")

	mine, err := f.eng.CreateChannel(ctx, "alice", "design")
	require.NoError(t, err)
	_, err = f.eng.SendBroadcast(ctx, "alice", "design", "kickoff")
	require.NoError(t, err)

	adopted, err := f.eng.CreateChannel(ctx, "bob", "design")
	require.NoError(t, err)
	assert.Equal(t, mine.ID, adopted.ID)

	_, err = f.eng.SendBroadcast(ctx, "bob", "design", "joining")
	require.NoError(t, err)

	res, err := f.eng.Sweep(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, "design", res.Batches[0].ChannelName)
	assert.Equal(t, []string{"kickoff"}, texts(res.Batches[0].Messages))

	got, err := f.eng.ReadChannel(ctx, "alice", "design")
	require.NoError(t, err)
	assert.Equal(t, []string{"joining"}, texts(got))
}

func TestCreateChannelAdoptionJoinFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.register(t, "alice")
	taken := f.ws.AddConversation("ops", false, "UW")

	f.ws.Fail(provider.OpInviteUsers, taken, errors.New("not allowed"))
	_, err := f.eng.CreateChannel(ctx, "alice", "ops")
	assert.True(t, apperr.Is(err, apperr.ProviderUnavailable))
	_, err = f.reg.AgentChannel("alice", "ops")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCreateChannelSkipsExcludedHumans(t *testing.T) {
	f := setup(t,
		models.Human{ID: "sam", UserID: "UH1"},
		models.Human{ID: "kim", UserID: "UH2"},
	)
	ctx := context.Background()
	f.register(t, "alice", "bob")
	require.NoError(t, f.reg.ExcludeHuman("alice", "kim"))

	ch, err := f.eng.CreateChannel(ctx, "alice", "design")
	require.NoError(t, err)
	members, err := f.ws.Client("UA0").GetChannelMembers(ctx, ch.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"UA0", "UH1"}, members)

	// DMs keep the full roster so the member-count lookup still matches.
	sent, err := f.eng.SendDM(ctx, "alice", "bob", "note")
	require.NoError(t, err)
	members, err = f.ws.Client("UA0").GetChannelMembers(ctx, sent.ChannelID)
	require.NoError(t, err)
	assert.Contains(t, members, "UH2")
}

func TestListChannelsDegrades(t *testing.T) {
	f := setup(t)
	f.register(t, "alice")
	f.ws.Fail(provider.OpListChannels, "", errors.New("down"))

	chans, err := f.eng.ListChannels(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, chans)
}

func TestSendSurfacesProviderFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	general := f.ws.AddConversation("general", false, "UW")
	f.register(t, "alice", "bob")

	f.ws.Fail(provider.OpPostMessage, general, errors.New("rate limited"))
	_, err := f.eng.SendBroadcast(ctx, "alice", "general", "hi")
	assert.True(t, apperr.Is(err, apperr.ProviderUnavailable))

	_, err = f.eng.SendBroadcast(ctx, "alice", "nowhere", "hi")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	f.ws.Fail(provider.OpOpenDirectConversation, "", errors.New("down"))
	_, err = f.eng.SendDM(ctx, "alice", "bob", "hi")
	assert.True(t, apperr.Is(err, apperr.ProviderUnavailable))
}

func TestReadDMIgnoresHistoryBeforeEpoch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dm := f.ws.AddConversation(models.DMChannelName, true, "UA0", "UA1")
	require.NoError(t, f.ws.Inject(dm, "UA1", "from a past life", worldStart.Add(-time.Hour)))
	f.register(t, "alice", "bob")

	sent, err := f.eng.SendDM(ctx, "bob", "alice", "fresh")
	require.NoError(t, err)
	require.Equal(t, dm, sent.ChannelID)
	require.NoError(t, f.ws.Inject(dm, "UA1", "backdated", worldStart.Add(-time.Minute)))

	got, err := f.eng.ReadDM(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, texts(got))

	got, err = f.eng.ReadDM(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSweepIgnoresHistoryBeforeEpoch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	general := f.ws.AddConversation("general", false, "UW")
	dm := f.ws.AddConversation(models.DMChannelName, true, "UA0", "UA1")
	require.NoError(t, f.ws.Inject(general, "UW", "old news", worldStart.Add(-time.Hour)))
	require.NoError(t, f.ws.Inject(dm, "UA1", "old dm", worldStart.Add(-time.Hour)))
	f.register(t, "alice", "bob")

	_, err := f.eng.SendBroadcast(ctx, "bob", "general", "today")
	require.NoError(t, err)
	_, err = f.eng.SendDM(ctx, "bob", "alice", "today dm")
	require.NoError(t, err)

	res, err := f.eng.Sweep(ctx, "alice")
	require.NoError(t, err)
	byChannel := map[string][]string{}
	for _, b := range res.Batches {
		byChannel[b.ChannelID] = texts(b.Messages)
	}
	assert.Equal(t, map[string][]string{general: {"today"}, dm: {"today dm"}}, byChannel)

	require.NoError(t, f.ws.Inject(general, "UW", "backdated", worldStart.Add(-time.Minute)))
	res, err = f.eng.Sweep(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, res.Batches)
}

func TestEpochWithSubMicrosecondClock(t *testing.T) {
	ws := memory.NewWorkspace()
	general := ws.AddConversation("general", false, "UW")
	start := worldStart.Add(123456789 * time.Nanosecond)
	reg := registry.New(registry.Config{
		Directory: registry.Directory{Apps: []models.SlackApp{{UserID: "UA0"}}},
		Dial:      ws.Dialer(),
		World:     ws.Client("UW"),
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return start },
	})
	eng := New(reg, Config{HistoryLimit: 50, Logger: zerolog.Nop()})
	_, err := reg.RegisterAgent(context.Background(), "alice", "office")
	require.NoError(t, err)

	require.NoError(t, ws.Inject(general, "UW", "same microsecond", start))
	got, err := eng.ReadChannel(context.Background(), "alice", "general")
	require.NoError(t, err)
	assert.Equal(t, []string{"same microsecond"}, texts(got))
}
