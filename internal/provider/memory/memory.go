// Package memory is an in-process messaging workspace implementing
// provider.Client. It backs local runs without Slack credentials and the
// test suites, and can inject failures per operation and channel.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/provider"
)

type conversation struct {
	id       string
	name     string
	private  bool
	direct   bool
	members  map[string]struct{}
	messages []provider.RawMessage // oldest first
}

type faultKey struct {
	op        string
	channelID string // empty matches every channel
}

// Workspace holds the shared state seen by every client.
type Workspace struct {
	mu     sync.Mutex
	convs  map[string]*conversation
	order  []string // creation order, which is also listing order
	faults map[faultKey]error
	now    func() time.Time
	lastTS time.Time
}

// NewWorkspace returns an empty workspace using the wall clock.
func NewWorkspace() *Workspace {
	return &Workspace{
		convs:  make(map[string]*conversation),
		faults: make(map[faultKey]error),
		now:    time.Now,
	}
}

// SetClock replaces the clock used to stamp messages.
func (w *Workspace) SetClock(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
}

// Client returns a client acting as userID.
func (w *Workspace) Client(userID string) provider.Client {
	return &Client{ws: w, userID: userID}
}

// Dialer returns a provider.Dialer backed by this workspace.
func (w *Workspace) Dialer() provider.Dialer {
	return func(app models.SlackApp) provider.Client {
		return w.Client(app.UserID)
	}
}

// Fail makes every op on channelID (or on any channel when channelID is
// empty) return err until Heal is called.
func (w *Workspace) Fail(op, channelID string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.faults[faultKey{op: op, channelID: channelID}] = err
}

// Heal clears all injected failures.
func (w *Workspace) Heal() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.faults = make(map[faultKey]error)
}

// AddConversation creates a conversation with an explicit member set,
// bypassing the reuse that OpenDirectConversation performs.
func (w *Workspace) AddConversation(name string, direct bool, members ...string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addLocked(name, false, direct, members)
}

// Inject appends a message to a conversation with an explicit timestamp,
// for seeding history that predates a world.
func (w *Workspace) Inject(channelID, userID, text string, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	conv, ok := w.convs[channelID]
	if !ok {
		return fmt.Errorf("memory: unknown conversation %s", channelID)
	}
	msg := provider.RawMessage{Text: text, User: userID, TS: models.FormatTS(at)}
	conv.messages = append(conv.messages, msg)
	sort.SliceStable(conv.messages, func(i, j int) bool {
		a, _ := models.ParseTS(conv.messages[i].TS)
		b, _ := models.ParseTS(conv.messages[j].TS)
		return a.Before(b)
	})
	return nil
}

func (w *Workspace) addLocked(name string, private, direct bool, members []string) string {
	prefix := "C"
	if direct {
		prefix = "D"
		if len(members) > 2 {
			prefix = "G"
		}
	}
	id := prefix + ulid.Make().String()
	conv := &conversation{
		id:      id,
		name:    name,
		private: private,
		direct:  direct,
		members: make(map[string]struct{}, len(members)),
	}
	for _, m := range members {
		conv.members[m] = struct{}{}
	}
	w.convs[id] = conv
	w.order = append(w.order, id)
	return id
}

func (w *Workspace) faultLocked(op, channelID string) error {
	if err, ok := w.faults[faultKey{op: op, channelID: channelID}]; ok {
		return &provider.Error{Op: op, Code: "injected", Err: err}
	}
	if err, ok := w.faults[faultKey{op: op}]; ok {
		return &provider.Error{Op: op, Code: "injected", Err: err}
	}
	return nil
}

// nextTSLocked returns a strictly increasing timestamp.
func (w *Workspace) nextTSLocked() string {
	ts := w.now().Truncate(time.Microsecond)
	if !ts.After(w.lastTS) {
		ts = w.lastTS.Add(time.Microsecond)
	}
	w.lastTS = ts
	return models.FormatTS(ts)
}

func (w *Workspace) conversationLocked(op, channelID string) (*conversation, error) {
	conv, ok := w.convs[channelID]
	if !ok {
		return nil, &provider.Error{Op: op, Code: "channel_not_found", Err: fmt.Errorf("no conversation %s", channelID)}
	}
	return conv, nil
}

// Client acts as a single user of a Workspace.
type Client struct {
	ws     *Workspace
	userID string
}

// UserID returns the user this client acts as.
func (c *Client) UserID() string { return c.userID }

// ListChannels lists public channels plus private ones the user belongs to.
func (c *Client) ListChannels(ctx context.Context) ([]models.Channel, error) {
	w := c.ws
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.faultLocked(provider.OpListChannels, ""); err != nil {
		return nil, err
	}
	var out []models.Channel
	for _, id := range w.order {
		conv := w.convs[id]
		if conv.direct {
			continue
		}
		if _, member := conv.members[c.userID]; conv.private && !member {
			continue
		}
		out = append(out, models.Channel{ID: conv.id, Name: conv.name})
	}
	return out, nil
}

// CreateChannel creates a channel with the caller as its only member.
func (c *Client) CreateChannel(ctx context.Context, name string, private bool) (string, error) {
	w := c.ws
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.faultLocked(provider.OpCreateChannel, ""); err != nil {
		return "", err
	}
	for _, conv := range w.convs {
		if !conv.direct && conv.name == name {
			return "", &provider.Error{Op: provider.OpCreateChannel, Code: "name_taken", Err: provider.ErrNameTaken}
		}
	}
	return w.addLocked(name, private, false, []string{c.userID}), nil
}

// InviteUsers adds users to an existing channel.
func (c *Client) InviteUsers(ctx context.Context, channelID string, userIDs []string) error {
	w := c.ws
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.faultLocked(provider.OpInviteUsers, channelID); err != nil {
		return err
	}
	conv, err := w.conversationLocked(provider.OpInviteUsers, channelID)
	if err != nil {
		return err
	}
	for _, u := range userIDs {
		conv.members[u] = struct{}{}
	}
	return nil
}

// OpenDirectConversation returns the conversation whose members are
// exactly the caller plus userIDs, creating it when needed.
func (c *Client) OpenDirectConversation(ctx context.Context, userIDs []string) (string, error) {
	w := c.ws
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.faultLocked(provider.OpOpenDirectConversation, ""); err != nil {
		return "", err
	}
	want := map[string]struct{}{c.userID: {}}
	for _, u := range userIDs {
		want[u] = struct{}{}
	}
	for _, id := range w.order {
		conv := w.convs[id]
		if conv.direct && sameMembers(conv.members, want) {
			return conv.id, nil
		}
	}
	members := make([]string, 0, len(want))
	for u := range want {
		members = append(members, u)
	}
	sort.Strings(members)
	return w.addLocked(models.DMChannelName, true, true, members), nil
}

// PostMessage appends a message; the caller must be a member.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (string, error) {
	w := c.ws
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.faultLocked(provider.OpPostMessage, channelID); err != nil {
		return "", err
	}
	conv, err := w.conversationLocked(provider.OpPostMessage, channelID)
	if err != nil {
		return "", err
	}
	if _, ok := conv.members[c.userID]; !ok {
		return "", &provider.Error{Op: provider.OpPostMessage, Code: "not_in_channel", Err: fmt.Errorf("%s not in %s", c.userID, channelID)}
	}
	ts := w.nextTSLocked()
	conv.messages = append(conv.messages, provider.RawMessage{Text: text, User: c.userID, TS: ts})
	return ts, nil
}

// FetchHistory returns up to limit messages, newest first.
func (c *Client) FetchHistory(ctx context.Context, channelID string, limit int) ([]provider.RawMessage, error) {
	w := c.ws
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.faultLocked(provider.OpFetchHistory, channelID); err != nil {
		return nil, err
	}
	conv, err := w.conversationLocked(provider.OpFetchHistory, channelID)
	if err != nil {
		return nil, err
	}
	if _, ok := conv.members[c.userID]; !ok && (conv.private || conv.direct) {
		return nil, &provider.Error{Op: provider.OpFetchHistory, Code: "not_in_channel", Err: fmt.Errorf("%s not in %s", c.userID, channelID)}
	}
	out := make([]provider.RawMessage, 0, len(conv.messages))
	for i := len(conv.messages) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, conv.messages[i])
	}
	return out, nil
}

// ListActiveConversations lists the direct conversations the caller is in.
func (c *Client) ListActiveConversations(ctx context.Context) ([]string, error) {
	w := c.ws
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.faultLocked(provider.OpListActiveConversations, ""); err != nil {
		return nil, err
	}
	var ids []string
	for _, id := range w.order {
		conv := w.convs[id]
		if _, ok := conv.members[c.userID]; ok && conv.direct {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetChannelMembers returns the members of a conversation, sorted.
func (c *Client) GetChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	w := c.ws
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.faultLocked(provider.OpGetChannelMembers, channelID); err != nil {
		return nil, err
	}
	conv, err := w.conversationLocked(provider.OpGetChannelMembers, channelID)
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(conv.members))
	for u := range conv.members {
		members = append(members, u)
	}
	sort.Strings(members)
	return members, nil
}

func sameMembers(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
