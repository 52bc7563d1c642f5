// Package registry owns every piece of coordination state: worlds, agents,
// channels, the human roster, identity bindings and per-agent read cursors.
//
// A single mutex guards the in-memory maps. Provider calls made on behalf of
// a registration run outside the lock and their results are committed in
// one critical section, so a failed registration leaves no trace.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eldtechnologies/agentslack/internal/apperr"
	"github.com/eldtechnologies/agentslack/internal/metrics"
	"github.com/eldtechnologies/agentslack/internal/models"
	"github.com/eldtechnologies/agentslack/internal/provider"
)

const inviteConcurrency = 4

// Directory is the pre-provisioned reference data the registry starts from.
type Directory struct {
	Apps   []models.SlackApp
	Humans []models.Human
}

// Config holds the registry's collaborators.
type Config struct {
	Directory Directory
	// Dial builds the client for an agent's identity binding.
	Dial provider.Dialer
	// World is the privileged identity used to import channels and invite
	// agents. May be nil, in which case agents invite themselves.
	World  provider.Client
	Logger zerolog.Logger
	Now    func() time.Time
}

// Binding is everything the inbox engine needs to act for one agent.
type Binding struct {
	Agent      models.Agent
	Client     provider.Client
	StartEpoch time.Time
	Humans     int
	Roster     []string // provider ids always included in conversations
	// Invitees is Roster minus the humans excluded for this agent.
	Invitees []string
	// Inviter adds users to existing channels: the world identity when
	// configured, else the agent's own client.
	Inviter provider.Client
}

// Stats summarizes registry contents.
type Stats struct {
	Worlds   int `json:"worlds"`
	Agents   int `json:"agents"`
	Channels int `json:"channels"`
	Humans   int `json:"humans"`
	PoolSize int `json:"pool_size"`
	PoolFree int `json:"pool_free"`
}

type cursor struct {
	seen map[models.Message]struct{}
	log  []models.Message
}

type agentRecord struct {
	models.Agent
	cursors map[string]*cursor
}

// Registry is the process-wide coordination state.
type Registry struct {
	mu       sync.Mutex
	worlds   map[string]*models.World
	agents   map[string]*agentRecord
	channels map[string]models.Channel  // broadcast name -> channel
	byUser   map[string]string          // provider user id -> agent name
	clients  map[string]provider.Client // provider user id -> client
	pool     []models.SlackApp
	humans   map[string]models.Human // human id -> human

	world  provider.Client
	dial   provider.Dialer
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a registry over the given directory.
func New(cfg Config) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	r := &Registry{
		worlds:   make(map[string]*models.World),
		agents:   make(map[string]*agentRecord),
		channels: make(map[string]models.Channel),
		byUser:   make(map[string]string),
		clients:  make(map[string]provider.Client),
		pool:     append([]models.SlackApp(nil), cfg.Directory.Apps...),
		humans:   make(map[string]models.Human, len(cfg.Directory.Humans)),
		world:    cfg.World,
		dial:     cfg.Dial,
		logger:   cfg.Logger.With().Str("component", "registry").Logger(),
		now:      cfg.Now,
	}
	for _, h := range cfg.Directory.Humans {
		if h.ID == "" {
			h.ID = h.UserID
		}
		r.humans[h.ID] = h
	}
	metrics.PoolFree.Set(float64(len(r.pool)))
	return r
}

// RegisterWorld creates a world anchored at the current time and imports the
// provider's current channels into it. Import failures leave the world with
// no channels rather than failing the registration.
func (r *Registry) RegisterWorld(ctx context.Context, name string) (models.World, error) {
	if name == "" {
		return models.World{}, apperr.New(apperr.InvalidArgument, "world name is required")
	}

	r.mu.Lock()
	_, exists := r.worlds[name]
	r.mu.Unlock()
	if exists {
		return models.World{}, apperr.New(apperr.AlreadyExists, "world %q already exists", name)
	}

	imported := r.importChannels(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.worlds[name]; exists {
		return models.World{}, apperr.New(apperr.AlreadyExists, "world %q already exists", name)
	}
	w := r.newWorldLocked(name, imported)
	return copyWorld(w), nil
}

// RegisterAgent binds agentName to the next free identity in worldName,
// creating the world if it does not exist yet. The agent is then invited,
// best-effort, into every channel of the world.
func (r *Registry) RegisterAgent(ctx context.Context, agentName, worldName string) (models.Agent, error) {
	if agentName == "" || worldName == "" {
		return models.Agent{}, apperr.New(apperr.InvalidArgument, "agent name and world name are required")
	}

	r.mu.Lock()
	if err := r.checkAgentFreeLocked(agentName); err != nil {
		r.mu.Unlock()
		return models.Agent{}, err
	}
	_, worldExists := r.worlds[worldName]
	r.mu.Unlock()

	var imported []models.Channel
	if !worldExists {
		imported = r.importChannels(ctx)
	}

	r.mu.Lock()
	if err := r.checkAgentFreeLocked(agentName); err != nil {
		r.mu.Unlock()
		return models.Agent{}, err
	}
	app, _ := r.freeAppLocked()

	w, ok := r.worlds[worldName]
	if !ok {
		w = r.newWorldLocked(worldName, imported)
	}

	client := r.dial(app)
	rec := &agentRecord{
		Agent: models.Agent{
			Name:           agentName,
			WorldName:      worldName,
			App:            app,
			Channels:       append([]models.Channel(nil), w.Channels...),
			ExcludedHumans: make(map[string]struct{}),
		},
		cursors: make(map[string]*cursor),
	}
	r.agents[agentName] = rec
	r.byUser[app.UserID] = agentName
	r.clients[app.UserID] = client
	w.Agents[agentName] = struct{}{}

	snapshot := copyAgent(&rec.Agent)
	roster := rosterLocked(w)
	inviter := r.world
	r.mu.Unlock()

	metrics.AgentsRegistered.Inc()
	r.updatePoolGauge()

	if inviter == nil {
		inviter = client
	}
	r.inviteAll(ctx, inviter, snapshot.Channels, append([]string{app.UserID}, roster...))

	r.logger.Info().
		Str("agent", agentName).
		Str("world", worldName).
		Str("user_id", app.UserID).
		Int("channels", len(snapshot.Channels)).
		Msg("agent registered")

	return snapshot, nil
}

func (r *Registry) checkAgentFreeLocked(agentName string) error {
	if _, exists := r.agents[agentName]; exists {
		return apperr.New(apperr.AlreadyExists, "agent %q already exists", agentName)
	}
	if _, ok := r.freeAppLocked(); !ok {
		return apperr.New(apperr.PoolExhausted, "no identity bindings left (pool size %d)", len(r.pool))
	}
	return nil
}

func (r *Registry) freeAppLocked() (models.SlackApp, bool) {
	for _, app := range r.pool {
		if _, taken := r.byUser[app.UserID]; !taken {
			return app, true
		}
	}
	return models.SlackApp{}, false
}

func (r *Registry) newWorldLocked(name string, imported []models.Channel) *models.World {
	w := &models.World{
		Name:          name,
		StartEpoch:    r.now().Truncate(time.Microsecond),
		Agents:        make(map[string]struct{}),
		Humans:        make(map[string]struct{}, len(r.humans)),
		HumanMappings: make(map[string]string, len(r.humans)),
		Channels:      models.MergeChannels(nil, imported...),
	}
	for id, h := range r.humans {
		w.Humans[id] = struct{}{}
		w.HumanMappings[id] = h.UserID
	}
	for _, ch := range w.Channels {
		r.indexChannelLocked(ch)
	}
	r.worlds[name] = w

	metrics.WorldsRegistered.Inc()
	r.logger.Info().
		Str("world", name).
		Time("start_epoch", w.StartEpoch).
		Int("channels", len(w.Channels)).
		Msg("world registered")
	return w
}

func (r *Registry) importChannels(ctx context.Context) []models.Channel {
	if r.world == nil {
		return nil
	}
	chans, err := r.world.ListChannels(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("channel import failed, starting world without channels")
		return nil
	}
	return chans
}

func (r *Registry) inviteAll(ctx context.Context, inviter provider.Client, chans []models.Channel, users []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inviteConcurrency)
	for _, ch := range chans {
		ch := ch
		g.Go(func() error {
			if err := inviter.InviteUsers(gctx, ch.ID, users); err != nil {
				r.logger.Warn().
					Err(err).
					Str("channel_id", ch.ID).
					Str("channel", ch.Name).
					Msg("invite failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Registry) updatePoolGauge() {
	r.mu.Lock()
	free := len(r.pool) - len(r.byUser)
	r.mu.Unlock()
	metrics.PoolFree.Set(float64(free))
}

// Agent returns a snapshot of the named agent.
func (r *Registry) Agent(name string) (models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[name]
	if !ok {
		return models.Agent{}, r.agentNotFoundLocked(name)
	}
	return copyAgent(&rec.Agent), nil
}

// World returns a snapshot of the named world.
func (r *Registry) World(name string) (models.World, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.worlds[name]
	if !ok {
		return models.World{}, notFound("world", name, keys(r.worlds))
	}
	return copyWorld(w), nil
}

// Channel looks a broadcast channel up by name across all worlds.
func (r *Registry) Channel(name string) (models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[name]
	if !ok {
		return models.Channel{}, notFound("channel", name, keys(r.channels))
	}
	return ch, nil
}

// ChannelByID looks a channel up by provider id.
func (r *Registry) ChannelByID(id string) (models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var known []string
	for _, w := range r.worlds {
		for _, ch := range w.Channels {
			if ch.ID == id {
				return ch, nil
			}
			known = append(known, ch.ID)
		}
	}
	return models.Channel{}, notFound("channel id", id, known)
}

// AgentChannel finds a channel by name in the agent's visible set.
func (r *Registry) AgentChannel(agentName, channelName string) (models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return models.Channel{}, r.agentNotFoundLocked(agentName)
	}
	var known []string
	for _, ch := range rec.Channels {
		if ch.IsDM() {
			continue
		}
		if ch.Name == channelName {
			return ch, nil
		}
		known = append(known, ch.Name)
	}
	return models.Channel{}, notFound("channel", channelName, known)
}

// Bind resolves an agent to its client and world context.
func (r *Registry) Bind(agentName string) (Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return Binding{}, r.agentNotFoundLocked(agentName)
	}
	w := r.worlds[rec.WorldName]
	client := r.clients[rec.App.UserID]
	inviter := r.world
	if inviter == nil {
		inviter = client
	}
	return Binding{
		Agent:      copyAgent(&rec.Agent),
		Client:     client,
		StartEpoch: w.StartEpoch,
		Humans:     len(w.Humans),
		Roster:     rosterLocked(w),
		Invitees:   inviteesLocked(w, rec),
		Inviter:    inviter,
	}, nil
}

// RegisterChannel records a channel created out of band by agentName in the
// global name index, the agent's world and the agent's visible set.
func (r *Registry) RegisterChannel(agentName, channelID, channelName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return r.agentNotFoundLocked(agentName)
	}
	ch := models.Channel{ID: channelID, Name: channelName}
	r.indexChannelLocked(ch)
	w := r.worlds[rec.WorldName]
	w.Channels = models.MergeChannels(w.Channels, ch)
	rec.Channels = models.MergeChannels(rec.Channels, ch)
	return nil
}

// SetVisibleChannels merges a refreshed channel list into the agent's
// visible set and its world.
func (r *Registry) SetVisibleChannels(agentName string, chans []models.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return r.agentNotFoundLocked(agentName)
	}
	rec.Channels = models.MergeChannels(rec.Channels, chans...)
	w := r.worlds[rec.WorldName]
	w.Channels = models.MergeChannels(w.Channels, chans...)
	for _, ch := range chans {
		r.indexChannelLocked(ch)
	}
	return nil
}

func (r *Registry) indexChannelLocked(ch models.Channel) {
	if ch.IsDM() || ch.Name == "" {
		return
	}
	if _, exists := r.channels[ch.Name]; !exists {
		r.channels[ch.Name] = ch
	}
}

// Deliver marks fetched messages as delivered to agentName on channelID and
// returns those that were not delivered before, oldest first. The check and
// the append happen atomically, so concurrent callers never both receive the
// same message. The channel's cursor exists after the call even when nothing
// was new.
func (r *Registry) Deliver(agentName, channelID string, fetched []models.Message) ([]models.Message, error) {
	sorted := append([]models.Message(nil), fetched...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return nil, r.agentNotFoundLocked(agentName)
	}
	cur, ok := rec.cursors[channelID]
	if !ok {
		cur = &cursor{seen: make(map[models.Message]struct{})}
		rec.cursors[channelID] = cur
	}
	var fresh []models.Message
	for _, m := range sorted {
		if _, seen := cur.seen[m]; seen {
			continue
		}
		cur.seen[m] = struct{}{}
		cur.log = append(cur.log, m)
		fresh = append(fresh, m)
	}
	return fresh, nil
}

// Delivered returns what has been delivered to agentName on channelID, in
// delivery order. The second result is false when the channel was never
// visited.
func (r *Registry) Delivered(agentName, channelID string) ([]models.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return nil, false
	}
	cur, ok := rec.cursors[channelID]
	if !ok {
		return nil, false
	}
	return append([]models.Message(nil), cur.log...), true
}

// CursorSizes reports, per channel id, how many messages the agent has been
// delivered.
func (r *Registry) CursorSizes(agentName string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentName]
	if !ok {
		return nil, r.agentNotFoundLocked(agentName)
	}
	sizes := make(map[string]int, len(rec.cursors))
	for id, cur := range rec.cursors {
		sizes[id] = len(cur.log)
	}
	return sizes, nil
}

// AgentByUserID resolves a provider user id to the agent bound to it.
func (r *Registry) AgentByUserID(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.byUser[userID]
	return name, ok
}

// Stats returns current counts.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Worlds:   len(r.worlds),
		Agents:   len(r.agents),
		Channels: len(r.channels),
		Humans:   len(r.humans),
		PoolSize: len(r.pool),
		PoolFree: len(r.pool) - len(r.byUser),
	}
}

// AgentNames returns all agent names, sorted.
func (r *Registry) AgentNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return keys(r.agents)
}

// WorldNames returns all world names, sorted.
func (r *Registry) WorldNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return keys(r.worlds)
}

func (r *Registry) agentNotFoundLocked(name string) error {
	return notFound("agent", name, keys(r.agents))
}

func rosterLocked(w *models.World) []string {
	roster := make([]string, 0, len(w.HumanMappings))
	for id := range w.Humans {
		if uid := w.HumanMappings[id]; uid != "" {
			roster = append(roster, uid)
		}
	}
	sort.Strings(roster)
	return roster
}

func inviteesLocked(w *models.World, rec *agentRecord) []string {
	out := make([]string, 0, len(w.Humans))
	for id := range w.Humans {
		if _, excluded := rec.ExcludedHumans[id]; excluded {
			continue
		}
		if uid := w.HumanMappings[id]; uid != "" {
			out = append(out, uid)
		}
	}
	sort.Strings(out)
	return out
}

func copyAgent(a *models.Agent) models.Agent {
	out := *a
	out.Channels = append([]models.Channel(nil), a.Channels...)
	out.ExcludedHumans = make(map[string]struct{}, len(a.ExcludedHumans))
	for h := range a.ExcludedHumans {
		out.ExcludedHumans[h] = struct{}{}
	}
	return out
}

func copyWorld(w *models.World) models.World {
	out := *w
	out.Channels = append([]models.Channel(nil), w.Channels...)
	out.Agents = make(map[string]struct{}, len(w.Agents))
	for a := range w.Agents {
		out.Agents[a] = struct{}{}
	}
	out.Humans = make(map[string]struct{}, len(w.Humans))
	for h := range w.Humans {
		out.Humans[h] = struct{}{}
	}
	out.HumanMappings = make(map[string]string, len(w.HumanMappings))
	for k, v := range w.HumanMappings {
		out.HumanMappings[k] = v
	}
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
