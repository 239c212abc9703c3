// Package game is the authoritative arbitration core: room and player
// state, the tag-validation algorithm, and snapshot publication.
//
// Locking discipline: the World's RWMutex guards the registries (player and
// room maps, the code index) and player identity fields; each room carries
// its own mutex serializing every read-validate-mutate sequence scoped to
// that room. Different rooms never contend. A room mutex may be held while
// taking the registry mutex, never the other way around, and no mutex is
// held across subscriber channel sends.
package game

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/proxtag/internal/domain/model"
	"github.com/okian/proxtag/internal/domain/signal"
	"github.com/okian/proxtag/internal/domain/telemetry"
	"github.com/okian/proxtag/pkg/logger"
	"github.com/okian/proxtag/pkg/metrics"
)

// Default world configuration constants.
const (
	defaultCodeLength   = 6
	defaultCodeRetries  = 16
	defaultEventLogSize = 64

	defaultSignalThresholdDBM = -65.0
	defaultCooldown           = 3 * time.Second
	defaultImmunity           = 5 * time.Second
)

// codeAlphabet omits ambiguous characters (I, O, 0, 1).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Defaults are the global tunables applied when a room carries no override.
type Defaults struct {
	SignalThresholdDBM float64
	Cooldown           time.Duration
	Immunity           time.Duration
}

// roomState pairs a room record with its roster, event log, and the mutex
// that serializes all operations touching it.
type roomState struct {
	mu      sync.Mutex
	room    *model.Room
	members map[string]struct{}
	events  *eventLog
}

// World owns the authoritative copies of all rooms and players. It is an
// explicit store instance created at startup; components receive it as a
// dependency.
type World struct {
	mu      sync.RWMutex
	players map[string]*model.Player
	byToken map[string]string
	rooms   map[string]*roomState
	byCode  map[string]string

	defaults     Defaults
	estimator    *signal.Estimator
	telemetry    telemetry.Store
	broadcaster  *Broadcaster
	codeLength   int
	codeRetries  int
	eventLogSize int

	now func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	log logger.Logger
}

// Option applies a configuration option to the World.
type Option func(*World)

// WithDefaults sets the global threshold, cooldown, and immunity defaults.
func WithDefaults(d Defaults) Option {
	return func(w *World) {
		if d.SignalThresholdDBM != 0 {
			w.defaults.SignalThresholdDBM = d.SignalThresholdDBM
		}
		if d.Cooldown > 0 {
			w.defaults.Cooldown = d.Cooldown
		}
		if d.Immunity > 0 {
			w.defaults.Immunity = d.Immunity
		}
	}
}

// WithEstimator sets the distance estimator.
func WithEstimator(e *signal.Estimator) Option {
	return func(w *World) {
		if e != nil {
			w.estimator = e
		}
	}
}

// WithTelemetry sets the telemetry store consulted during validation.
func WithTelemetry(s telemetry.Store) Option {
	return func(w *World) {
		if s != nil {
			w.telemetry = s
		}
	}
}

// WithBroadcaster sets the snapshot broadcaster.
func WithBroadcaster(b *Broadcaster) Option {
	return func(w *World) {
		if b != nil {
			w.broadcaster = b
		}
	}
}

// WithCodeLength sets the generated room code length.
func WithCodeLength(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.codeLength = n
		}
	}
}

// WithCodeRetries bounds collision retries during code generation.
func WithCodeRetries(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.codeRetries = n
		}
	}
}

// WithEventLogSize bounds each room's recent-event ring.
func WithEventLogSize(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.eventLogSize = n
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(w *World) {
		if now != nil {
			w.now = now
		}
	}
}

// WithRand overrides the randomness source. Used by tests.
func WithRand(r *rand.Rand) Option {
	return func(w *World) {
		if r != nil {
			w.rng = r
		}
	}
}

// WithLogger sets the world's logger.
func WithLogger(l logger.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWorld creates the authoritative state store with configuration options.
func NewWorld(opts ...Option) *World {
	w := &World{
		players: make(map[string]*model.Player),
		byToken: make(map[string]string),
		rooms:   make(map[string]*roomState),
		byCode:  make(map[string]string),
		defaults: Defaults{
			SignalThresholdDBM: defaultSignalThresholdDBM,
			Cooldown:           defaultCooldown,
			Immunity:           defaultImmunity,
		},
		estimator:    signal.NewEstimator(),
		telemetry:    telemetry.NewStore(),
		broadcaster:  NewBroadcaster(),
		codeLength:   defaultCodeLength,
		codeRetries:  defaultCodeRetries,
		eventLogSize: defaultEventLogSize,
		now:          time.Now,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // game randomness, not security
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Broadcaster exposes the snapshot broadcaster for the transport layer.
func (w *World) Broadcaster() *Broadcaster {
	return w.broadcaster
}

// Telemetry exposes the telemetry store for the ingestion pipeline.
func (w *World) Telemetry() telemetry.Store {
	return w.telemetry
}

// CreatePlayer registers a player on first contact from a device identity.
// Repeat contact from the same token returns the existing player and
// refreshes its presence.
func (w *World) CreatePlayer(ctx context.Context, deviceToken, name string) (*model.Player, error) {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if id, ok := w.byToken[deviceToken]; ok {
		p := w.players[id]
		if name != "" {
			p.Name = name
		}
		p.Online = true
		p.LastSeenAt = now
		return clonePlayer(p), nil
	}

	p := &model.Player{
		ID:          uuid.New().String(),
		DeviceToken: deviceToken,
		Name:        name,
		Online:      true,
		LastSeenAt:  now,
		CreatedAt:   now,
	}
	w.players[p.ID] = p
	w.byToken[deviceToken] = p.ID
	metrics.UpdateOnlinePlayers(w.onlineCountLocked())
	return clonePlayer(p), nil
}

// Player returns a copy of the player record.
func (w *World) Player(ctx context.Context, playerID string) (*model.Player, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return clonePlayer(p), nil
}

// CreateRoom creates a room in lobby status with a freshly generated code
// unique among currently existing rooms.
func (w *World) CreateRoom(ctx context.Context, creatorID, name string, settings model.RoomSettings) (*model.Room, error) {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.players[creatorID]; !ok {
		return nil, ErrPlayerNotFound
	}

	code, err := w.generateCodeLocked()
	if err != nil {
		return nil, err
	}

	room := &model.Room{
		ID:        uuid.New().String(),
		Code:      code,
		Name:      name,
		Status:    model.StatusLobby,
		Settings:  settings,
		CreatedAt: now,
	}
	w.rooms[room.ID] = &roomState{
		room:    room,
		members: make(map[string]struct{}),
		events:  newEventLog(w.eventLogSize),
	}
	w.byCode[code] = room.ID

	metrics.RecordRoomCreated()
	metrics.UpdateActiveRooms(len(w.rooms))
	if w.log != nil {
		w.log.Info(ctx, "room created",
			logger.String("roomID", room.ID),
			logger.String("code", code),
		)
	}
	out := *room
	return &out, nil
}

// generateCodeLocked draws codes until one misses the code index. Exhausting
// the retry budget means the code space is effectively full, which is a
// capacity fault rather than a user error.
func (w *World) generateCodeLocked() (string, error) {
	for attempt := 0; attempt < w.codeRetries; attempt++ {
		code := w.randomCode()
		if _, taken := w.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (w *World) randomCode() string {
	w.rngMu.Lock()
	defer w.rngMu.Unlock()
	b := make([]byte, w.codeLength)
	for i := range b {
		b[i] = codeAlphabet[w.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// JoinRoom attaches a player to the room matching code. Joining implicitly
// leaves any previous room first. Game counters reset on attach.
//
// The attachment commits under both the room lock and the registry write
// lock: the player's current room and the room's registry entry are
// re-checked there, so a join racing another join or a delete either retries
// or fails instead of leaving the player on two rosters.
func (w *World) JoinRoom(ctx context.Context, playerID, code string) (*model.Room, error) {
	for {
		w.mu.RLock()
		p, ok := w.players[playerID]
		if !ok {
			w.mu.RUnlock()
			return nil, ErrPlayerNotFound
		}
		prevRoom := p.RoomID
		roomID, ok := w.byCode[code]
		if !ok {
			w.mu.RUnlock()
			return nil, ErrRoomNotFound
		}
		rs := w.rooms[roomID]
		w.mu.RUnlock()

		if prevRoom != "" && prevRoom != roomID {
			if err := w.LeaveRoom(ctx, playerID); err != nil {
				return nil, err
			}
		}

		rs.mu.Lock()
		if rs.room.Status != model.StatusLobby {
			rs.mu.Unlock()
			return nil, ErrRoomNotJoinable
		}

		w.mu.Lock()
		if _, live := w.rooms[roomID]; !live {
			// Deleted between the lookup and the commit.
			w.mu.Unlock()
			rs.mu.Unlock()
			return nil, ErrRoomNotFound
		}
		if p.RoomID != "" && p.RoomID != roomID {
			// A concurrent join attached the player elsewhere after the
			// implicit leave above; leave again and retry.
			w.mu.Unlock()
			rs.mu.Unlock()
			continue
		}
		resetGameState(p)
		rs.members[playerID] = struct{}{}
		p.RoomID = roomID
		w.mu.Unlock()

		snap := w.buildSnapshotLocked(rs)
		out := *rs.room
		rs.mu.Unlock()

		w.broadcaster.Publish(ctx, snap)
		return &out, nil
	}
}

// StartGame transitions lobby -> running, resets every member's per-game
// counters, and assigns the initial it-holder uniformly at random. This is
// the only place an initial it-holder is chosen.
func (w *World) StartGame(ctx context.Context, roomID string) (*model.RoomSnapshot, error) {
	rs, err := w.roomState(roomID)
	if err != nil {
		return nil, err
	}
	now := w.now()

	rs.mu.Lock()
	if rs.room.Status != model.StatusLobby {
		rs.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if len(rs.members) < 2 {
		rs.mu.Unlock()
		return nil, ErrInsufficientPlayers
	}

	ids := make([]string, 0, len(rs.members))
	for id := range rs.members {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic order before the random draw

	w.mu.RLock()
	for _, id := range ids {
		resetGameState(w.players[id])
	}
	w.mu.RUnlock()

	w.rngMu.Lock()
	itID := ids[w.rng.Intn(len(ids))]
	w.rngMu.Unlock()

	w.mu.RLock()
	w.players[itID].IsIt = true
	w.mu.RUnlock()

	rs.room.ItPlayerID = itID
	rs.room.Status = model.StatusRunning
	rs.room.StartedAt = now

	snap := w.buildSnapshotLocked(rs)
	rs.mu.Unlock()

	metrics.RecordGameStarted()
	if w.log != nil {
		w.log.Info(ctx, "game started",
			logger.String("roomID", roomID),
			logger.String("itPlayerID", itID),
			logger.Int("players", len(ids)),
		)
	}
	w.broadcaster.Publish(ctx, snap)
	return &snap, nil
}

// FinishGame transitions running -> finished and clears all is-it flags so
// no player holds the role outside a running game.
func (w *World) FinishGame(ctx context.Context, roomID string) (*model.RoomSnapshot, error) {
	rs, err := w.roomState(roomID)
	if err != nil {
		return nil, err
	}

	rs.mu.Lock()
	if rs.room.Status != model.StatusRunning {
		rs.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	snap := w.finishLocked(rs)
	rs.mu.Unlock()

	if w.log != nil {
		w.log.Info(ctx, "game finished", logger.String("roomID", roomID))
	}
	w.broadcaster.Publish(ctx, snap)
	return &snap, nil
}

// finishLocked finalizes a running room. Caller holds rs.mu.
func (w *World) finishLocked(rs *roomState) model.RoomSnapshot {
	rs.room.Status = model.StatusFinished
	rs.room.FinishedAt = w.now()
	rs.room.ItPlayerID = ""

	w.mu.RLock()
	for id := range rs.members {
		w.players[id].IsIt = false
	}
	w.mu.RUnlock()

	metrics.RecordGameFinished()
	return w.buildSnapshotLocked(rs)
}

// LeaveRoom detaches the player and resets its game-state fields regardless
// of room status. If the departing player held "it" in a running game, the
// role is reassigned uniformly at random among the remaining roster; a
// running room left with fewer than two players finishes automatically.
func (w *World) LeaveRoom(ctx context.Context, playerID string) error {
	w.mu.RLock()
	p, ok := w.players[playerID]
	if !ok {
		w.mu.RUnlock()
		return ErrPlayerNotFound
	}
	roomID := p.RoomID
	w.mu.RUnlock()

	if roomID == "" {
		return nil
	}
	rs, err := w.roomState(roomID)
	if err != nil {
		// Registry already dropped the room; just detach.
		w.mu.Lock()
		p.RoomID = ""
		resetGameState(p)
		w.mu.Unlock()
		return nil
	}

	rs.mu.Lock()
	wasIt := p.IsIt
	delete(rs.members, playerID)
	resetGameState(p)

	w.mu.Lock()
	p.RoomID = ""
	w.mu.Unlock()

	var snaps []model.RoomSnapshot
	if rs.room.Status == model.StatusRunning {
		switch {
		case len(rs.members) < 2:
			snaps = append(snaps, w.finishLocked(rs))
			if w.log != nil {
				w.log.Info(ctx, "room below minimum roster, game finished",
					logger.String("roomID", roomID),
				)
			}
		case wasIt:
			itID := w.reassignItLocked(rs)
			if w.log != nil {
				w.log.Info(ctx, "it-holder left, role reassigned",
					logger.String("roomID", roomID),
					logger.String("itPlayerID", itID),
				)
			}
		}
	}
	if rs.room.ItPlayerID == playerID {
		rs.room.ItPlayerID = ""
	}
	snaps = append(snaps, w.buildSnapshotLocked(rs))
	rs.mu.Unlock()

	for _, snap := range snaps {
		w.broadcaster.Publish(ctx, snap)
	}
	return nil
}

// reassignItLocked gives "it" to a random remaining member. Caller holds
// rs.mu and guarantees at least one member remains.
func (w *World) reassignItLocked(rs *roomState) string {
	ids := make([]string, 0, len(rs.members))
	for id := range rs.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w.rngMu.Lock()
	itID := ids[w.rng.Intn(len(ids))]
	w.rngMu.Unlock()

	w.mu.RLock()
	w.players[itID].IsIt = true
	w.mu.RUnlock()
	rs.room.ItPlayerID = itID
	return itID
}

// DeleteRoom removes a room, clearing the room reference on every member
// and terminating all subscriptions.
func (w *World) DeleteRoom(ctx context.Context, roomID string) error {
	rs, err := w.roomState(roomID)
	if err != nil {
		return err
	}

	rs.mu.Lock()
	members := make([]string, 0, len(rs.members))
	for id := range rs.members {
		members = append(members, id)
	}
	rs.members = make(map[string]struct{})

	w.mu.Lock()
	for _, id := range members {
		if p, ok := w.players[id]; ok {
			p.RoomID = ""
			resetGameState(p)
		}
	}
	delete(w.byCode, rs.room.Code)
	delete(w.rooms, roomID)
	metrics.UpdateActiveRooms(len(w.rooms))
	w.mu.Unlock()
	rs.mu.Unlock()

	w.broadcaster.CloseRoom(roomID)
	if w.log != nil {
		w.log.Info(ctx, "room deleted", logger.String("roomID", roomID))
	}
	return nil
}

// RoomState returns a complete snapshot of the room.
func (w *World) RoomState(ctx context.Context, roomID string) (*model.RoomSnapshot, error) {
	rs, err := w.roomState(roomID)
	if err != nil {
		return nil, err
	}
	rs.mu.Lock()
	snap := w.buildSnapshotLocked(rs)
	rs.mu.Unlock()
	return &snap, nil
}

// RoomByCode resolves a room snapshot from its human-enterable code.
func (w *World) RoomByCode(ctx context.Context, code string) (*model.RoomSnapshot, error) {
	w.mu.RLock()
	roomID, ok := w.byCode[code]
	w.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return w.RoomState(ctx, roomID)
}

// RecentEvents returns up to limit tag events for the room, newest first.
func (w *World) RecentEvents(ctx context.Context, roomID string, limit int) ([]model.TagEvent, error) {
	rs, err := w.roomState(roomID)
	if err != nil {
		return nil, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.events.recent(limit), nil
}

// TouchPlayer refreshes a player's presence after a telemetry update and
// returns a snapshot of its running room, if any, for broadcast.
func (w *World) TouchPlayer(ctx context.Context, playerID string, now time.Time) (*model.RoomSnapshot, bool) {
	w.mu.Lock()
	p, ok := w.players[playerID]
	if !ok {
		w.mu.Unlock()
		return nil, false
	}
	p.Online = true
	p.LastSeenAt = now
	roomID := p.RoomID
	w.mu.Unlock()

	if roomID == "" {
		return nil, false
	}
	rs, err := w.roomState(roomID)
	if err != nil {
		return nil, false
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.room.Status != model.StatusRunning {
		return nil, false
	}
	snap := w.buildSnapshotLocked(rs)
	return &snap, true
}

// SweepInactive marks players silent for longer than maxIdle as offline,
// detaches them from their rooms, and drops their telemetry so a returning
// player must report fresh readings before tagging. Returns the number of
// players swept.
func (w *World) SweepInactive(ctx context.Context, maxIdle time.Duration) int {
	now := w.now()

	w.mu.RLock()
	var idle []string
	for id, p := range w.players {
		if p.Online && now.Sub(p.LastSeenAt) > maxIdle {
			idle = append(idle, id)
		}
	}
	w.mu.RUnlock()

	for _, id := range idle {
		if err := w.LeaveRoom(ctx, id); err != nil {
			continue
		}
		w.mu.Lock()
		if p, ok := w.players[id]; ok {
			p.Online = false
		}
		w.mu.Unlock()
		w.telemetry.Forget(ctx, id)
	}

	w.mu.RLock()
	metrics.UpdateOnlinePlayers(w.onlineCountLocked())
	w.mu.RUnlock()

	if len(idle) > 0 && w.log != nil {
		w.log.Info(ctx, "inactive players swept", logger.Int("count", len(idle)))
	}
	return len(idle)
}

// Stats returns counters for the /stats surface.
func (w *World) Stats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	running := 0
	for _, rs := range w.rooms {
		if rs.room.Status == model.StatusRunning {
			running++
		}
	}
	metrics.UpdateRunningRooms(running)
	return map[string]interface{}{
		"players":       len(w.players),
		"onlinePlayers": w.onlineCountLocked(),
		"rooms":         len(w.rooms),
		"runningRooms":  running,
		"subscribers":   w.broadcaster.SubscriberCount(),
	}
}

func (w *World) onlineCountLocked() int {
	n := 0
	for _, p := range w.players {
		if p.Online {
			n++
		}
	}
	return n
}

// roomState resolves the internal room record.
func (w *World) roomState(roomID string) (*roomState, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rs, ok := w.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rs, nil
}

// buildSnapshotLocked assembles a complete snapshot. Caller holds rs.mu.
func (w *World) buildSnapshotLocked(rs *roomState) model.RoomSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	players := make([]model.PlayerView, 0, len(rs.members))
	for id := range rs.members {
		p, ok := w.players[id]
		if !ok {
			continue
		}
		players = append(players, model.PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			IsIt:         p.IsIt,
			Score:        p.Score,
			TagsMade:     p.TagsMade,
			TagsReceived: p.TagsReceived,
			Online:       p.Online,
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	return model.RoomSnapshot{
		RoomID:      rs.room.ID,
		Code:        rs.room.Code,
		Name:        rs.room.Name,
		Status:      rs.room.Status,
		ItPlayerID:  rs.room.ItPlayerID,
		PlayerCount: len(players),
		Players:     players,
		EventCount:  rs.events.count(),
		At:          w.now(),
	}
}

// resetGameState clears the per-game fields on attach, detach, and start.
func resetGameState(p *model.Player) {
	p.IsIt = false
	p.Score = 0
	p.TagsMade = 0
	p.TagsReceived = 0
	p.TagAttempts = 0
	p.LastTagAttemptAt = time.Time{}
	p.LastTaggedAt = time.Time{}
}

func clonePlayer(p *model.Player) *model.Player {
	out := *p
	return &out
}
