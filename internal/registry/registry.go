// Package registry owns the live rooms of a server. It maps transport
// sessions to seats, serialises every action on a room's own lock, closes
// rounds out as soon as they end and retires rooms once they are closed.
//
// Lock order: the registry lock guards the room and session maps only and is
// never held while a room lock is taken. Room operations look the table up,
// release the registry lock, then lock the table.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/game"
	"github.com/lox/teenpatti/internal/randutil"
	"github.com/lox/teenpatti/internal/roomid"
	"github.com/lox/teenpatti/internal/settlement"
)

const (
	// DefaultRoundTimeout matches the custody contract's timeout, so a
	// stalled bound room is voided on both sides at about the same time.
	DefaultRoundTimeout  = custody.DefaultTimeout
	DefaultReapAfter     = 5 * time.Minute
	DefaultSweepInterval = 15 * time.Second
)

// Config controls room defaults and lifecycle timing
type Config struct {
	Game          game.Config
	RoundTimeout  time.Duration
	ReapAfter     time.Duration
	SweepInterval time.Duration

	// AutoDeclare pays the whole custody pot to the winner of the first
	// round of a bound room.
	AutoDeclare bool
	Operator    custody.Address
}

func (c Config) withDefaults() Config {
	c.Game = c.Game.WithDefaults()
	if c.RoundTimeout == 0 {
		c.RoundTimeout = DefaultRoundTimeout
	}
	if c.ReapAfter == 0 {
		c.ReapAfter = DefaultReapAfter
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Settler pays a custody pot to a single winner
type Settler interface {
	DeclareWinner(ctx context.Context, roomID string, chainRoom custody.RoomID, winner custody.Address) (settlement.Response, error)
}

// PlayerInfo identifies a player taking a seat. For rooms bound to a custody
// room the ID is the player's chain address.
type PlayerInfo struct {
	ID    string
	Name  string
	Chips int
}

// RoomOptions override the default table rules for a new room
type RoomOptions struct {
	MinStake   int
	MaxPlayers int
	ChainRoom  custody.RoomID
}

// Summary is the lobby view of a room
type Summary struct {
	ID         string         `json:"id"`
	State      game.State     `json:"state"`
	Players    int            `json:"players"`
	MaxPlayers int            `json:"maxPlayers"`
	MinStake   int            `json:"minStake"`
	Round      int            `json:"round"`
	ChainRoom  custody.RoomID `json:"blockchainRoomId,omitzero"`
	Closed     bool           `json:"closed,omitempty"`
}

type seat struct {
	roomID string
	player string
}

type table struct {
	id        string
	chainRoom custody.RoomID

	mu        sync.Mutex
	room      *game.Room
	sessions  map[string]string // player id -> session id
	startedAt time.Time
	closedAt  time.Time
	gone      bool
}

func (t *table) closed() bool {
	return !t.closedAt.IsZero()
}

// targets lists the sessions seated at the table
func (t *table) targets() []string {
	out := make([]string, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func (t *table) summary() Summary {
	cfg := t.room.Config()
	return Summary{
		ID:         t.id,
		State:      t.room.State(),
		Players:    t.room.PlayerCount(),
		MaxPlayers: cfg.MaxPlayers,
		MinStake:   cfg.MinStake,
		Round:      t.room.Rounds(),
		ChainRoom:  t.chainRoom,
		Closed:     t.closed(),
	}
}

// Registry is the room and session directory of a server
type Registry struct {
	cfg       Config
	clock     quartz.Clock
	logger    *log.Logger
	publisher Publisher
	contract  custody.Contract
	settler   Settler

	mu       sync.RWMutex
	rng      *rand.Rand
	ids      *roomid.Generator
	rooms    map[string]*table
	sessions map[string]seat
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the clock used for round timeouts and reaping
func WithClock(clock quartz.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithPublisher sets where room events are delivered
func WithPublisher(p Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithRand seeds room codes and every room's deck from rng. Used by tests
// for reproducible deals.
func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) { r.rng = rng }
}

// WithCustody lets the registry time out bound rooms on the contract and,
// with AutoDeclare, pay out single winners through settler.
func WithCustody(contract custody.Contract, settler Settler) Option {
	return func(r *Registry) {
		r.contract = contract
		r.settler = settler
	}
}

// New creates an empty registry
func New(cfg Config, logger *log.Logger, opts ...Option) (*Registry, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Game.Validate(); err != nil {
		return nil, err
	}
	if cfg.RoundTimeout < 0 || cfg.ReapAfter < 0 || cfg.SweepInterval < 0 {
		return nil, fmt.Errorf("negative lifecycle duration: %w", game.ErrInvalidConfig)
	}

	r := &Registry{
		cfg:       cfg,
		clock:     quartz.NewReal(),
		logger:    logger.WithPrefix("registry"),
		publisher: PublisherFunc(func(Event) {}),
		rooms:     make(map[string]*table),
		sessions:  make(map[string]seat),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = randutil.NewSecure()
	}
	r.ids = roomid.NewGenerator(r.rng)
	if r.cfg.AutoDeclare && r.settler == nil {
		return nil, fmt.Errorf("auto declare needs a custody settler: %w", game.ErrInvalidConfig)
	}
	return r, nil
}

// CreateRoom opens a room and seats its creator
func (r *Registry) CreateRoom(session string, p PlayerInfo, opts RoomOptions) (game.Snapshot, error) {
	if session == "" {
		return game.Snapshot{}, ErrInvalidSession
	}
	cfg := r.cfg.Game
	if opts.MinStake != 0 {
		cfg.MinStake = opts.MinStake
	}
	if opts.MaxPlayers != 0 {
		cfg.MaxPlayers = opts.MaxPlayers
	}

	r.mu.Lock()
	if _, ok := r.sessions[session]; ok {
		r.mu.Unlock()
		return game.Snapshot{}, ErrAlreadySeated
	}
	if !opts.ChainRoom.IsZero() {
		for _, t := range r.rooms {
			if t.chainRoom == opts.ChainRoom {
				r.mu.Unlock()
				return game.Snapshot{}, fmt.Errorf("%s is bound to room %s: %w", opts.ChainRoom.Short(), t.id, ErrChainRoomBound)
			}
		}
	}
	id := r.ids.Generate()
	for r.rooms[id] != nil {
		id = r.ids.Generate()
	}
	room, err := game.NewRoom(id, cfg, randutil.New(randutil.Seed(r.rng)))
	if err == nil {
		err = room.Join(p.ID, p.Name, p.Chips)
	}
	if err != nil {
		r.mu.Unlock()
		return game.Snapshot{}, err
	}
	t := &table{
		id:        id,
		chainRoom: opts.ChainRoom,
		room:      room,
		sessions:  map[string]string{p.ID: session},
	}
	r.rooms[id] = t
	r.sessions[session] = seat{roomID: id, player: p.ID}
	r.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	r.logger.Info("Room created", "room", id, "player", p.ID, "minStake", cfg.MinStake, "chainRoom", chainLabel(opts.ChainRoom))
	r.broadcastState(t)
	return room.Snapshot(p.ID), nil
}

// JoinRoom seats a player in an existing room between rounds
func (r *Registry) JoinRoom(session, roomID string, p PlayerInfo) (game.Snapshot, error) {
	if session == "" {
		return game.Snapshot{}, ErrInvalidSession
	}
	roomID = roomid.Normalize(roomID)

	// the session is reserved before the table is locked, so one session
	// cannot take two seats
	r.mu.Lock()
	if _, ok := r.sessions[session]; ok {
		r.mu.Unlock()
		return game.Snapshot{}, ErrAlreadySeated
	}
	t, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return game.Snapshot{}, fmt.Errorf("%s: %w", roomID, ErrRoomNotFound)
	}
	r.sessions[session] = seat{roomID: roomID, player: p.ID}
	r.mu.Unlock()

	snap, err := r.join(t, session, p)
	if err != nil {
		r.release(session, roomID)
		return game.Snapshot{}, err
	}
	return snap, nil
}

func (r *Registry) join(t *table, session string, p PlayerInfo) (game.Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gone {
		return game.Snapshot{}, fmt.Errorf("%s: %w", t.id, ErrRoomNotFound)
	}
	if err := t.room.Join(p.ID, p.Name, p.Chips); err != nil {
		return game.Snapshot{}, err
	}
	t.sessions[p.ID] = session
	player, _ := t.room.Player(p.ID)
	r.logger.Info("Player joined", "room", t.id, "player", p.ID, "chips", player.Chips)
	r.broadcastState(t)
	return t.room.Snapshot(p.ID), nil
}

func (r *Registry) release(session, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[session]; ok && s.roomID == roomID {
		delete(r.sessions, session)
	}
}

func (r *Registry) lookup(session string) (*table, seat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[session]
	if !ok {
		return nil, seat{}, ErrNotSeated
	}
	t, ok := r.rooms[s.roomID]
	if !ok {
		return nil, seat{}, fmt.Errorf("%s: %w", s.roomID, ErrRoomNotFound)
	}
	return t, s, nil
}

func (r *Registry) table(roomID string) (*table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", roomID, ErrRoomNotFound)
	}
	return t, nil
}

// StartRound deals a new round in the session's room
func (r *Registry) StartRound(session string) error {
	t, s, err := r.lookup(session)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gone {
		return fmt.Errorf("%s: %w", t.id, ErrRoomNotFound)
	}
	if err := t.room.Start(); err != nil {
		return err
	}
	t.startedAt = r.clock.Now()
	r.logger.Info("Round started", "room", t.id, "round", t.room.Rounds(), "by", s.player,
		"players", t.room.PlayerCount(), "pot", t.room.Pot(), "dealer", t.room.Dealer())

	r.broadcastState(t)
	for player, sess := range t.sessions {
		p, _ := t.room.Player(player)
		r.publisher.Publish(Event{
			Type:     EventPrivateHand,
			RoomID:   t.id,
			Sessions: []string{sess},
			Data:     PrivateHand{RoomID: t.id, Player: player, Cards: p.Cards},
		})
	}
	r.broadcastTurn(t)
	return nil
}

// Act applies a move for the session's player. A move that ends the round
// closes it out before Act returns.
func (r *Registry) Act(ctx context.Context, session string, a game.Action) (game.Outcome, error) {
	t, s, err := r.lookup(session)
	if err != nil {
		return game.Outcome{}, err
	}

	t.mu.Lock()
	if t.gone {
		t.mu.Unlock()
		return game.Outcome{}, fmt.Errorf("%s: %w", t.id, ErrRoomNotFound)
	}
	out, err := t.room.Act(s.player, a)
	if err != nil {
		t.mu.Unlock()
		return game.Outcome{}, err
	}
	r.logger.Debug("Action applied", "room", t.id, "player", s.player, "action", a, "pot", t.room.Pot(), "next", out.NextTurn)

	var decl *declaration
	if out.Result != nil {
		decl = r.closeRound(t)
	} else {
		r.broadcastState(t)
		r.broadcastTurn(t)
	}
	t.mu.Unlock()

	if decl != nil {
		r.declare(ctx, *decl)
	}
	return out, nil
}

// Leave gives up the session's seat. During a live round the player is
// folded first; a room left empty is destroyed.
func (r *Registry) Leave(ctx context.Context, session string) error {
	t, s, err := r.lookup(session)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.gone {
		t.mu.Unlock()
		r.release(session, t.id)
		return fmt.Errorf("%s: %w", t.id, ErrRoomNotFound)
	}
	res, err := t.room.Leave(s.player)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	delete(t.sessions, s.player)
	r.logger.Info("Player left", "room", t.id, "player", s.player, "state", t.room.State())

	var decl *declaration
	switch {
	case res != nil:
		decl = r.closeRound(t)
	case t.room.PlayerCount() == 0:
		t.gone = true
	default:
		r.broadcastState(t)
		if t.room.State() == game.Active {
			r.broadcastTurn(t)
		}
	}
	empty := t.gone
	t.mu.Unlock()

	r.mu.Lock()
	delete(r.sessions, session)
	if empty && r.rooms[t.id] == t {
		delete(r.rooms, t.id)
	}
	r.mu.Unlock()
	if empty {
		r.logger.Info("Room destroyed", "room", t.id, "reason", "empty")
	}

	if decl != nil {
		r.declare(ctx, *decl)
	}
	return nil
}

// Disconnect is Leave for a transport that went away. It never fails; a
// session that never took a seat is ignored.
func (r *Registry) Disconnect(ctx context.Context, session string) {
	if err := r.Leave(ctx, session); err != nil && !errors.Is(err, ErrNotSeated) {
		r.logger.Debug("Disconnect cleanup failed", "session", session, "error", err)
	}
}

// Seat reports where a session is seated
func (r *Registry) Seat(session string) (roomID, player string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[session]
	return s.roomID, s.player, ok
}

// Room returns the public view of a room
func (r *Registry) Room(roomID string) (game.Snapshot, error) {
	t, err := r.table(roomid.Normalize(roomID))
	if err != nil {
		return game.Snapshot{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.room.Snapshot(""), nil
}

// Summary returns the lobby view of one room
func (r *Registry) Summary(roomID string) (Summary, error) {
	t, err := r.table(roomid.Normalize(roomID))
	if err != nil {
		return Summary{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary(), nil
}

// Rooms lists every room, ordered by id
func (r *Registry) Rooms() []Summary {
	r.mu.RLock()
	tables := make([]*table, 0, len(r.rooms))
	for _, t := range r.rooms {
		tables = append(tables, t)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(tables))
	for _, t := range tables {
		t.mu.Lock()
		if !t.gone {
			out = append(out, t.summary())
		}
		t.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// ChipLedger returns the authoritative chip counts of a room, including
// players who left after its first round. Counts are only final between
// rounds: while a round is live the stakes sit in the pot and
// game.ErrRoundInProgress is returned instead.
func (r *Registry) ChipLedger(roomID string) ([]game.ChipCount, error) {
	t, err := r.table(roomid.Normalize(roomID))
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.room.State() == game.Active {
		return nil, fmt.Errorf("%s: %w", t.id, game.ErrRoundInProgress)
	}
	return t.room.ChipLedger(), nil
}

// Remove destroys a room. A live round is voided and refunded first.
func (r *Registry) Remove(roomID string) error {
	roomID = roomid.Normalize(roomID)
	r.mu.Lock()
	t, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", roomID, ErrRoomNotFound)
	}
	delete(r.rooms, roomID)
	r.dropSessions(roomID)
	r.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gone {
		return nil
	}
	if t.room.State() != game.Cancelled {
		refunds, _ := t.room.Cancel("room removed")
		if len(refunds) > 0 {
			r.logger.Info("Live round refunded", "room", roomID, "refunds", refunds)
		}
		r.broadcastState(t)
	}
	t.gone = true
	r.logger.Info("Room destroyed", "room", roomID, "reason", "removed")
	return nil
}

// dropSessions unseats every session of a room. Caller holds r.mu.
func (r *Registry) dropSessions(roomID string) {
	for sess, s := range r.sessions {
		if s.roomID == roomID {
			delete(r.sessions, sess)
		}
	}
}

type declaration struct {
	roomID    string
	chainRoom custody.RoomID
	winner    custody.Address
}

// closeRound publishes a finished round, credits it and reopens the room.
// Caller holds t.mu. The returned declaration, if any, must be settled after
// the lock is released.
func (r *Registry) closeRound(t *table) *declaration {
	r.broadcastState(t)
	res, err := t.room.EndRound()
	if err != nil {
		r.logger.Error("Closing round failed", "room", t.id, "error", err)
		return nil
	}
	r.logger.Info("Round ended", "room", t.id, "reason", res.Reason, "winners", res.Winners, "pot", res.Pot)
	r.broadcast(t, EventRoundEnded, RoundEnded{RoomID: t.id, Result: res})
	r.broadcastState(t)

	if !r.cfg.AutoDeclare || r.settler == nil || t.chainRoom.IsZero() || t.room.Rounds() != 1 {
		return nil
	}
	if res.Tie() {
		r.logger.Warn("Tied round in a bound room, settle by chip counts instead", "room", t.id, "winners", res.Winners)
		return nil
	}
	return &declaration{roomID: t.id, chainRoom: t.chainRoom, winner: custody.Address(res.Winners[0])}
}

func (r *Registry) declare(ctx context.Context, d declaration) {
	resp, err := r.settler.DeclareWinner(ctx, d.roomID, d.chainRoom, d.winner)
	if err != nil {
		r.logger.Error("Auto declare failed", "room", d.roomID, "chainRoom", d.chainRoom.Short(), "error", err)
		r.Notify(d.roomID, EventError, errorEvent(err))
		return
	}
	r.Notify(d.roomID, EventSettlement, Settlement{RoomID: d.roomID, ChainRoom: d.chainRoom, Response: resp})
	r.ChainStateChanged(d.roomID, custody.StateFinished)
}

// Notify broadcasts an event to everyone seated in a room. It must not be
// called while holding the room lock.
func (r *Registry) Notify(roomID string, typ EventType, data any) {
	t, err := r.table(roomID)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.gone {
		r.broadcast(t, typ, data)
	}
}

func (r *Registry) broadcast(t *table, typ EventType, data any) {
	r.publisher.Publish(Event{Type: typ, RoomID: t.id, Sessions: t.targets(), Data: data})
}

func (r *Registry) broadcastState(t *table) {
	r.broadcast(t, EventRoomState, t.room.Snapshot(""))
}

func (r *Registry) broadcastTurn(t *table) {
	player := t.room.Turn()
	if player == "" {
		return
	}
	r.broadcast(t, EventTurnChanged, TurnChanged{
		RoomID:   t.id,
		Player:   player,
		Required: t.room.RequiredStake(player),
		Stake:    t.room.CurrentStake(),
		Pot:      t.room.Pot(),
	})
}

func chainLabel(id custody.RoomID) string {
	if id.IsZero() {
		return "none"
	}
	return id.Short()
}
