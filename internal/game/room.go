package game

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/lox/teenpatti/internal/deck"
	"github.com/lox/teenpatti/internal/evaluator"
	"github.com/lox/teenpatti/internal/fault"
	"github.com/thoas/go-funk"
)

// State is the lifecycle of a room's current round
type State int

const (
	Waiting State = iota
	Active
	RoundOver
	Cancelled
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Active:
		return "active"
	case RoundOver:
		return "round_over"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear by name in JSON snapshots
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	DefaultMinStake       = 10
	DefaultPotLimitFactor = 1024
	MaxSeats              = 6
	MinSeats              = 2
)

// Config holds the table rules of a room
type Config struct {
	MinStake       int // ante and opening seen stake
	MaxPlayers     int
	MinPlayers     int
	PotLimitFactor int // betting stops once the pot reaches MinStake*PotLimitFactor
}

// DefaultConfig returns the classic table: boot 10, up to 6 players, pot limit 1024 boots
func DefaultConfig() Config {
	return Config{
		MinStake:       DefaultMinStake,
		MaxPlayers:     MaxSeats,
		MinPlayers:     MinSeats,
		PotLimitFactor: DefaultPotLimitFactor,
	}
}

// WithDefaults fills zero fields from DefaultConfig
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MinStake == 0 {
		c.MinStake = d.MinStake
	}
	if c.MaxPlayers == 0 {
		c.MaxPlayers = d.MaxPlayers
	}
	if c.MinPlayers == 0 {
		c.MinPlayers = d.MinPlayers
	}
	if c.PotLimitFactor == 0 {
		c.PotLimitFactor = d.PotLimitFactor
	}
	return c
}

// Validate checks the rules are playable. MinStake must be at least 2 so a
// blind player's half stake is never zero.
func (c Config) Validate() error {
	if c.MinStake < 2 {
		return fmt.Errorf("min stake %d is below 2: %w", c.MinStake, ErrInvalidConfig)
	}
	if c.MaxPlayers < MinSeats || c.MaxPlayers > MaxSeats {
		return fmt.Errorf("max players %d outside %d..%d: %w", c.MaxPlayers, MinSeats, MaxSeats, ErrInvalidConfig)
	}
	if c.MinPlayers < MinSeats || c.MinPlayers > c.MaxPlayers {
		return fmt.Errorf("min players %d outside %d..%d: %w", c.MinPlayers, MinSeats, c.MaxPlayers, ErrInvalidConfig)
	}
	if c.PotLimitFactor < 1 {
		return fmt.Errorf("pot limit factor %d: %w", c.PotLimitFactor, ErrInvalidConfig)
	}
	return nil
}

// Room is the round state machine for one table. It is not safe for
// concurrent use; the registry serializes every call on the room's lock.
type Room struct {
	id      string
	cfg     Config
	deck    *deck.Deck
	players []*Player // seating order is turn order
	gone    []ChipCount

	state  State
	pot    int
	stake  int // seen-equivalent stake
	turn   int
	dealer int
	rounds int
	result *Result

	cancelReason string
}

// NewRoom creates an empty room. Zero Config fields take their defaults.
func NewRoom(id string, cfg Config, rng *rand.Rand) (*Room, error) {
	if id == "" {
		return nil, fmt.Errorf("empty room id: %w", ErrInvalidConfig)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Room{
		id:   id,
		cfg:  cfg,
		deck: deck.NewDeck(rng),
		turn: -1,
	}, nil
}

func (r *Room) ID() string { return r.id }
func (r *Room) Config() Config { return r.cfg }
func (r *Room) State() State { return r.state }
func (r *Room) Pot() int { return r.pot }
func (r *Room) CurrentStake() int { return r.stake }
func (r *Room) Rounds() int { return r.rounds }
func (r *Room) PlayerCount() int { return len(r.players) }
func (r *Room) LastResult() *Result { return r.result }

// Turn returns the id of the player to act, or "" outside a live round
func (r *Room) Turn() string {
	if r.state != Active || r.turn < 0 {
		return ""
	}
	return r.players[r.turn].ID
}

// Dealer returns the id of the dealer seat, or "" for an empty room
func (r *Room) Dealer() string {
	if len(r.players) == 0 {
		return ""
	}
	return r.players[r.dealer].ID
}

// Player returns a copy of the seated player with id
func (r *Room) Player(id string) (Player, bool) {
	if i := r.seat(id); i >= 0 {
		p := *r.players[i]
		p.Cards = append([]deck.Card(nil), p.Cards...)
		return p, true
	}
	return Player{}, false
}

// PlayerIDs returns seated player ids in seating order
func (r *Room) PlayerIDs() []string {
	ids := make([]string, len(r.players))
	for i, p := range r.players {
		ids[i] = p.ID
	}
	return ids
}

// ChipLedger returns the authoritative chip count of every participant:
// seated players in seating order, then players who left after the room's
// first round started.
func (r *Room) ChipLedger() []ChipCount {
	ledger := make([]ChipCount, 0, len(r.players)+len(r.gone))
	for _, p := range r.players {
		ledger = append(ledger, ChipCount{Player: p.ID, Chips: p.Chips})
	}
	return append(ledger, r.gone...)
}

func (r *Room) seat(id string) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) unfolded() []*Player {
	return funk.Filter(r.players, func(p *Player) bool {
		return !p.Folded
	}).([]*Player)
}

// Join seats a player between rounds
func (r *Room) Join(id, name string, chips int) error {
	switch r.state {
	case Active:
		return ErrRoundInProgress
	case Cancelled:
		return ErrRoomClosed
	}
	if id == "" {
		return fmt.Errorf("empty player id: %w", ErrInvalidPlayer)
	}
	if chips < 0 {
		return fmt.Errorf("negative chips %d: %w", chips, ErrInvalidPlayer)
	}
	if r.seat(id) >= 0 {
		return fmt.Errorf("%s: %w", id, ErrPlayerExists)
	}
	if len(r.players) >= r.cfg.MaxPlayers {
		return fmt.Errorf("%d/%d seats taken: %w", len(r.players), r.cfg.MaxPlayers, ErrRoomFull)
	}

	// a returning player gets their ledger row back rather than fresh chips
	for i, row := range r.gone {
		if row.Player == id {
			chips = row.Chips
			r.gone = append(r.gone[:i], r.gone[i+1:]...)
			break
		}
	}

	if name == "" {
		name = id
	}
	r.players = append(r.players, &Player{ID: id, Name: name, Chips: chips, Blind: true})
	return nil
}

// Leave removes a player. During a live round the player is folded and
// marked departed instead, and is removed when the round closes. The returned
// Result is non-nil when the departure ended the round.
func (r *Room) Leave(id string) (*Result, error) {
	i := r.seat(id)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownPlayer)
	}
	p := r.players[i]

	switch r.state {
	case Active:
		if p.Departed {
			return nil, nil
		}
		p.Departed = true
		if p.Folded {
			return nil, nil
		}
		p.Folded = true
		if len(r.unfolded()) == 1 {
			return r.finishByFold(), nil
		}
		if r.turn == i {
			r.turn = r.nextPlayer(i)
		}
		return nil, nil
	case RoundOver:
		p.Departed = true
		return nil, nil
	default:
		r.remove(i)
		return nil, nil
	}
}

func (r *Room) remove(i int) {
	p := r.players[i]
	if r.rounds > 0 {
		r.gone = append(r.gone, ChipCount{Player: p.ID, Chips: p.Chips})
	}
	r.players = append(r.players[:i], r.players[i+1:]...)
	if i < r.dealer {
		r.dealer--
	}
	if r.dealer >= len(r.players) {
		r.dealer = 0
	}
}

// Start begins a round: reshuffle, deal three cards to everyone starting left
// of the dealer, collect the ante and hand the turn to the seat after the
// dealer.
func (r *Room) Start() error {
	switch r.state {
	case Active:
		return ErrRoundInProgress
	case RoundOver:
		return fmt.Errorf("previous round not closed: %w", ErrRoundInProgress)
	case Cancelled:
		return ErrRoomClosed
	}
	n := len(r.players)
	if n < r.cfg.MinPlayers {
		return fmt.Errorf("%d seated, need %d: %w", n, r.cfg.MinPlayers, ErrInsufficientPlayers)
	}
	for _, p := range r.players {
		if p.Chips < r.cfg.MinStake {
			return fmt.Errorf("%s has %d, ante is %d: %w", p.ID, p.Chips, r.cfg.MinStake, ErrInsufficientChips)
		}
	}

	r.deck.Reset()
	for _, p := range r.players {
		p.resetForRound()
	}
	for c := 0; c < evaluator.HandSize; c++ {
		for i := 1; i <= n; i++ {
			p := r.players[(r.dealer+i)%n]
			card, ok := r.deck.Deal()
			if !ok {
				fault.Invariant("deck exhausted dealing %d players", n)
			}
			p.Cards = append(p.Cards, card)
		}
	}

	r.pot = 0
	for _, p := range r.players {
		p.pay(r.cfg.MinStake)
		r.pot += r.cfg.MinStake
	}
	r.stake = r.cfg.MinStake
	r.turn = (r.dealer + 1) % n
	r.result = nil
	r.state = Active
	r.rounds++
	return nil
}

// Outcome describes what an accepted action did
type Outcome struct {
	PlayerID string  `json:"playerId"`
	Action   string  `json:"action"`
	Amount   int     `json:"amount,omitempty"`
	AllIn    bool    `json:"allIn,omitempty"`
	NextTurn string  `json:"nextTurn,omitempty"`
	Result   *Result `json:"result,omitempty"`
}

// Act applies a move by the player whose turn it is. Every rule is checked
// before anything is mutated.
func (r *Room) Act(playerID string, a Action) (Outcome, error) {
	if r.state != Active {
		return Outcome{}, ErrRoundNotActive
	}
	i := r.seat(playerID)
	if i < 0 {
		return Outcome{}, fmt.Errorf("%s: %w", playerID, ErrUnknownPlayer)
	}
	if i != r.turn {
		return Outcome{}, fmt.Errorf("%s acted, turn is %s: %w", playerID, r.players[r.turn].ID, ErrNotYourTurn)
	}
	p := r.players[i]
	out := Outcome{PlayerID: playerID, Action: a.Kind.String()}

	switch a.Kind {
	case ActionSee:
		if p.Seen {
			return Outcome{}, ErrAlreadySeen
		}
		p.Blind = false
		p.Seen = true

	case ActionFold:
		p.Folded = true
		if len(r.unfolded()) == 1 {
			out.Result = r.finishByFold()
		} else {
			r.turn = r.nextPlayer(i)
		}

	case ActionBet:
		short, err := r.checkBet(p, a.Amount)
		if err != nil {
			return Outcome{}, err
		}
		p.pay(a.Amount)
		r.pot += a.Amount
		if !short {
			seenEquivalent := a.Amount
			if p.Blind {
				seenEquivalent *= 2
			}
			r.stake = max(r.stake, seenEquivalent)
		}
		out.Amount = a.Amount
		out.AllIn = p.AllIn
		r.turn = r.nextPlayer(i)

	case ActionShow:
		out.Result = r.finishByShow()

	default:
		return Outcome{}, fmt.Errorf("%v: %w", a.Kind, ErrInvalidAction)
	}

	out.NextTurn = r.Turn()
	return out, nil
}

// RequiredStake is what the player must bet to stay in: the current stake if
// they have seen their cards, half of it while blind.
func (r *Room) RequiredStake(playerID string) int {
	i := r.seat(playerID)
	if i < 0 || r.state != Active {
		return 0
	}
	if r.players[i].Blind {
		return r.stake / 2
	}
	return r.stake
}

// checkBet validates a bet and reports whether it is a short all-in, which
// never raises the stake.
func (r *Room) checkBet(p *Player, amount int) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("amount %d: %w", amount, ErrInvalidBetAmount)
	}
	if limit := r.cfg.MinStake * r.cfg.PotLimitFactor; r.pot >= limit {
		return false, fmt.Errorf("pot %d, limit %d: %w", r.pot, limit, ErrPotLimitReached)
	}

	required := r.stake
	if p.Blind {
		required = r.stake / 2
	}

	if p.Chips < required {
		if amount != p.Chips {
			return false, fmt.Errorf("required %d, stack %d, bet %d: %w", required, p.Chips, amount, ErrAllInRequired)
		}
		return true, nil
	}
	if amount != required && amount != 2*required {
		return false, fmt.Errorf("required %d or %d, bet %d: %w", required, 2*required, amount, ErrInvalidBetAmount)
	}
	if amount > p.Chips {
		return false, fmt.Errorf("bet %d, stack %d: %w", amount, p.Chips, ErrInsufficientChips)
	}
	return false, nil
}

// nextPlayer returns the first unfolded seat after from. Callers must have
// already ended the round if fewer than two players are unfolded.
func (r *Room) nextPlayer(from int) int {
	if active := len(r.unfolded()); active < 2 {
		fault.Invariant("room %s: turn advance with %d unfolded players", r.id, active)
	}
	n := len(r.players)
	for step := 1; step <= n; step++ {
		pos := (from + step) % n
		if !r.players[pos].Folded {
			return pos
		}
	}
	fault.Invariant("room %s: no unfolded seat after %d", r.id, from)
	return -1
}

// Cancel voids the room. A live round is unwound by refunding every player's
// contribution. The room accepts nothing afterwards except Leave.
func (r *Room) Cancel(reason string) (map[string]int, error) {
	if r.state == Cancelled {
		return nil, ErrRoomClosed
	}
	refunds := make(map[string]int)
	if r.state == Active || r.state == RoundOver {
		for _, p := range r.players {
			if p.TotalBet > 0 {
				p.Chips += p.TotalBet
				refunds[p.ID] = p.TotalBet
			}
		}
		r.pot = 0
		r.dropDeparted()
	}
	for _, p := range r.players {
		p.resetForRound()
	}
	r.turn = -1
	r.state = Cancelled
	r.cancelReason = reason
	return refunds, nil
}

// EndRound pays out the finished round, removes departed players, moves the
// dealer button on and reopens the room for joins.
func (r *Room) EndRound() (Result, error) {
	if r.state != RoundOver || r.result == nil {
		return Result{}, ErrRoundNotOver
	}
	res := *r.result

	credited := 0
	for id, amount := range res.Payouts {
		i := r.seat(id)
		if i < 0 {
			fault.Invariant("room %s: payout to unseated player %s", r.id, id)
		}
		r.players[i].Chips += amount
		credited += amount
	}
	if credited != r.pot {
		fault.Invariant("room %s: paid %d of pot %d", r.id, credited, r.pot)
	}
	r.pot = 0

	n := len(r.players)
	nextDealer := ""
	for step := 1; step <= n; step++ {
		if p := r.players[(r.dealer+step)%n]; !p.Departed {
			nextDealer = p.ID
			break
		}
	}
	r.dropDeparted()
	r.dealer = max(r.seat(nextDealer), 0)

	r.turn = -1
	r.state = Waiting
	return res, nil
}

func (r *Room) dropDeparted() {
	for i := len(r.players) - 1; i >= 0; i-- {
		if r.players[i].Departed {
			r.remove(i)
		}
	}
}
