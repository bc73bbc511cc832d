package game

import "github.com/lox/teenpatti/internal/deck"

// PlayerView is a player as seen by one viewer
type PlayerView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Chips      int         `json:"chips"`
	CurrentBet int         `json:"currentBet"`
	TotalBet   int         `json:"totalBet"`
	Folded     bool        `json:"folded"`
	Blind      bool        `json:"blind"`
	AllIn      bool        `json:"allIn,omitempty"`
	Departed   bool        `json:"departed,omitempty"`
	Cards      []deck.Card `json:"cards,omitempty"`
}

// Snapshot is the public state of a room
type Snapshot struct {
	RoomID       string       `json:"roomId"`
	State        State        `json:"state"`
	Pot          int          `json:"pot"`
	CurrentStake int          `json:"currentStake"`
	MinStake     int          `json:"minStake"`
	MaxPlayers   int          `json:"maxPlayers"`
	Turn         string       `json:"turn,omitempty"`
	Dealer       string       `json:"dealer,omitempty"`
	Round        int          `json:"round"`
	Players      []PlayerView `json:"players"`
	Result       *Result      `json:"result,omitempty"`
	CancelReason string       `json:"cancelReason,omitempty"`
}

// Snapshot renders the room for viewer. Cards are only included for the
// viewer's own seat, and for every unfolded seat once a showdown has happened.
// An empty viewer sees no cards before a showdown.
func (r *Room) Snapshot(viewer string) Snapshot {
	shown := r.state == RoundOver && r.result != nil && r.result.Reason == EndByShow

	s := Snapshot{
		RoomID:       r.id,
		State:        r.state,
		Pot:          r.pot,
		CurrentStake: r.stake,
		MinStake:     r.cfg.MinStake,
		MaxPlayers:   r.cfg.MaxPlayers,
		Turn:         r.Turn(),
		Dealer:       r.Dealer(),
		Round:        r.rounds,
		Players:      make([]PlayerView, 0, len(r.players)),
		CancelReason: r.cancelReason,
	}
	if r.state == RoundOver {
		s.Result = r.result
	}

	for _, p := range r.players {
		v := PlayerView{
			ID:         p.ID,
			Name:       p.Name,
			Chips:      p.Chips,
			CurrentBet: p.CurrentBet,
			TotalBet:   p.TotalBet,
			Folded:     p.Folded,
			Blind:      p.Blind,
			AllIn:      p.AllIn,
			Departed:   p.Departed,
		}
		if (viewer != "" && p.ID == viewer) || (shown && !p.Folded) {
			v.Cards = append([]deck.Card(nil), p.Cards...)
		}
		s.Players = append(s.Players, v)
	}
	return s
}
