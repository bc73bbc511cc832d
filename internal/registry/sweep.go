package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/fault"
	"github.com/lox/teenpatti/internal/game"
)

// ChainStateChanged tells the registry that a bound room's custody state
// moved. FINISHED or CANCELLED while a round is still live is an expected
// race with a settlement or a custody timeout: the round is voided and the
// room closes. Unknown rooms are ignored.
func (r *Registry) ChainStateChanged(roomID string, state custody.RoomState) {
	if !state.Closed() {
		return
	}
	t, err := r.table(roomID)
	if err != nil {
		r.logger.Debug("Custody state change for unknown room", "room", roomID, "state", state)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gone || t.closed() {
		return
	}
	live := t.room.State() == game.Active
	refunds, err := t.room.Cancel("custody room " + strings.ToLower(state.String()))
	if err != nil && !errors.Is(err, game.ErrRoomClosed) {
		r.logger.Error("Closing room failed", "room", t.id, "error", err)
		return
	}
	t.closedAt = r.clock.Now()
	if live {
		r.logger.Info("Custody closed room during a live round", "room", t.id, "state", state, "refunds", refunds)
	} else {
		r.logger.Info("Room closed", "room", t.id, "state", state)
	}
	r.broadcastState(t)
}

// Sweep voids rounds that have been live for longer than the round timeout
// and destroys rooms that have been closed for longer than the reap delay.
// Timed-out bound rooms are also timed out on the custody contract; the
// contract may refuse if its own timeout has not passed yet.
func (r *Registry) Sweep(ctx context.Context) {
	now := r.clock.Now()

	r.mu.RLock()
	tables := make([]*table, 0, len(r.rooms))
	for _, t := range r.rooms {
		tables = append(tables, t)
	}
	r.mu.RUnlock()

	var timedOut []custody.RoomID
	var reaped []*table
	for _, t := range tables {
		t.mu.Lock()
		switch {
		case t.gone:
		case t.closed():
			if now.Sub(t.closedAt) >= r.cfg.ReapAfter {
				t.gone = true
				reaped = append(reaped, t)
			}
		case t.room.State() == game.Active && now.Sub(t.startedAt) >= r.cfg.RoundTimeout:
			refunds, _ := t.room.Cancel("round timed out")
			t.closedAt = now
			r.logger.Warn("Round timed out", "room", t.id, "round", t.room.Rounds(), "started", t.startedAt, "refunds", refunds)
			r.broadcastState(t)
			if !t.chainRoom.IsZero() {
				timedOut = append(timedOut, t.chainRoom)
			}
		}
		t.mu.Unlock()
	}

	if len(reaped) > 0 {
		r.mu.Lock()
		for _, t := range reaped {
			if r.rooms[t.id] == t {
				delete(r.rooms, t.id)
			}
			r.dropSessions(t.id)
		}
		r.mu.Unlock()
		for _, t := range reaped {
			r.logger.Info("Room destroyed", "room", t.id, "reason", "reaped")
		}
	}

	if r.contract == nil {
		return
	}
	for _, id := range timedOut {
		rcpt, err := r.contract.HandleTimeout(ctx, r.cfg.Operator, id)
		if err != nil {
			r.logger.Debug("Custody timeout refused", "chainRoom", id.Short(), "error", err)
			continue
		}
		r.logger.Info("Custody room timed out", "chainRoom", id.Short(), "tx", rcpt.TxHash)
	}
}

// Run sweeps on every tick of the sweep interval until ctx is done
func (r *Registry) Run(ctx context.Context) error {
	r.logger.Debug("Sweeper started", "interval", r.cfg.SweepInterval, "roundTimeout", r.cfg.RoundTimeout, "reapAfter", r.cfg.ReapAfter)
	w := r.clock.TickerFunc(ctx, r.cfg.SweepInterval, func() error {
		r.Sweep(ctx)
		return nil
	}, "registry", "sweep")
	err := w.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func errorEvent(err error) ErrorEvent {
	return ErrorEvent{Code: fault.CodeOf(err), Message: err.Error()}
}
