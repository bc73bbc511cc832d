package server

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/teenpatti/internal/protocol"
	"github.com/lox/teenpatti/internal/registry"
)

// hub tracks live connections by session and delivers registry events to
// them
type hub struct {
	clock  quartz.Clock
	logger *log.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
}

var _ registry.Publisher = (*hub)(nil)

func newHub(clock quartz.Clock, logger *log.Logger) *hub {
	return &hub{
		clock:  clock,
		logger: logger,
		conns:  make(map[string]*Connection),
	}
}

func (h *hub) add(c *Connection) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.Session()] = c
	return len(h.conns)
}

func (h *hub) remove(c *Connection) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.Session())
	return len(h.conns)
}

func (h *hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		_ = c.Close() // Ignore close errors during shutdown
	}
}

// Publish encodes the event once and queues it on every addressed session
func (h *hub) Publish(ev registry.Event) {
	msg, err := protocol.NewMessage(protocol.MessageType(ev.Type), ev.Data, h.clock.Now())
	if err != nil {
		h.logger.Error("Failed to encode event", "type", ev.Type, "room", ev.RoomID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, session := range ev.Sessions {
		c, ok := h.conns[session]
		if !ok {
			continue
		}
		if err := c.SendMessage(msg); err == nil {
			count++
		}
	}
	h.logger.Debug("Published event", "room", ev.RoomID, "type", ev.Type, "recipients", count)
}
