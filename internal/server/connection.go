package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lox/teenpatti/internal/fault"
	"github.com/lox/teenpatti/internal/protocol"
)

// Connection is one WebSocket client. Each connection is its own session: a
// session holds at most one seat at a time.
type Connection struct {
	conn      *websocket.Conn
	session   string
	send      chan *protocol.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	srv       *Server
}

// NewConnection wraps conn in a new session
func NewConnection(conn *websocket.Conn, srv *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	session := uuid.NewString()

	return &Connection{
		conn:    conn,
		session: session,
		send:    make(chan *protocol.Message, 256),
		logger:  srv.logger.WithPrefix("conn").With("session", session[:8]),
		ctx:     ctx,
		cancel:  cancel,
		srv:     srv,
	}
}

// Session returns the session id of the connection
func (c *Connection) Session() string {
	return c.session
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client. A client that cannot keep up
// is disconnected rather than allowed to stall the room.
func (c *Connection) SendMessage(msg *protocol.Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		msg, err := protocol.Parse(frame)
		if err != nil {
			c.sendError(nil, "InvalidMessage", err.Error())
			continue
		}
		c.handleMessage(msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage dispatches one request. Every request gets either an ack or
// an error carrying its request id.
func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug("Received message", "type", msg.Type, "requestId", msg.RequestID)

	result, err := c.srv.dispatch(c.ctx, c.session, msg)
	if err != nil {
		var decodeErr *decodeError
		switch {
		case errors.As(err, &decodeErr):
			c.sendError(msg, "InvalidMessage", err.Error())
		case errors.Is(err, errUnknownType):
			c.sendError(msg, "UnknownMessageType", "Unknown message type: "+msg.Type.String())
		default:
			if fault.KindOf(err) == 0 {
				c.logger.Error("Request failed", "type", msg.Type, "error", err)
			}
			c.sendError(msg, fault.CodeOf(err), err.Error())
		}
		return
	}
	c.reply(msg, protocol.TypeAck, protocol.Ack{Type: msg.Type, Result: result})
}

func (c *Connection) reply(req *protocol.Message, t protocol.MessageType, data any) {
	now := c.srv.clock.Now()
	var (
		msg *protocol.Message
		err error
	)
	if req != nil {
		msg, err = req.Reply(t, data, now)
	} else {
		msg, err = protocol.NewMessage(t, data, now)
	}
	if err != nil {
		c.logger.Error("Failed to create message", "type", t, "error", err)
		return
	}
	_ = c.SendMessage(msg) // Ignore send errors
}

// sendError sends an error message to the client
func (c *Connection) sendError(req *protocol.Message, code, message string) {
	c.reply(req, protocol.TypeError, protocol.Error{Code: code, Message: message})
}
