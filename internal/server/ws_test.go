package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lox/teenpatti/internal/auth"
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/game"
	"github.com/lox/teenpatti/internal/protocol"
	"github.com/lox/teenpatti/internal/registry"
	"github.com/lox/teenpatti/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ protocol.MessageType, requestID string, data any) {
	t.Helper()
	msg, err := protocol.NewMessage(typ, data, time.Now())
	require.NoError(t, err)
	msg.RequestID = requestID
	require.NoError(t, conn.WriteJSON(msg))
}

// expect reads frames until one of type typ arrives, discarding the rest
func expect(t *testing.T, conn *websocket.Conn, typ protocol.MessageType) *protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		msg, err := protocol.Parse(frame)
		require.NoError(t, err)
		if msg.Type == typ {
			return msg
		}
	}
}

type snapshotAck struct {
	Type   protocol.MessageType `json:"type"`
	Result game.Snapshot        `json:"result"`
}

func TestWebSocketRound(t *testing.T) {
	s := newTestServer(t, false)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	c1, c2 := dial(t, ts), dial(t, ts)

	send(t, c1, protocol.TypeCreateRoom, "c1", protocol.CreateRoom{Name: "alice"})
	msg := expect(t, c1, protocol.TypeAck)
	assert.Equal(t, "c1", msg.RequestID)
	var created snapshotAck
	require.NoError(t, msg.Decode(&created))
	assert.Equal(t, protocol.TypeCreateRoom, created.Type)
	roomID := created.Result.RoomID
	require.NotEmpty(t, roomID)

	send(t, c2, protocol.TypeJoinRoom, "j1", protocol.JoinRoom{RoomID: strings.ToUpper(roomID), Name: "bob"})
	var joined snapshotAck
	require.NoError(t, expect(t, c2, protocol.TypeAck).Decode(&joined))
	require.Len(t, joined.Result.Players, 2)
	names := map[string]string{}
	for _, p := range joined.Result.Players {
		names[p.ID] = p.Name
	}

	send(t, c1, protocol.TypeStartRound, "s1", nil)
	var hand registry.PrivateHand
	require.NoError(t, expect(t, c1, protocol.TypePrivateHand).Decode(&hand))
	assert.Len(t, hand.Cards, 3)
	assert.Equal(t, "alice", names[hand.Player])

	var turn registry.TurnChanged
	require.NoError(t, expect(t, c1, protocol.TypeTurnChanged).Decode(&turn))
	assert.Equal(t, 20, turn.Pot)
	assert.Equal(t, "s1", expect(t, c1, protocol.TypeAck).RequestID)

	mover, other := c1, c2
	if names[turn.Player] == "bob" {
		mover, other = c2, c1
	}

	send(t, mover, protocol.TypePack, "f1", nil)
	var ended registry.RoundEnded
	require.NoError(t, expect(t, other, protocol.TypeRoundEnded).Decode(&ended))
	assert.Equal(t, game.EndByFold, ended.Reason)
	require.Len(t, ended.Winners, 1)
	assert.NotEqual(t, turn.Player, ended.Winners[0])
	assert.Equal(t, 20, ended.Pot)
	assert.Equal(t, "f1", expect(t, mover, protocol.TypeAck).RequestID)

	send(t, c1, protocol.TypeListRooms, "l1", nil)
	var list struct {
		Result []registry.Summary `json:"result"`
	}
	require.NoError(t, expect(t, c1, protocol.TypeAck).Decode(&list))
	require.Len(t, list.Result, 1)
	assert.Equal(t, 1, list.Result[0].Round)
}

func TestWebSocketErrors(t *testing.T) {
	s := newTestServer(t, false)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	conn := dial(t, ts)

	readError := func(requestID string) protocol.Error {
		t.Helper()
		msg := expect(t, conn, protocol.TypeError)
		assert.Equal(t, requestID, msg.RequestID)
		var e protocol.Error
		require.NoError(t, msg.Decode(&e))
		return e
	}

	send(t, conn, "dance", "r1", nil)
	assert.Equal(t, "UnknownMessageType", readError("r1").Code)

	send(t, conn, protocol.TypeJoinRoom, "r2", nil)
	assert.Equal(t, "InvalidMessage", readError("r2").Code)

	send(t, conn, protocol.TypeFold, "r3", nil)
	assert.Equal(t, "NotSeated", readError("r3").Code)

	send(t, conn, protocol.TypeJoinRoom, "r4", protocol.JoinRoom{RoomID: "zzzzzzzz", Name: "bob"})
	assert.Equal(t, "RoomNotFound", readError("r4").Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "InvalidMessage", readError("").Code)

	raw, err := json.Marshal(map[string]any{"type": "bet", "requestId": "r5", "data": map[string]any{"amount": "ten"}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
	assert.Equal(t, "InvalidMessage", readError("r5").Code)
}

func TestWebSocketDisconnectFreesSeat(t *testing.T) {
	s := newTestServer(t, false)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	send(t, conn, protocol.TypeCreateRoom, "c1", protocol.CreateRoom{Name: "alice"})
	expect(t, conn, protocol.TypeAck)
	require.Len(t, s.registry.Rooms(), 1)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return len(s.registry.Rooms()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketSettleRequiresToken(t *testing.T) {
	s := newTestServer(t, true)
	s.auth = auth.NewStaticValidator("ops-token", "operator")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	c1, c2 := dial(t, ts), dial(t, ts)
	send(t, c1, protocol.TypeCreateRoom, "c1", protocol.CreateRoom{Name: "alice", Address: alice, BuyIn: "100"})
	var created snapshotAck
	require.NoError(t, expect(t, c1, protocol.TypeAck).Decode(&created))
	roomID := created.Result.RoomID

	send(t, c2, protocol.TypeJoinRoom, "j1", protocol.JoinRoom{RoomID: roomID, Name: "bob", Address: bob})
	expect(t, c2, protocol.TypeAck)

	send(t, c1, protocol.TypeStartRound, "s1", nil)
	var turn registry.TurnChanged
	require.NoError(t, expect(t, c1, protocol.TypeTurnChanged).Decode(&turn))
	expect(t, c1, protocol.TypeAck)

	mover := c1
	if turn.Player == string(custody.NormalizeAddress(bob)) {
		mover = c2
	}
	send(t, mover, protocol.TypePack, "f1", nil)
	assert.Equal(t, "f1", expect(t, mover, protocol.TypeAck).RequestID)

	claimed, err := s.registry.ChipLedger(roomID)
	require.NoError(t, err)
	sum, err := s.registry.Summary(roomID)
	require.NoError(t, err)

	for i, token := range []string{"", "guess"} {
		requestID := fmt.Sprintf("x%d", i)
		send(t, c1, protocol.TypeSettle, requestID, protocol.Settle{Claimed: claimed, Token: token})
		msg := expect(t, c1, protocol.TypeError)
		assert.Equal(t, requestID, msg.RequestID)
		var e protocol.Error
		require.NoError(t, msg.Decode(&e))
		assert.Equal(t, "Unauthorized", e.Code)
	}

	details, err := s.contract.GetRoomDetails(context.Background(), sum.ChainRoom)
	require.NoError(t, err)
	assert.Equal(t, custody.StateActive, details.State, "a rejected settle leaves custody untouched")

	send(t, c1, protocol.TypeSettle, "ok", protocol.Settle{Claimed: claimed, Token: "ops-token"})
	var settled struct {
		Result settlement.Response `json:"result"`
	}
	msg := expect(t, c1, protocol.TypeAck)
	assert.Equal(t, "ok", msg.RequestID)
	require.NoError(t, msg.Decode(&settled))
	assert.True(t, settled.Result.Success)
	assert.Len(t, settled.Result.Payouts, 2)
}
