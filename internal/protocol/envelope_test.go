package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateRoom(t *testing.T) {
	frame := `{
		"type": "create_room",
		"requestId": "r1",
		"timestamp": "2026-01-02T03:04:05Z",
		"data": {"name": "alice", "address": "0xA11CE", "buyIn": "100", "chainRoomId": "0xab"}
	}`

	msg, err := Parse([]byte(frame))
	require.NoError(t, err)
	assert.Equal(t, TypeCreateRoom, msg.Type)
	assert.Equal(t, "r1", msg.RequestID)

	var data CreateRoom
	require.NoError(t, msg.Decode(&data))
	assert.Equal(t, "alice", data.Name)
	assert.Equal(t, "100", data.BuyIn)
	want, err := custody.ParseRoomID("0xab")
	require.NoError(t, err)
	assert.Equal(t, want, data.ChainRoomID)
}

func TestParseSettle(t *testing.T) {
	msg, err := Parse([]byte(`{"type":"settle","data":{"claimed":[{"player":"0xa","chips":120},{"player":"0xb","chips":80}]}}`))
	require.NoError(t, err)

	var data Settle
	require.NoError(t, msg.Decode(&data))
	assert.Equal(t, []game.ChipCount{{Player: "0xa", Chips: 120}, {Player: "0xb", Chips: 80}}, data.Claimed)
}

func TestParseRejectsBadFrames(t *testing.T) {
	_, err := Parse([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMissingType)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)

	msg, err := Parse([]byte(`{"type":"bet"}`))
	require.NoError(t, err)
	var bet Bet
	assert.ErrorIs(t, msg.Decode(&bet), ErrMissingData)
}

func TestReplyKeepsRequestID(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	req := &Message{Type: TypeFold, RequestID: "abc"}

	reply, err := req.Reply(TypeError, Error{Code: "NotYourTurn", Message: "not your turn"}, now)
	require.NoError(t, err)

	raw, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "error",
		"requestId": "abc",
		"timestamp": "2026-01-02T03:04:05Z",
		"data": {"code": "NotYourTurn", "message": "not your turn"}
	}`, string(raw))
}

func TestOmitsUnboundChainRoom(t *testing.T) {
	raw, err := json.Marshal(CreateRoom{Name: "bob"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"bob"}`, string(raw))
}

func TestIsAction(t *testing.T) {
	for _, typ := range []MessageType{TypeSee, TypeBet, TypeChaal, TypeFold, TypePack, TypeShow} {
		assert.True(t, typ.IsAction(), typ)
	}
	assert.False(t, TypeSettle.IsAction())
	assert.False(t, TypeJoinRoom.IsAction())
}
