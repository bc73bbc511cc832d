package custody

import (
	"encoding/json"
	"testing"

	"github.com/lox/teenpatti/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomIDOnlyRandomizesPrefix(t *testing.T) {
	rng := randutil.New(3)
	distinct := make(map[RoomID]bool)
	for range 200 {
		id := NewRoomID(rng)
		for i := RoomIDRandomBytes; i < len(id); i++ {
			require.Zero(t, id[i], "byte %d of %s", i, id)
		}
		distinct[id] = true
	}
	assert.Greater(t, len(distinct), 190)
}

func TestParseRoomID(t *testing.T) {
	id := RoomID{0xa1, 0xb2, 0xc3}
	full := id.String()
	assert.Len(t, full, 66)
	assert.Equal(t, "0xa1b2c3", id.Short())

	for _, s := range []string{full, "0xa1b2c3", "A1B2C3", " 0xa1b2c3 "} {
		got, err := ParseRoomID(s)
		require.NoError(t, err, s)
		assert.Equal(t, id, got, s)
	}

	for _, s := range []string{"", "0x", "0xabc", "0xzz", full + "00"} {
		_, err := ParseRoomID(s)
		assert.Error(t, err, s)
	}
}

func TestRoomIDJSON(t *testing.T) {
	type wrapper struct {
		Room RoomID `json:"room"`
	}
	b, err := json.Marshal(wrapper{Room: RoomID{0x01, 0x02, 0x03}})
	require.NoError(t, err)

	var back wrapper
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, RoomID{0x01, 0x02, 0x03}, back.Room)
	assert.False(t, back.Room.IsZero())
	assert.True(t, RoomID{}.IsZero())
}
