package custody

import (
	"encoding/hex"
	"fmt"
	rand "math/rand/v2"
	"strings"
)

// RoomIDRandomBytes is how many leading bytes of a RoomID are random
const RoomIDRandomBytes = 3

// RoomID identifies a room on the custody chain. Only the first three bytes
// are random and the other 29 are zero, so there are 2^24 possible ids.
// Collisions are rejected by CreateRoom rather than prevented.
type RoomID [32]byte

// NewRoomID draws a room id from rng
func NewRoomID(rng *rand.Rand) RoomID {
	var id RoomID
	v := rng.Uint32()
	id[0] = byte(v >> 16)
	id[1] = byte(v >> 8)
	id[2] = byte(v)
	return id
}

// ParseRoomID parses the 0x-prefixed hex form produced by String. Short
// inputs are taken as the leading bytes and zero padded, so "0xa1b2c3" is the
// same room as its full 64 digit form.
func ParseRoomID(s string) (RoomID, error) {
	var id RoomID
	digits := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if digits == "" || len(digits)%2 != 0 || len(digits) > 2*len(id) {
		return id, fmt.Errorf("invalid room id %q", s)
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return id, fmt.Errorf("invalid room id %q: %w", s, err)
	}
	copy(id[:], b)
	return id, nil
}

func (id RoomID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// Short returns the random prefix, which is enough to tell rooms apart in logs
func (id RoomID) Short() string {
	return "0x" + hex.EncodeToString(id[:RoomIDRandomBytes])
}

// IsZero reports whether id is unset
func (id RoomID) IsZero() bool {
	return id == RoomID{}
}

func (id RoomID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *RoomID) UnmarshalText(b []byte) error {
	parsed, err := ParseRoomID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
