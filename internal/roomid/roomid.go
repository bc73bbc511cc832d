// Package roomid generates the short codes players use to join off-chain
// rooms.
package roomid

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Crockford's base32, lower case. No i, l, o or u, so codes survive being
// read out loud.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of a generated code. 32^8 codes is plenty for one process.
const Length = 8

// RandSource is the randomness a Generator draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type RandSource interface {
	IntN(n int) int
}

// Generator produces room codes. It is not safe for concurrent use when
// backed by a RandSource; callers serialise access.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil source draws from crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate returns a code using crypto/rand
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate returns a new room code
func (g *Generator) Generate() string {
	code := make([]byte, Length)
	if g.randSource != nil {
		for i := range code {
			code[i] = alphabet[g.randSource.IntN(len(alphabet))]
		}
		return string(code)
	}

	var buf [Length]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	for i, b := range buf {
		code[i] = alphabet[b&0x1f]
	}
	return string(code)
}

// Normalize lower-cases a code typed by a player
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Validate checks that id looks like a generated code
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("room code must be exactly %d characters, got %d", Length, len(id))
	}
	for i, char := range id {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}
