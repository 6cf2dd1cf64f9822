// Package idgen produces room codes and opaque identifiers.
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// CodeAlphabet is the set of characters room codes are drawn from.
// Visually ambiguous characters (0/O, 1/I) are excluded.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Generator creates identifiers.
type Generator interface {
	RoomCode() (string, error)
	PlayerID() string
	Token() string
}

// Random draws room codes from crypto/rand and ids from uuid.
type Random struct {
	length int
}

func NewRandom(codeLength int) *Random {
	if codeLength <= 0 {
		codeLength = 6
	}
	return &Random{length: codeLength}
}

// CodeLength is the length of generated room codes.
func (g *Random) CodeLength() int {
	return g.length
}

func (g *Random) RoomCode() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("room code: %w", err)
	}
	out := make([]byte, g.length)
	for i := range out {
		out[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
	}
	return string(out), nil
}

func (g *Random) PlayerID() string {
	return uuid.NewString()
}

func (g *Random) Token() string {
	return uuid.NewString()
}
