package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomCodeShape(t *testing.T) {
	g := NewRandom(6)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := g.RoomCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected rune %q in %s", r, code)
		}
		seen[code] = true
	}
	// 32^6 codes; a handful of collisions in 200 draws would mean a broken source.
	assert.Greater(t, len(seen), 190)
}

func TestDefaultLength(t *testing.T) {
	g := NewRandom(0)
	assert.Equal(t, 6, g.CodeLength())
}

func TestIdentifiersAreUnique(t *testing.T) {
	g := NewRandom(6)
	assert.NotEqual(t, g.PlayerID(), g.PlayerID())
	assert.NotEqual(t, g.Token(), g.Token())
}
