package app_test

import (
	"errors"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

func TestRoomCodeFormat(t *testing.T) {
	v := app.NewValidator(6, "secret", "")

	assert.NoError(t, v.RoomCode("ABC234"))
	for _, code := range []string{"", "ABC23", "ABC2345", "ABC-23", "ÄBC234", "ABC 23"} {
		err := v.RoomCode(code)
		require.Error(t, err, code)
		assert.True(t, errors.Is(err, domain.ErrInvalidCode), code)
		assert.Equal(t, domain.CodeInvalidCodeFormat, domain.ErrorCode(err))
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC234", app.NormalizeCode("  abc234 "))
}

func TestUsernameRules(t *testing.T) {
	v := app.NewValidator(6, "secret", "")

	assert.NoError(t, v.Username("Alice"))
	assert.NoError(t, v.Username("Zoë!"))
	for _, name := range []string{"", "   ", "Bob", "abcdefghijklmnopqrstu", "tab\there"} {
		err := v.Username(name)
		require.Error(t, err, name)
		assert.Equal(t, domain.CodeInvalidUsername, domain.ErrorCode(err), name)
	}
}

func TestPlainPassword(t *testing.T) {
	v := app.NewValidator(6, "secret", "")
	assert.NoError(t, v.Password("secret"))

	err := v.Password("Secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadPassword)
	assert.Equal(t, "Bad Password", err.Error())
}

func TestEmptyPasswordNeverMatches(t *testing.T) {
	v := app.NewValidator(6, "", "")
	assert.ErrorIs(t, v.Password(""), domain.ErrBadPassword)
}

func TestHashedPassword(t *testing.T) {
	hash, err := argon2id.CreateHash("secret", &argon2id.Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)

	v := app.NewValidator(6, "ignored", hash)
	assert.NoError(t, v.Password("secret"))
	assert.ErrorIs(t, v.Password("ignored"), domain.ErrBadPassword)
}
