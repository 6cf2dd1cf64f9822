package app

import (
	"crypto/subtle"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alexedwards/argon2id"
	"trivia-room-service/internal/domain"
)

const (
	minUsernameLength = 4
	maxUsernameLength = 20
)

// Validator rejects malformed client input before it reaches a room.
type Validator struct {
	codeLength   int
	password     string
	passwordHash string
}

// NewValidator builds a validator. passwordHash, when set, is an argon2id encoded
// hash and takes precedence over the plain password.
func NewValidator(codeLength int, password, passwordHash string) *Validator {
	if codeLength <= 0 {
		codeLength = 6
	}
	return &Validator{codeLength: codeLength, password: password, passwordHash: passwordHash}
}

// NormalizeCode trims and upper-cases a room code as typed by a player.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RoomCode checks the fixed-length alphanumeric shape of a code.
func (v *Validator) RoomCode(code string) error {
	if len(code) != v.codeLength {
		return domain.Invalid(domain.CodeInvalidCodeFormat, domain.ErrInvalidCode, "Invalid invite code")
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return domain.Invalid(domain.CodeInvalidCodeFormat, domain.ErrInvalidCode, "Invalid invite code")
		}
	}
	return nil
}

// Username checks length and printable characters.
func (v *Validator) Username(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.Invalid(domain.CodeInvalidUsername, domain.ErrInvalidUsername, "Username cannot be empty")
	}
	n := utf8.RuneCountInString(name)
	if n < minUsernameLength {
		return domain.Invalid(domain.CodeInvalidUsername, domain.ErrInvalidUsername, "Username cannot be less than 4 characters")
	}
	if n > maxUsernameLength {
		return domain.Invalid(domain.CodeInvalidUsername, domain.ErrInvalidUsername, "Username cannot exceed 20 characters")
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return domain.Invalid(domain.CodeInvalidUsername, domain.ErrInvalidUsername, "Username contains invalid characters")
		}
	}
	return nil
}

// Password checks the shared manager password.
func (v *Validator) Password(candidate string) error {
	if v.passwordHash != "" {
		match, err := argon2id.ComparePasswordAndHash(candidate, v.passwordHash)
		if err != nil || !match {
			return domain.Invalid(domain.CodeBadPassword, domain.ErrBadPassword, "Bad Password")
		}
		return nil
	}
	if v.password == "" || subtle.ConstantTimeCompare([]byte(candidate), []byte(v.password)) != 1 {
		return domain.Invalid(domain.CodeBadPassword, domain.ErrBadPassword, "Bad Password")
	}
	return nil
}
