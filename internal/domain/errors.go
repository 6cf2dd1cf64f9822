package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no live room has the requested code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidCode is returned when a room code has the wrong shape.
	ErrInvalidCode = errors.New("invalid room code")
	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrUsernameTaken is returned when the username already exists in the room.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrGameStarted is returned when joining a room that left the lobby.
	ErrGameStarted = errors.New("game already started")
	// ErrBadPassword is returned when the manager password does not match.
	ErrBadPassword = errors.New("bad password")
	// ErrAlreadyJoined is returned when a connection is already bound to a room.
	ErrAlreadyJoined = errors.New("connection already in a room")
	// ErrNotManager is returned when a manager token does not match the room.
	ErrNotManager = errors.New("not the room manager")
	// ErrQuestionSetNotFound indicates the question bank has no such set.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrNoQuestions indicates a question set that cannot be played.
	ErrNoQuestions = errors.New("question set has no questions")
)

// Error codes reported to clients.
const (
	CodeRoomNotFound      = "ROOM_NOT_FOUND"
	CodeInvalidCodeFormat = "INVALID_CODE_FORMAT"
	CodeInvalidUsername   = "INVALID_USERNAME"
	CodeUsernameTaken     = "USERNAME_TAKEN"
	CodeGameStarted       = "GAME_ALREADY_STARTED"
	CodeBadPassword       = "BAD_PASSWORD"
	CodeAlreadyJoined     = "ALREADY_JOINED"
	CodeNotManager        = "NOT_MANAGER"
	CodeUnavailable       = "UNAVAILABLE"
	CodeRateLimited       = "RATE_LIMITED"
	CodeBadRequest        = "BAD_REQUEST"
)

// ValidationError is a client-facing rejection with a stable code.
type ValidationError struct {
	Code    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ValidationError wrapping a sentinel.
func Invalid(code string, err error, message string) *ValidationError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &ValidationError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the client-facing code from err.
func ErrorCode(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	return CodeUnavailable
}
