package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trivia-room-service/internal/app"
)

// Inbound event names. Clients may use either "player:join" or "player.join".
const (
	evCheckRoom       = "player:checkRoom"
	evJoin            = "player:join"
	evSelectedAnswer  = "player:selectedAnswer"
	evSubmitAnswer    = "player:submitAnswer"
	evCreateRoom      = "manager:createRoom"
	evReconnect       = "manager:reconnect"
	evStartGame       = "manager:startGame"
	evAbortQuiz       = "manager:abortQuiz"
	evAbortQuestion   = "manager:abortQuestion"
	evSkip            = "manager:skip"
	evShowLeaderboard = "manager:showLeaderboard"
	evNextQuestion    = "manager:nextQuestion"
	evKickPlayer      = "manager:kickPlayer"
)

// InboundEvents lists every event a client may send, in canonical form.
var InboundEvents = []string{
	evCheckRoom, evJoin, evSelectedAnswer, evSubmitAnswer,
	evCreateRoom, evReconnect, evStartGame, evAbortQuiz, evAbortQuestion,
	evSkip, evShowLeaderboard, evNextQuestion, evKickPlayer,
}

var errUnknownEvent = errors.New("unsupported message type")

// CanonicalEvent rewrites the dotted alias of an event name.
func CanonicalEvent(name string) string {
	return strings.Replace(name, ".", ":", 1)
}

type joinPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	RoomCode string `json:"roomCode"`
}

type roomPayload struct {
	RoomID   string `json:"roomId"`
	RoomCode string `json:"roomCode"`
	Token    string `json:"token"`
}

// Decode turns an inbound event from conn into an engine command.
func Decode(conn, event string, raw json.RawMessage) (app.Command, error) {
	switch CanonicalEvent(event) {
	case evCheckRoom:
		code, err := stringArg(raw, "roomId", "roomCode", "room")
		if err != nil {
			return nil, err
		}
		return app.CheckRoom{Conn: conn, Code: code}, nil
	case evJoin:
		var p joinPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("join payload: %w", err)
		}
		code := p.Room
		if code == "" {
			code = p.RoomCode
		}
		return app.Join{Conn: conn, Username: p.Username, Code: code}, nil
	case evSelectedAnswer, evSubmitAnswer:
		idx, err := intArg(raw, "answerKey", "answerIndex")
		if err != nil {
			return nil, err
		}
		return app.SubmitAnswer{Conn: conn, AnswerIndex: idx}, nil
	case evCreateRoom:
		password, err := stringArg(raw, "password")
		if err != nil {
			return nil, err
		}
		return app.CreateRoom{Conn: conn, Password: password}, nil
	case evReconnect:
		p := roomArg(raw)
		return app.ReconnectManager{Conn: conn, Code: p.code(), Token: p.Token}, nil
	case evStartGame:
		return app.StartGame{Conn: conn, Code: roomArg(raw).code()}, nil
	case evAbortQuiz, evAbortQuestion, evSkip:
		return app.AbortQuestion{Conn: conn, Code: roomArg(raw).code()}, nil
	case evShowLeaderboard:
		return app.ShowLeaderboardCmd{Conn: conn, Code: roomArg(raw).code()}, nil
	case evNextQuestion:
		return app.NextQuestion{Conn: conn, Code: roomArg(raw).code()}, nil
	case evKickPlayer:
		id, err := stringArg(raw, "playerId", "id")
		if err != nil {
			return nil, err
		}
		return app.KickPlayer{Conn: conn, PlayerID: id}, nil
	}
	return nil, errUnknownEvent
}

func (p roomPayload) code() string {
	if p.RoomID != "" {
		return p.RoomID
	}
	return p.RoomCode
}

// roomArg accepts {roomId}, a bare code string or nothing.
func roomArg(raw json.RawMessage) roomPayload {
	var p roomPayload
	if json.Unmarshal(raw, &p) == nil {
		return p
	}
	var code string
	if json.Unmarshal(raw, &code) == nil {
		p.RoomID = code
	}
	return p
}

// stringArg accepts a bare JSON string or an object carrying one of keys.
func stringArg(raw json.RawMessage, keys ...string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("expected string payload")
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok && json.Unmarshal(v, &s) == nil {
			return s, nil
		}
	}
	return "", fmt.Errorf("missing %s", keys[0])
}

// intArg accepts a bare JSON number or an object carrying one of keys.
func intArg(raw json.RawMessage, keys ...string) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("expected numeric payload")
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok && json.Unmarshal(v, &n) == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("missing %s", keys[0])
}
