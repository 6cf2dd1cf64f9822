package http

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trivia-room-service/internal/app"
)

func TestDecodeAcceptsBothPayloadShapes(t *testing.T) {
	cmd, err := Decode("c1", "player:selectedAnswer", json.RawMessage(`2`))
	require.NoError(t, err)
	assert.Equal(t, app.SubmitAnswer{Conn: "c1", AnswerIndex: 2}, cmd)

	cmd, err = Decode("c1", "player.submitAnswer", json.RawMessage(`{"answerIndex":3}`))
	require.NoError(t, err)
	assert.Equal(t, app.SubmitAnswer{Conn: "c1", AnswerIndex: 3}, cmd)

	cmd, err = Decode("c1", "manager:createRoom", json.RawMessage(`"secret"`))
	require.NoError(t, err)
	assert.Equal(t, app.CreateRoom{Conn: "c1", Password: "secret"}, cmd)

	cmd, err = Decode("c1", "manager.createRoom", json.RawMessage(`{"password":"secret"}`))
	require.NoError(t, err)
	assert.Equal(t, app.CreateRoom{Conn: "c1", Password: "secret"}, cmd)
}

func TestDecodeJoinAndRoomCommands(t *testing.T) {
	cmd, err := Decode("c1", "player:join", json.RawMessage(`{"username":"Alice","room":"ABC234"}`))
	require.NoError(t, err)
	assert.Equal(t, app.Join{Conn: "c1", Username: "Alice", Code: "ABC234"}, cmd)

	cmd, err = Decode("c1", "player:join", json.RawMessage(`{"username":"Alice","roomCode":"ABC234"}`))
	require.NoError(t, err)
	assert.Equal(t, app.Join{Conn: "c1", Username: "Alice", Code: "ABC234"}, cmd)

	cmd, err = Decode("m1", "manager:abortQuiz", json.RawMessage(`{"roomId":"ABC234"}`))
	require.NoError(t, err)
	assert.Equal(t, app.AbortQuestion{Conn: "m1", Code: "ABC234"}, cmd)

	cmd, err = Decode("m1", "manager:nextQuestion", json.RawMessage(`"ABC234"`))
	require.NoError(t, err)
	assert.Equal(t, app.NextQuestion{Conn: "m1", Code: "ABC234"}, cmd)

	cmd, err = Decode("m1", "manager:showLeaderboard", nil)
	require.NoError(t, err)
	assert.Equal(t, app.ShowLeaderboardCmd{Conn: "m1"}, cmd)

	cmd, err = Decode("m1", "manager:reconnect", json.RawMessage(`{"roomCode":"ABC234","token":"t"}`))
	require.NoError(t, err)
	assert.Equal(t, app.ReconnectManager{Conn: "m1", Code: "ABC234", Token: "t"}, cmd)

	cmd, err = Decode("m1", "manager:kickPlayer", json.RawMessage(`"player-1"`))
	require.NoError(t, err)
	assert.Equal(t, app.KickPlayer{Conn: "m1", PlayerID: "player-1"}, cmd)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	_, err := Decode("c1", "player:dance", nil)
	assert.ErrorIs(t, err, errUnknownEvent)

	_, err = Decode("c1", "player:selectedAnswer", json.RawMessage(`"two"`))
	assert.Error(t, err)

	_, err = Decode("c1", "manager:kickPlayer", json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = Decode("c1", "player:join", json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "room-ABC234", ChannelName(app.ToRoom("ABC234")))
	assert.Equal(t, "room-ABC234-manager", ChannelName(app.ToManager("ABC234")))
	assert.Empty(t, ChannelName(app.ToClient("c1")))
}
