package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

func TestPublisherChannels(t *testing.T) {
	p := NewPublisher(nil, "quiz")
	assert.Equal(t, "quiz:room:ABC234", p.Channel(app.ToRoom("ABC234")))
	assert.Equal(t, "quiz:room:ABC234:manager", p.Channel(app.ToManager("ABC234")))
	assert.Equal(t, "quiz:client:c1", p.Channel(app.ToClient("c1")))
}

func TestPublisherDeliversJSON(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	sub := client.Subscribe(ctx, "trivia:room:ABC234:manager")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	p := NewPublisher(client, "")
	require.NoError(t, p.Deliver(ctx, app.Message{
		To:      app.ToManager("ABC234"),
		Event:   app.EventNewPlayer,
		Payload: domain.PlayerPublic{ID: "p1", Username: "Alice"},
	}))

	select {
	case msg := <-sub.Channel():
		var env struct {
			Event   string              `json:"event"`
			Payload domain.PlayerPublic `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, "manager:newPlayer", env.Event)
		assert.Equal(t, "Alice", env.Payload.Username)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}
