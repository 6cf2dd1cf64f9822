package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trivia-room-service/internal/domain"
)

func TestRoomStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	store := NewRoomStore(newClient(mr), time.Hour)

	_, ok, err := store.Get(ctx, "ABC234")
	require.NoError(t, err)
	assert.False(t, ok)

	room := domain.Room{
		Code:          "ABC234",
		ManagerConnID: "mgr",
		Status:        domain.StatusAnswerCollection,
		Round:         3,
		Players:       []domain.Player{{ID: "p1", Username: "Alice", Points: 1080, Connected: true}},
		Answers:       []domain.AnswerSubmission{{PlayerID: "p1", SelectedIndex: 1, ElapsedMillis: 2000}},
	}
	require.NoError(t, store.Set(ctx, room))
	assert.True(t, mr.Exists("trivia:room:ABC234"))
	assert.Equal(t, time.Hour, mr.TTL("trivia:room:ABC234"))

	got, ok, err := store.Get(ctx, "ABC234")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusAnswerCollection, got.Status)
	assert.Equal(t, uint64(3), got.Round)
	assert.Equal(t, 1080, got.Players[0].Points)
	assert.Equal(t, int64(2000), got.Answers[0].ElapsedMillis)

	require.NoError(t, store.Set(ctx, domain.Room{Code: "ZZZ999"}))
	codes, err := store.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC234", "ZZZ999"}, codes)

	require.NoError(t, store.Delete(ctx, "ABC234"))
	assert.False(t, mr.Exists("trivia:room:ABC234"))
}
