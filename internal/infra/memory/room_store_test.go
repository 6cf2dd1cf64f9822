package memory

import (
	"context"
	"testing"

	"trivia-room-service/internal/domain"
)

func TestRoomStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewRoomStore()

	if _, ok, _ := store.Get(ctx, "ABC234"); ok {
		t.Fatalf("expected empty store")
	}

	room := domain.Room{Code: "ABC234", Status: domain.StatusRoomOpen}
	if err := store.Set(ctx, room); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "ABC234"); !ok {
		t.Fatalf("expected room present")
	}

	codes, _ := store.Codes(ctx)
	if len(codes) != 1 || codes[0] != "ABC234" {
		t.Fatalf("unexpected codes %v", codes)
	}

	if err := store.Delete(ctx, "ABC234"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "ABC234"); ok {
		t.Fatalf("expected room removed")
	}
}

func TestRoomStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewRoomStore()
	_ = store.Set(ctx, domain.Room{
		Code:    "ABC234",
		Players: []domain.Player{{ID: "p1", Username: "Alice"}},
	})

	room, _, _ := store.Get(ctx, "ABC234")
	room.Players[0].Points = 500

	again, _, _ := store.Get(ctx, "ABC234")
	if again.Players[0].Points != 0 {
		t.Fatalf("expected stored room untouched, got %d points", again.Players[0].Points)
	}
}
