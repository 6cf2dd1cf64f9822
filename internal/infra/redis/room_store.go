package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"trivia-room-service/internal/domain"
)

const roomKeyPrefix = "trivia:room:"

// RoomStore keeps each room as a JSON document with a sliding TTL, so rooms
// abandoned without a reset eventually disappear.
//
// Writes are last-writer-wins; the store relies on a single engine owning
// every room it writes.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{client: client, ttl: ttl}
}

func (s *RoomStore) Get(ctx context.Context, code string) (domain.Room, bool, error) {
	data, err := s.client.Get(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Room{}, false, nil
	}
	if err != nil {
		return domain.Room{}, false, fmt.Errorf("get room %s: %w", code, err)
	}
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return domain.Room{}, false, fmt.Errorf("decode room %s: %w", code, err)
	}
	return room, true, nil
}

func (s *RoomStore) Set(ctx context.Context, room domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}
	if err := s.client.Set(ctx, s.key(room.Code), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set room %s: %w", room.Code, err)
	}
	return nil
}

func (s *RoomStore) Delete(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, s.key(code)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

func (s *RoomStore) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	iter := s.client.Scan(ctx, 0, roomKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, strings.TrimPrefix(iter.Val(), roomKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan rooms: %w", err)
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *RoomStore) key(code string) string {
	return roomKeyPrefix + code
}
