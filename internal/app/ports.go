package app

import (
	"context"

	"trivia-room-service/internal/domain"
)

// RoomStore abstracts where room state lives (in-memory, Redis, etc).
// Only the engine goroutine writes; readers may call Get and Codes concurrently.
type RoomStore interface {
	Get(ctx context.Context, code string) (domain.Room, bool, error)
	Set(ctx context.Context, room domain.Room) error
	Delete(ctx context.Context, code string) error
	Codes(ctx context.Context) ([]string, error)
}

// QuestionRepository loads question sets (from cache/backing store).
type QuestionRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}
