package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"trivia-room-service/internal/domain"
)

type questionSetRow struct {
	bun.BaseModel `bun:"table:question_sets"`

	ID        string          `bun:"id,pk"`
	Subject   string          `bun:"subject,notnull"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

// Seeder upserts question sets into the question_sets table.
type Seeder struct {
	db  *bun.DB
	now func() time.Time
}

func NewSeeder(db *bun.DB) *Seeder {
	return &Seeder{db: db, now: time.Now}
}

// Upsert writes every set, replacing existing rows with the same id.
func (s *Seeder) Upsert(ctx context.Context, sets []domain.QuestionSet) (int, error) {
	if len(sets) == 0 {
		return 0, nil
	}
	rows := make([]questionSetRow, 0, len(sets))
	for _, set := range sets {
		data, err := json.Marshal(set.Questions)
		if err != nil {
			return 0, fmt.Errorf("marshal question set %s: %w", set.ID, err)
		}
		rows = append(rows, questionSetRow{ID: set.ID, Subject: set.Subject, Data: data, UpdatedAt: s.now()})
	}

	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("subject = EXCLUDED.subject").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("upsert question sets: %w", err)
	}
	return len(rows), nil
}
