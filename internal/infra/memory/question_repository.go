package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
	"trivia-room-service/internal/domain"
)

// QuestionLoader fetches question sets from a backing store (file, Postgres).
type QuestionLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionRepository caches question sets with TTL so room creation does not
// hit the backing store every time.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (r *QuestionRepository) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[setID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.set, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[setID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.set, nil
		}
		r.mu.RUnlock()

		set, err := r.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		r.mu.Lock()
		r.cache[setID] = cachedSet{
			set:       set,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// ttlWithJitter must be called with r.mu held; rnd is not safe for concurrent use.
func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves question sets from a map (tests and demos).
type StaticQuestionLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionLoader(sets map[string]domain.QuestionSet) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) LoadQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := l.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
}

// QuestionFile is the on-disk question bank layout.
type QuestionFile struct {
	Sets []domain.QuestionSet `yaml:"sets"`
}

// ReadQuestionFile parses a YAML question bank.
func ReadQuestionFile(path string) (QuestionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QuestionFile{}, fmt.Errorf("read question file: %w", err)
	}
	var file QuestionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return QuestionFile{}, fmt.Errorf("parse question file: %w", err)
	}
	for _, set := range file.Sets {
		if err := ValidateQuestionSet(set); err != nil {
			return QuestionFile{}, err
		}
	}
	return file, nil
}

// ValidateQuestionSet rejects sets a room could not play.
func ValidateQuestionSet(set domain.QuestionSet) error {
	if set.ID == "" {
		return fmt.Errorf("question set without id")
	}
	if len(set.Questions) == 0 {
		return fmt.Errorf("question set %q: %w", set.ID, domain.ErrNoQuestions)
	}
	for i, q := range set.Questions {
		switch {
		case len(q.Answers) < 2:
			return fmt.Errorf("question set %q, question %d: needs at least two answers", set.ID, i+1)
		case q.Solution < 0 || q.Solution >= len(q.Answers):
			return fmt.Errorf("question set %q, question %d: solution out of range", set.ID, i+1)
		case q.Time <= 0:
			return fmt.Errorf("question set %q, question %d: time must be positive", set.ID, i+1)
		}
	}
	return nil
}

// NewFileQuestionLoader reads every set in a YAML file once.
func NewFileQuestionLoader(path string) (*StaticQuestionLoader, error) {
	file, err := ReadQuestionFile(path)
	if err != nil {
		return nil, err
	}
	sets := make(map[string]domain.QuestionSet, len(file.Sets))
	for _, set := range file.Sets {
		sets[set.ID] = set
	}
	return NewStaticQuestionLoader(sets), nil
}
