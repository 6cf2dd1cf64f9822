package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	pgloader "trivia-room-service/internal/infra/postgres"
	pgmigrations "trivia-room-service/internal/infra/postgres/migrations"
	infraredis "trivia-room-service/internal/infra/redis"
)

const roomCode = "QUIZ42"

func TestGameRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, sampleSet())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	sub := redisClient.PSubscribe(ctx, "trivia:room:"+roomCode+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("psubscribe: %v", err)
	}

	questions := infraredis.NewQuestionRepository(redisClient, pgloader.NewQuestionLoader(pool), 5*time.Minute)
	store := infraredis.NewRoomStore(redisClient, 5*time.Minute)
	sched := app.NewManualScheduler(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	engine := app.NewEngine(store, questions, app.Fanout{infraredis.NewPublisher(redisClient, "trivia")}, app.Options{
		Rules:       app.Rules{QuestionCooldown: 3 * time.Second, MinPlayers: 1},
		QuestionSet: "capitals",
		GracePeriod: 10 * time.Second,
		Validator:   app.NewValidator(6, "PASSWORD", ""),
		IDs:         &fixedIDs{},
		Clock:       sched.Now,
		Scheduler:   sched,
	})

	runCtx, cancel := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = engine.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-runDone
	}()

	do := func(cmd app.Command) {
		t.Helper()
		if err := engine.Dispatch(ctx, cmd); err != nil {
			t.Fatalf("dispatch %T: %v", cmd, err)
		}
		if err := engine.Sync(ctx); err != nil {
			t.Fatalf("sync: %v", err)
		}
	}
	advance := func(d time.Duration) {
		t.Helper()
		sched.Advance(d)
		if err := engine.Sync(ctx); err != nil {
			t.Fatalf("sync: %v", err)
		}
	}

	do(app.CreateRoom{Conn: "mgr", Password: "PASSWORD"})
	do(app.Join{Conn: "c1", Username: "Alice", Code: roomCode})
	do(app.Join{Conn: "c2", Username: "Bobby", Code: roomCode})
	do(app.StartGame{Conn: "mgr", Code: roomCode})
	advance(3 * time.Second)
	advance(2 * time.Second)
	do(app.SubmitAnswer{Conn: "c2", AnswerIndex: 1})
	do(app.SubmitAnswer{Conn: "c1", AnswerIndex: 0})

	room, ok, err := store.Get(ctx, roomCode)
	if err != nil || !ok {
		t.Fatalf("room not stored: ok=%v err=%v", ok, err)
	}
	if room.Status != domain.StatusResultsReveal {
		t.Fatalf("expected early reveal, got %s", room.Status)
	}
	points := map[string]int{}
	for _, p := range room.Players {
		points[p.Username] = p.Points
	}
	if points["Bobby"] != 1080 || points["Alice"] != 0 {
		t.Fatalf("unexpected points %v", points)
	}

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !seen["manager:newPlayer"] || !seen["game:status"] {
		select {
		case msg := <-sub.Channel():
			var env infraredis.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			seen[string(env.Event)] = true
		case <-deadline:
			t.Fatalf("expected published notifications, saw %v", seen)
		}
	}
}

type fixedIDs struct{ n int }

func (f *fixedIDs) RoomCode() (string, error) { return roomCode, nil }

func (f *fixedIDs) PlayerID() string {
	f.n++
	return fmt.Sprintf("player-%d", f.n)
}

func (f *fixedIDs) Token() string { return "manager-token" }

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// seedQuestions migrates the schema and upserts set through the bun seeder.
func seedQuestions(t *testing.T, ctx context.Context, dsn string, set domain.QuestionSet) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	n, err := pgloader.NewSeeder(db).Upsert(ctx, []domain.QuestionSet{set})
	if err != nil || n != 1 {
		t.Fatalf("seed questions: n=%d err=%v", n, err)
	}
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:      "capitals",
		Subject: "Capitals",
		Questions: []domain.Question{
			{Text: "Capital of France?", Answers: []string{"Berlin", "Paris", "Rome"}, Solution: 1, Time: 10, Cooldown: 3},
			{Text: "Capital of Italy?", Answers: []string{"Rome", "Milan"}, Solution: 0, Time: 10, Cooldown: 3},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
