package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/config"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/idgen"
	"trivia-room-service/internal/infra/memory"
	pgloader "trivia-room-service/internal/infra/postgres"
	redisinfra "trivia-room-service/internal/infra/redis"
	transport "trivia-room-service/internal/transport/http"
)

const shutdownTimeout = 5 * time.Second

// newStartCmd builds the CLI subcommand to start the server.
func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := questionLoader(cfg, pool)
	if err != nil {
		return err
	}

	questionsTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	var store app.RoomStore
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, questionsTTL)
		store = redisinfra.NewRoomStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	} else {
		questions = memory.NewQuestionRepository(loader, questionsTTL)
		store = memory.NewRoomStore()
	}

	// Transports are built before the engine they dispatch to.
	var engine *app.Engine
	dispatcher := transport.DispatchFunc(func(ctx context.Context, cmd app.Command) error {
		return engine.Dispatch(ctx, cmd)
	})
	limits := transport.Limits{Rate: cfg.Transport.RateLimit, Burst: cfg.Transport.RateBurst}
	hub := transport.NewHub(dispatcher, limits, transport.OriginChecker(cfg.Transport.AllowedOrigins))
	sio := transport.NewSocketIO(dispatcher, limits)

	fanout := app.Fanout{hub, sio}
	if redisClient != nil {
		fanout = append(fanout, redisinfra.NewPublisher(redisClient, cfg.Redis.ChannelPrefix))
	}

	game := cfg.Game
	engine = app.NewEngine(store, questions, fanout, app.Options{
		Rules: app.Rules{
			QuestionCooldown:   config.TTLDuration(game.QuestionCooldown, 3*time.Second),
			ResultsAutoAdvance: config.TTLDuration(game.ResultsAutoAdvance, 0),
			FinishedRoomTTL:    config.TTLDuration(game.FinishedRoomTTL, 5*time.Minute),
			MinPlayers:         game.MinPlayers,
		},
		QuestionSet: cfg.Questions.Set,
		GracePeriod: config.TTLDuration(game.ManagerGracePeriod, 10*time.Second),
		Validator:   app.NewValidator(game.CodeLength, game.ManagerPassword, game.ManagerPasswordHash),
		IDs:         idgen.NewRandom(game.CodeLength),
	})

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(engine, hub, sio, transport.RouterOptions{
		PublicURL:      cfg.Server.PublicURL,
		AllowedOrigins: cfg.Transport.AllowedOrigins,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := engine.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sio.Serve(); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("question_set", cfg.Questions.Set).Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if cerr := sio.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close socket.io")
		}
		return err
	})
	return g.Wait()
}

// questionLoader prefers Postgres, then the YAML question file, then the
// built-in sample set.
func questionLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuestionLoader, error) {
	if pool != nil {
		return pgloader.NewQuestionLoader(pool), nil
	}
	if cfg.Questions.File != "" {
		loader, err := memory.NewFileQuestionLoader(cfg.Questions.File)
		if err == nil {
			return loader, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		log.Warn().Str("path", cfg.Questions.File).Msg("question file not found, using sample set")
	}
	return memory.NewStaticQuestionLoader(sampleQuestionSets(cfg.Questions.Set)), nil
}

// sampleQuestionSets provides a minimal question set so the server is playable
// without any question bank configured.
func sampleQuestionSets(id string) map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		id: {
			ID:      id,
			Subject: "Warm-up",
			Questions: []domain.Question{
				{Text: "What is 2 + 2?", Answers: []string{"3", "4", "5", "22"}, Solution: 1, Time: 15, Cooldown: 3},
				{Text: "Which planet is known as the Red Planet?", Answers: []string{"Venus", "Mars", "Jupiter", "Mercury"}, Solution: 1, Time: 15, Cooldown: 3},
				{Text: "How many sides does a hexagon have?", Answers: []string{"5", "6", "7", "8"}, Solution: 1, Time: 10, Cooldown: 3},
			},
		},
	}
}
