package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-room-service/internal/app"
	"quiz-room-service/internal/config"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
	pgloader "quiz-room-service/internal/infra/postgres"
	infraredis "quiz-room-service/internal/infra/redis"
	transport "quiz-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game-room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	roomTTL := config.TTLDuration(cfg.Room.TTL, time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestionSets())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		questionRepo = infraredis.NewQuestionRepository(redisClient, loader, quizTTL)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, quizTTL)
	}

	var store app.StateStore
	if redisClient != nil {
		store = infraredis.NewStateStore(redisClient, roomTTL)
	} else {
		store = memory.NewStateStore()
	}

	opts := app.Options{
		QuestionTime: config.TTLDuration(cfg.Quiz.QuestionTime, 0),
	}
	if pool == nil {
		// Demo mode without a quiz database: rooms created (or joined)
		// without a quiz id play the sample set.
		set := sampleSet()
		opts.DefaultSet = &set
	}

	directory := app.NewDirectory(store, questionRepo, opts)
	wsHandler := transport.NewWSHandler(directory)
	roomHandler := transport.NewRoomHandler(directory)

	router := httprouter.New()
	router.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Write([]byte("ok"))
	})
	router.POST("/rooms", roomHandler.Create)
	router.GET("/rooms/:code", roomHandler.Validate)
	router.GET("/rooms/:code/state", roomHandler.State)
	router.GET("/ws/:code", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz room service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleSet is demo content only; production rooms load their questions from
// the quiz store by id.
func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:    "sample",
		Title: "General Knowledge Warmup",
		Questions: []domain.Question{
			{
				Text:               "What is 2 + 2?",
				Options:            []string{"3", "4", "5"},
				CorrectOptionIndex: 1,
				Order:              0,
			},
			{
				Text:               "Which planet is known as the Red Planet?",
				Options:            []string{"Venus", "Jupiter", "Mars"},
				CorrectOptionIndex: 2,
				Order:              1,
			},
			{
				Text:               "How many continents are there?",
				Options:            []string{"5", "6", "7", "8"},
				CorrectOptionIndex: 2,
				Order:              2,
			},
		},
	}
}

func sampleQuestionSets() map[string]domain.QuestionSet {
	set := sampleSet()
	return map[string]domain.QuestionSet{set.ID: set}
}
