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
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
	"quizroom-service/internal/config"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
	infrapg "quizroom-service/internal/infra/postgres"
	infraredis "quizroom-service/internal/infra/redis"
	"quizroom-service/internal/repo"
	"quizroom-service/internal/sound"
	"quizroom-service/internal/store"
	transport "quizroom-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
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

	var docs store.DocumentStore = memory.NewDocStore()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		docs = infraredis.NewDocStore(redisClient)
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		loader = infrapg.NewBankLoader(pool)
	}
	bankTTL := config.TTLDuration(cfg.Banks.TTL, 10*time.Minute)
	banks := memory.NewBankRepository(loader, bankTTL)

	rooms := repo.NewRoomRepository(docs)
	cues := sound.New(cfg.Sound, nil)
	hub := app.NewHub(rooms, cues)
	authenticator := auth.NewStaticAuthenticator(cfg.Server.AdminToken)

	wsHandler := transport.NewWSHandler(hub, authenticator)
	roomsHandler := transport.NewRoomsHandler(hub, banks, authenticator)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/rooms", roomsHandler.CreateRoom)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

// sampleBanks seeds a demo bank when no postgres is configured.
func sampleBanks() map[string][]domain.Question {
	return map[string][]domain.Question{
		"demo": {
			{
				ID:   1,
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{Text: "3"}, {Text: "4"}, {Text: "5"}, {Text: "22"},
				},
				CorrectOption: 1,
				TimeLimit:     30,
			},
			{
				ID:   2,
				Text: "Which planet is closest to the sun?",
				Options: []domain.Option{
					{Text: "Venus"}, {Text: "Mars"}, {Text: "Mercury"}, {Text: "Earth"},
				},
				CorrectOption: 2,
				TimeLimit:     20,
			},
		},
	}
}
