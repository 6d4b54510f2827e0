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

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
	infrapg "quizroom-service/internal/infra/postgres"
	pgmigrations "quizroom-service/internal/infra/postgres/migrations"
	infraredis "quizroom-service/internal/infra/redis"
	"quizroom-service/internal/repo"
)

func TestRoomLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedBank(t, ctx, pgURL, "bank-1", sampleBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	banks := memory.NewBankRepository(infrapg.NewBankLoader(pool), 5*time.Minute)
	questions, err := banks.GetBank(ctx, "bank-1")
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions from the bank, got %d", len(questions))
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	docs := infraredis.NewDocStore(redisClient)

	// Admin and student run against separate repositories sharing only
	// the store, as separate processes would.
	admin := app.NewRoomService(repo.NewRoomRepository(docs), nil)
	room := admin.CreateRoom(ctx, "integration quiz", questions, domain.ModeFullText)

	student := app.NewRoomService(repo.NewRoomRepository(docs), nil)
	ava, err := student.Join(ctx, "Ava", room.Code)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	// Rejoin under the same name returns the same identity.
	again, err := student.Join(ctx, "Ava", strings.ToLower(room.Code))
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.ID != ava.ID {
		t.Fatalf("expected idempotent rejoin, got %q and %q", ava.ID, again.ID)
	}

	admin.Start(ctx)
	admin.OpenQuestion(ctx, nil, nil)

	waitFor(t, func() bool {
		snap, ok := student.Snapshot()
		return ok && snap.AcceptingAnswers
	}, "student never saw the open question")

	student.SubmitAnswer(ctx, ava.ID, questions[0].ID, questions[0].CorrectOption, 2.5)

	waitFor(t, func() bool {
		lb := admin.Leaderboard()
		return len(lb) == 1 && lb[0].Score == 10
	}, "admin never saw the scored response")

	admin.RevealAnswers(ctx)
	admin.Advance(ctx)
	admin.Advance(ctx)

	waitFor(t, func() bool {
		snap, ok := student.Snapshot()
		return ok && snap.Status == domain.StatusEnded
	}, "student never saw the quiz end")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("%s", msg)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func seedBank(t *testing.T, ctx context.Context, dsn, bankID string, questions []domain.Question) {
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

	data, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("marshal bank: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_banks (id, questions) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET questions=EXCLUDED.questions`, bankID, string(data)); err != nil {
		t.Fatalf("insert bank: %v", err)
	}
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			Text:          "What is 2 + 2?",
			Options:       []domain.Option{{Text: "3"}, {Text: "4"}, {Text: "5"}, {Text: "22"}},
			CorrectOption: 1,
			TimeLimit:     30,
		},
		{
			ID:            2,
			Text:          "Closest planet to the sun?",
			Options:       []domain.Option{{Text: "Venus"}, {Text: "Mars"}, {Text: "Mercury"}, {Text: "Earth"}},
			CorrectOption: 2,
			TimeLimit:     20,
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
