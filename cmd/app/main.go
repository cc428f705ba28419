package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/ropl-btc/project-tasks/internal/auth"
	"github.com/ropl-btc/project-tasks/internal/config"
	"github.com/ropl-btc/project-tasks/internal/handler"
	"github.com/ropl-btc/project-tasks/internal/repo"
	"github.com/ropl-btc/project-tasks/internal/service"
	"github.com/ropl-btc/project-tasks/internal/vision"
	"github.com/ropl-btc/project-tasks/internal/worker"
)

func main() {
	issueFor := flag.String("issue-token", "", "print a signed token for the given owner id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), logger)
	if *issueFor != "" {
		token, err := verifier.Issue(*issueFor, *tokenTTL)
		if err != nil {
			logger.Fatal("failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tasks, notes, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open backend", zap.String("backend", cfg.Backend), zap.Error(err))
	}
	defer closeBackend()

	var extractor vision.Extractor
	if cfg.GeminiAPIKey != "" {
		gemini, err := vision.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			logger.Fatal("failed to create extractor", zap.Error(err))
		}
		extractor = gemini
	} else {
		logger.Info("GEMINI_API_KEY not set, image capture disabled")
	}

	pool := worker.NewPool(logger, cfg.WorkerCount, cfg.RemoteTimeout)
	pool.Start(ctx)

	taskService := service.NewTaskService(tasks, notes, pool, extractor, logger)
	go taskService.Run(ctx, cfg.RefreshInterval)

	router := handler.NewRouter(
		handler.NewTaskHandler(taskService, logger),
		handler.NewNoteHandler(taskService, logger),
		verifier.Middleware,
	)

	srv := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("backend", cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	// Drain queued remote writes before the backend closes.
	pool.Stop()
	logger.Info("Server stopped successfully")
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProd() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.TaskRepository, repo.NoteRepository, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to ping the database: %w", err)
		}
		logger.Info("Successfully connected to the Database!")
		return repo.NewTaskRepo(pool), repo.NewNoteRepo(pool), pool.Close, nil

	case config.BackendDatastore:
		client, err := repo.NewDatastoreClient(ctx, cfg.DatastoreProjectID)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Using Cloud Datastore", zap.String("project", cfg.DatastoreProjectID))
		return repo.NewDatastoreTaskRepo(client), repo.NewDatastoreNoteRepo(client), func() { client.Close() }, nil

	default:
		logger.Warn("Using in-memory backend, data is lost on restart")
		return repo.NewMemoryTaskRepo(), repo.NewMemoryNoteRepo(), func() {}, nil
	}
}
