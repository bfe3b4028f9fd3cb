package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/almaz-dev/eduspin/internal/db"
	"github.com/almaz-dev/eduspin/internal/handlers"
	"github.com/almaz-dev/eduspin/internal/logger"
	"github.com/almaz-dev/eduspin/internal/notify"
	"github.com/almaz-dev/eduspin/internal/repository/postgres"
	"github.com/almaz-dev/eduspin/internal/service/auth"
	"github.com/almaz-dev/eduspin/internal/service/convert"
	"github.com/almaz-dev/eduspin/internal/service/spin"
	"github.com/almaz-dev/eduspin/internal/service/user"
	"github.com/almaz-dev/eduspin/internal/service/withdrawal"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	notifier := notify.NewLogBroadcaster(log)

	authService, err := auth.NewAuthService(auth.Config{SecretKey: c.SecretKey}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(storage)
	spinService := spin.NewService(spin.Config{DailyLimit: c.SpinDailyLimit}, storage, notifier)
	withdrawalService := withdrawal.NewService(withdrawal.Config{}, storage, notifier)
	convertService := convert.NewService(convert.Config{}, storage)

	mux := handlers.NewRouter(
		authService,
		userService,
		spinService,
		withdrawalService,
		convertService,
		log,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
