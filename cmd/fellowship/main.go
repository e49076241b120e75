package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/example/fellowship-api/internal/application"
	"github.com/example/fellowship-api/internal/calendar/googlecal"
	"github.com/example/fellowship-api/internal/config"
	"github.com/example/fellowship-api/internal/credentials"
	httptransport "github.com/example/fellowship-api/internal/http"
	"github.com/example/fellowship-api/internal/maintenance"
	"github.com/example/fellowship-api/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Bootstrap(context.Background()); err != nil {
		logger.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	groupRepo := sqlite.NewGroupRepository(pool)
	userRepo := sqlite.NewUserRepository(pool)
	credentialRepo := sqlite.NewCredentialRepository(pool)

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{calendarapi.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
	credentialStore := credentials.NewStore(credentialRepo, oauthConfig, cfg.CredentialCacheTTL, now)
	calendarClient := googlecal.NewClient(credentialStore, idGenerator, logger)

	groupService := application.NewGroupService(groupRepo, userRepo, credentialStore, calendarClient, idGenerator, now, logger)
	userService := application.NewUserService(userRepo, idGenerator, now, logger)

	refresher := maintenance.NewRefresher(groupRepo, now, logger)
	if err := refresher.Start(cfg.RefreshSchedule); err != nil {
		logger.Error("failed to start next occurrence refresher", "error", err)
		os.Exit(1)
	}
	defer refresher.Stop()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Users:          httptransport.NewUserHandler(userService, logger),
		Groups:         httptransport.NewGroupHandler(groupService, logger),
		Middleware:     []func(http.Handler) http.Handler{httptransport.RequestLogger(logger, idGenerator)},
		AuthMiddleware: httptransport.RequireUser(userService, logger),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("fellowship API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
