package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"churchbot/internal/app"
	"churchbot/internal/auth"
	"churchbot/internal/bot"
	"churchbot/internal/cache"
	"churchbot/internal/server"
	"churchbot/internal/session"
	"churchbot/internal/sheets"
	"churchbot/internal/telegram"

	"github.com/rs/zerolog/log"
)

func main() {
	app.SetupEnvironment()
	cfg := app.LoadConfig()

	ctx := context.Background()

	sheetsClient, err := sheets.NewClient(ctx, cfg.CredentialsFile, cfg.SheetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sheets client")
	}

	store := cache.NewStore(sheetsClient)
	authMgr := auth.NewManager(store, sheetsClient, cfg.MainAdminID,
		cfg.UsersSheet, cfg.AccessLogSheet, cache.DefaultSheet)

	sessions := buildSessionStore(ctx, cfg)

	tgClient, err := telegram.NewClient(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create telegram client")
	}

	chatBot := bot.New(store, authMgr, sessions, tgClient, cfg)
	handler := server.NewHandler(chatBot, tgClient, authMgr, store, sessions, cfg)

	// Warm the mirrors so the first conversation does not pay the cold read.
	if count, err := authMgr.RefreshAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial cache warmup failed; mirrors will fill on demand")
	} else {
		log.Info().Int("records", count).Msg("Cache warmed up")
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go runSessionSweeper(sweepCtx, sessions)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.Routes(),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Int("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	<-stop
	log.Info().Msg("Shutting down")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

// buildSessionStore selects the session backing. Redis failures fall back to
// the in-process map so a broken cache never keeps the bot down.
func buildSessionStore(ctx context.Context, cfg *app.Config) session.Store {
	timeout := time.Duration(cfg.SessionTimeoutMinutes) * time.Minute

	if cfg.SessionStorage == "redis" && cfg.RedisURL != "" {
		store, err := session.NewRedisStore(ctx, cfg.RedisURL, timeout)
		if err == nil {
			log.Info().Msg("Using redis session storage")
			return store
		}
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory sessions")
	}

	log.Info().Msg("Using in-memory session storage")
	return session.NewMemoryStore(timeout)
}

// runSessionSweeper drops expired sessions every few minutes. A no-op for
// backings with native expiry.
func runSessionSweeper(ctx context.Context, sessions session.Store) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped, err := sessions.SweepExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Session sweep failed")
				continue
			}
			if dropped > 0 {
				log.Debug().Int("dropped", dropped).Msg("Swept expired sessions")
			}
		}
	}
}
