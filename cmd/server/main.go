package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	appauth "github.com/runsheetapp/runsheet/internal/auth"
	"github.com/runsheetapp/runsheet/internal/config"
	"github.com/runsheetapp/runsheet/internal/httpserver"
	"github.com/runsheetapp/runsheet/internal/mutation"
	"github.com/runsheetapp/runsheet/internal/store"
)

func main() {
	log.Println("Starting runsheet server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.New(pool, store.Options{TxWaitTimeout: cfg.Mutation.WaitTimeout})
	sessionManager := appauth.NewSessionManager(cfg, stor.Sessions)
	authService, err := appauth.NewService(ctx, cfg, stor, sessionManager)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	mutations := mutation.NewService(stor.Events, cfg.Mutation.ExecTimeout)

	// Periodic purge of expired sessions and revoked/expired tokens.
	scheduler := cron.New()
	_, err = scheduler.AddFunc("@every "+cfg.PurgeInterval.String(), func() {
		purgeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if n, err := stor.Sessions.DeleteExpired(purgeCtx); err != nil {
			log.Printf("[WARN] session purge failed: %v", err)
		} else if n > 0 {
			log.Printf("[INFO] purged %d expired sessions", n)
		}
		if n, err := stor.APITokens.PurgeExpired(purgeCtx); err != nil {
			log.Printf("[WARN] token purge failed: %v", err)
		} else if n > 0 {
			log.Printf("[INFO] purged %d expired tokens", n)
		}
	})
	if err != nil {
		log.Fatalf("failed to schedule purge job: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := httpserver.NewRouter(cfg, stor, authService, mutations)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
