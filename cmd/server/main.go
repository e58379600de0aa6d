package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokodesk/backend/internal/config"
	"tokodesk/backend/internal/httpapi"
	"tokodesk/backend/internal/niftipay"
	"tokodesk/backend/internal/service"
	"tokodesk/backend/internal/session"
	"tokodesk/backend/internal/store"
	"tokodesk/backend/internal/store/memory"
	pgstore "tokodesk/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		} else {
			repo = pg
			closers = append(closers, pg.Close)
			log.Println("repository: postgres")
		}
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	sessions := session.Store(session.NewMemoryStore())
	if cfg.RedisAddr != "" {
		redisSessions := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Duration(cfg.SessionTTLHours)*time.Hour)
		if err := redisSessions.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-memory pos sessions", err)
		} else {
			sessions = redisSessions
			closers = append(closers, redisSessions.Close)
			log.Println("pos sessions: redis")
		}
	} else {
		log.Println("pos sessions: in-memory")
	}

	crypto := niftipay.New(cfg.NiftipayBaseURL, cfg.NiftipayAPIKey)
	if crypto.Configured() {
		log.Println("niftipay: configured")
	} else {
		log.Println("niftipay: not configured")
	}

	svc := service.New(repo, sessions, crypto, cfg.StoreID, cfg.Country)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("back-office listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
