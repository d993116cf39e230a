package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/multierr"

	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/api"
	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/config"
	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/game"
	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/gamehub"
	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/raffle"
	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/statsproxy"
	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server_failed err=%v", err)
	}
}

func run() error {
	cfg := config.Load()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return err
	}

	apiServer := api.NewServer(db, api.Options{
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	raffleStore, err := raffle.NewStore(cfg.RaffleStateFile, nil)
	if err != nil {
		db.Close()
		return err
	}
	var appender raffle.RowAppender
	if cfg.SheetWebhookURL != "" {
		appender = raffle.NewWebhookAppender(cfg.SheetWebhookURL)
	}
	raffleHandler := raffle.NewHandler(raffleStore, appender, cfg.RaffleAdminPassword)

	stats, err := statsproxy.New(statsproxy.Options{
		UpstreamURL: cfg.StatsUpstreamURL,
		PeakFile:    cfg.StatsPeakFile,
		SeedPeak:    cfg.StatsSeedPeak,
	})
	if err != nil {
		db.Close()
		return err
	}

	hub := gamehub.NewHub(gamehub.Options{
		OriginPatterns: cfg.WSOriginPatterns,
		Engine:         game.Config{Width: 800, Height: 800},
	})

	r := chi.NewRouter()
	r.Mount("/api", apiServer.Routes())
	r.Mount("/api/raffle", raffleHandler.Routes())
	r.Handle("/xmr-stats", stats)
	r.Handle("/ws/game", hub)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server_listening addr=%s admin_enabled=%t", cfg.ListenAddr, cfg.AdminToken != "")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Printf("server_shutdown signal=received")
	case err := <-errCh:
		return multierr.Append(err, db.Close())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	err = multierr.Append(err, db.Close())
	if err == nil {
		log.Printf("server_shutdown complete=true")
	}
	return err
}
