package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealscout/dealscout/api"
	"github.com/dealscout/dealscout/cache"
	"github.com/dealscout/dealscout/config"
	"github.com/dealscout/dealscout/geocode"
	"github.com/dealscout/dealscout/llm"
	"github.com/dealscout/dealscout/ranker"
	"github.com/dealscout/dealscout/ratelimit"
	"github.com/dealscout/dealscout/scheduler"
	"github.com/dealscout/dealscout/scraper"
	"github.com/dealscout/dealscout/store"
	"github.com/dealscout/dealscout/ubereats"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("dealscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"db", cfg.Store.Path,
	)

	// ── 3. Open the deal store ──────────────────────────────────────
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		slog.Error("failed to open deal store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// ── 4. Build the ranking pipeline ───────────────────────────────
	estimator := llm.NewClient(cfg.Estimator, nil)
	gate := ratelimit.NewGate(cfg.Estimator.MaxRequests, cfg.Estimator.Window)
	rk := ranker.New(estimator, gate)

	// ── 5. Build the scraping stack ─────────────────────────────────
	menus := scraper.NewMenuScraper(cfg.Scraper)
	platform := ubereats.NewScraper(cfg.Scraper)
	geocoder := geocode.NewClient(cfg.Geocoder)
	search := ubereats.NewStoreSearch(cfg.Scraper, geocoder)
	cc := cache.New(cfg.Cache.MaxEntries)

	// ── 6. Scheduled re-ranking ─────────────────────────────────────
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()

	sched := scheduler.New(schedCtx, st, rk, cfg.Refresh)
	if err := sched.Register(); err != nil {
		slog.Error("failed to register refresh job", "error", err)
		os.Exit(1)
	}
	sched.Start()

	// ── 7. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(api.Deps{
		Store:       st,
		Ranker:      rk,
		Menus:       menus,
		Platform:    platform,
		StoreSearch: search,
		Cache:       cc,
		Config:      cfg,
		StartTime:   time.Now(),
	})

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	schedCancel()
	sched.Stop()

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// st.Close() runs via defer — checkpoints WAL and releases the file.
	slog.Info("dealscout stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
