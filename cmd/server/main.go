package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdg-garage/garage-fit-api/internal/auth"
	"github.com/gdg-garage/garage-fit-api/internal/award"
	"github.com/gdg-garage/garage-fit-api/internal/catalog"
	"github.com/gdg-garage/garage-fit-api/internal/checker"
	"github.com/gdg-garage/garage-fit-api/internal/config"
	"github.com/gdg-garage/garage-fit-api/internal/database"
	"github.com/gdg-garage/garage-fit-api/internal/guilds"
	"github.com/gdg-garage/garage-fit-api/internal/handlers"
	"github.com/gdg-garage/garage-fit-api/internal/harness"
	"github.com/gdg-garage/garage-fit-api/internal/idmap"
	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"github.com/gdg-garage/garage-fit-api/internal/notifier"
	"github.com/gdg-garage/garage-fit-api/internal/stats"
	"github.com/gdg-garage/garage-fit-api/internal/store"
	"github.com/gdg-garage/garage-fit-api/internal/tracing"
	"github.com/gdg-garage/garage-fit-api/internal/workouts"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init(ctx, lg, tracing.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			lg.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		lg.Fatal("failed to connect database", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		lg.Fatal("failed to migrate database", "error", err)
	}

	// Achievement catalog and id mapping
	cat, err := catalog.Load(cfg.CatalogPath, lg)
	if err != nil {
		lg.Fatal("failed to load catalog", "error", err)
	}
	if err := idmap.Sync(ctx, db, cat.All()); err != nil {
		lg.Fatal("failed to sync achievements", "error", err)
	}
	ids := idmap.New(idmap.NewGormSource(db), cfg.IDMapTTL, lg)

	// Statistics
	var cache stats.Cache = stats.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rc, err := stats.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			lg.Warn("redis unavailable, using in-memory stats cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rc.Close()
			cache = rc
		}
	}
	provider := stats.NewCachedProvider(stats.NewGormProvider(db), cache, cfg.StatsCacheTTL, lg)

	// Notifications
	hub := notifier.NewHub(lg, sameOrigin(cfg.FrontendURL))
	notifiers := []notifier.Notifier{hub}
	if cfg.DiscordBotToken != "" && cfg.DiscordNotificationsChannelID != "" {
		discordNotifier, err := notifier.NewDiscordNotifier(cfg.DiscordBotToken, cfg.DiscordNotificationsChannelID)
		if err != nil {
			lg.Warn("Discord notifier not initialized", "error", err)
		} else {
			notifiers = append(notifiers, discordNotifier)
		}
	}
	dispatcher := notifier.NewDispatcher(lg, notifiers...)

	// Achievement engine
	st := store.NewGormStore(db)
	engine := award.NewEngine(st, ids, cat, dispatcher, award.Options{
		MaxAttempts: cfg.AwardMaxAttempts,
		Backoff:     cfg.AwardRetryBackoff,
	}, lg)
	checks := checker.NewService(checker.NewCheckers(cat, provider, ids, st, lg), engine, st, lg).
		WithInvalidator(provider)

	workoutService := workouts.NewService(db, checks, provider, lg)
	guildService := guilds.NewService(db, checks, provider, lg)
	testHarness := harness.New(db, cat, checks, engine, st, provider, ids, lg)

	// Initialize Handlers
	authHandler := auth.NewAuthHandler(cfg, db, lg)
	h := handlers.Handlers{
		Auth:         authHandler,
		Achievements: handlers.NewAchievementHandler(cat, st, ids, checks, authHandler),
		Workouts:     handlers.NewWorkoutHandler(db, workoutService, authHandler),
		Guilds:       handlers.NewGuildHandler(guildService, authHandler),
		Admin:        handlers.NewAdminHandler(engine, testHarness, ids, authHandler, lg),
		APIKeys:      handlers.NewAPIKeyHandler(db, authHandler),
		Hub:          hub,
	}

	// Initialize Router
	r := chi.NewRouter()
	handlers.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Warn("server shutdown failed", "error", err)
		}
	}()

	// Start Server
	lg.Info("starting server", "port", cfg.Port, "achievements", len(cat.All()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("failed to start server", "error", err)
	}
}

// sameOrigin accepts WebSocket upgrades from the frontend host and from
// clients that send no Origin header.
func sameOrigin(frontendURL string) func(r *http.Request) bool {
	allowed := ""
	if u, err := url.Parse(frontendURL); err == nil {
		allowed = u.Scheme + "://" + u.Host
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}
