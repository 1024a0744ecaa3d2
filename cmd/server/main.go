package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"cvquest/internal/catalog"
	"cvquest/internal/config"
	"cvquest/internal/database"
	"cvquest/internal/handlers"
	"cvquest/internal/keys"
	"cvquest/internal/logger"
	"cvquest/internal/repository"
	"cvquest/internal/security"
	"cvquest/internal/service"
	"cvquest/internal/storage"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status := handlers.NewStartupStatus(log,
		handlers.StepDatabase, handlers.StepMigrations, handlers.StepCatalog, handlers.StepServices)

	// The listener comes up first so /healthz can report startup progress.
	var app atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", status.ShowStartupStatus)
	mux.Handle("/", status.RequireReady(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.Load().(http.Handler).ServeHTTP(w, r)
	})))

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("Server starting", "addr", addr, "base_url", cfg.PlatformBaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	provider, closeStore, err := openStorage(cfg, log, status)
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer closeStore()

	status.SetCurrentStep(handlers.StepCatalog)
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal("Failed to load catalog", "path", cfg.CatalogPath, "error", err)
	}
	log.Info("Catalog loaded", "games", len(cat.Games()), "paths", len(cat.Paths()))
	status.CompleteStep(handlers.StepCatalog)

	status.SetCurrentStep(handlers.StepServices)
	mailer, err := service.NewKeyMailer(ctx, service.MailerConfig{
		Region:          cfg.AWSRegion,
		FromEmail:       cfg.SESFromEmail,
		FromName:        cfg.SESFromName,
		PlatformBaseURL: cfg.PlatformBaseURL,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize key mailer", "error", err)
	}
	if cfg.KeySecret == config.DefaultKeySecret {
		log.Warn("Using the shared default key secret")
	}

	mw := handlers.NewMiddleware(
		security.NewRateLimiter(ctx, cfg.RateLimitRequests, cfg.RateLimitWindow),
		security.NewCSRFGenerator(cfg.CSRFSecret),
		log,
	)
	h := handlers.New(handlers.Options{
		Storage:      provider,
		Catalog:      cat,
		Codec:        keys.NewCodec(cfg.KeySecret),
		Probe:        keys.NewCanvasProbe(),
		Mailer:       mailer,
		ExportSecret: cfg.ExportSecret,
		BaseURL:      cfg.PlatformBaseURL,
		Log:          log,
	}, mw)
	app.Store(h.Routes())
	status.CompleteStep(handlers.StepServices)
	status.MarkReady()
	log.Info("Server ready", "addr", addr)

	<-ctx.Done()
	log.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}

// openStorage connects the origin storage. DB_TYPE=memory keeps everything in
// process, which is handy for demos and loses all progress on restart.
func openStorage(cfg *config.Config, log *logger.Logger, status *handlers.StartupStatus) (storage.Provider, func(), error) {
	status.SetCurrentStep(handlers.StepDatabase)
	if cfg.DatabaseType == "memory" {
		log.Warn("Using in-memory storage, progress is lost on restart")
		status.CompleteStep(handlers.StepDatabase)
		status.CompleteStep(handlers.StepMigrations)
		return storage.NewMemoryProvider(), func() {}, nil
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Database connection established", "type", cfg.DatabaseType)
	status.CompleteStep(handlers.StepDatabase)

	status.SetCurrentStep(handlers.StepMigrations)
	applied, err := db.Migrate()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if cfg.MigrationsPath != "" {
		extra, err := db.RunMigrations(cfg.MigrationsPath)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		applied = append(applied, extra...)
	}
	log.Info("Migrations completed successfully", "applied", applied)
	status.CompleteStep(handlers.StepMigrations)

	return repository.NewOriginRepository(db), func() { db.Close() }, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
