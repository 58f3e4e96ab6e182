package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dcr-backend/internal/archive"
	"dcr-backend/internal/cache"
	"dcr-backend/internal/config"
	"dcr-backend/internal/database"
	"dcr-backend/internal/db"
	"dcr-backend/internal/drafts"
	"dcr-backend/internal/handlers"
	"dcr-backend/internal/health"
	h "dcr-backend/internal/http"
	"dcr-backend/internal/middleware"
	"dcr-backend/internal/notify"
	"dcr-backend/internal/repositories"
	"dcr-backend/internal/services"
	"dcr-backend/internal/timeutil"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Pin the site timezone before anything touches dates
	if cfg.Site.Timezone != "" {
		timeutil.SetLocation(cfg.Site.Timezone)
	}

	// Connect to the database
	pool := db.Connect(cfg)
	defer pool.Close()

	// Run database migrations
	log.Println("Running database migrations...")
	migrator := database.NewMigrator(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrator.RunMigrations(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to run migrations: %v", err)
	}
	cancel()

	// Initialize Redis cache (optional - graceful fallback if unavailable)
	var draftStore drafts.Store
	if err := cache.Init(); err != nil {
		log.Printf("[Redis] Cache unavailable: %v (drafts held in memory)", err)
		draftStore = drafts.NewMemoryStore()
	} else {
		log.Println("[Redis] Cache connected successfully")
		draftStore = drafts.NewRedisStore(cache.GetClient())
	}

	// Notification hub for draft/submission failures
	hub := notify.NewHub()
	hub.Start()
	defer hub.Stop()

	// Archive uploader is optional; New returns nil when unconfigured
	uploader := archive.New(archive.Options{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		Bucket:    cfg.Archive.Bucket,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
	})
	if uploader == nil {
		log.Println("[Archive] Object storage not configured, report archiving disabled")
	}

	// Repositories and services
	reportRepo := repositories.NewReportRepository(pool)
	exportService := services.NewExportService(uploader)
	sessionManager := services.NewSessionManager(
		draftStore,
		reportRepo,
		exportService,
		hub,
		time.Duration(cfg.Autosave.IntervalSeconds)*time.Second,
	)
	defer sessionManager.CloseAll()

	// Handlers
	healthChecker := health.NewHealthChecker(pool)
	healthHandler := handlers.NewHealthHandler(healthChecker)
	sessionHandler := handlers.NewSessionHandler(sessionManager)
	exportHandler := handlers.NewExportHandler(reportRepo, exportService)

	// Router and middleware
	router := h.NewRouter(sessionHandler, exportHandler, healthHandler, hub)
	corsMiddleware := middleware.NewCORS(cfg)
	handler := middleware.PanicRecovery(middleware.MetricsMiddleware(corsMiddleware(router)))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		log.Printf("Server running on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then flush sessions
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
