package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/feed-sync/app/api"
	"github.com/lysyi3m/feed-sync/app/cfg"
	"github.com/lysyi3m/feed-sync/app/database"
	"github.com/lysyi3m/feed-sync/app/engine"
	"github.com/lysyi3m/feed-sync/app/feed"
	"github.com/lysyi3m/feed-sync/app/realtime"
	"github.com/lysyi3m/feed-sync/app/session"
	"github.com/lysyi3m/feed-sync/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	log.Printf("Starting Feed Sync server (version %s)...", appCfg.Version)

	// Database connection
	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	log.Printf("Database ready (schema version %d, dirty: %t)", version, dirty)

	// Feed variant configurations
	variants := feed.NewVariantCache(appCfg.VariantsDir)
	if err := variants.Run(); err != nil {
		log.Fatal("Failed to load variant configurations: ", err)
	}
	log.Printf("Loaded %d feed variant configurations", variants.GetConfigCount())

	// Repositories
	postRepo := database.NewPostRepository(db)
	followRepo := database.NewFollowRepository(db)
	interactionRepo := database.NewInteractionRepository(db)

	// Session cache
	sessions, err := session.NewCache(appCfg.RedisAddr, appCfg.RedisDB,
		time.Duration(appCfg.SessionTTL)*time.Second)
	if err != nil {
		log.Fatal("Failed to connect session cache: ", err)
	}
	defer sessions.Close()

	// Change notification hub; a setup failure degrades the engine to
	// polling-only reconciliation instead of aborting startup.
	var notifier engine.Notifier
	hub, err := realtime.NewHub(appCfg.RedisAddr, appCfg.RedisDB, appCfg.RealtimeChannel)
	if err == nil {
		err = hub.Run()
	}
	if err != nil {
		slog.Warn("Change notification setup failed, falling back to polling only", "error", err)
		hub = nil
	} else {
		notifier = hub
	}

	// Feed engine
	registry := engine.NewRegistry(engine.Deps{
		Posts:    postRepo,
		Follows:  followRepo,
		Resolver: feed.NewResolver(interactionRepo),
		Sessions: sessions,
		Notifier: notifier,
	}, variants)

	// Background scheduler: polling reconciliation + idle eviction
	log.Printf("Starting background scheduler with %d workers...", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(registry)
	scheduler.Start()

	// HTTP server
	apiHandler := api.NewHandler(registry, variants, postRepo)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Feed Sync server started successfully!")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown: drain HTTP, stop background work, detach the
	// push channel, then flush and close the open feed views.
	log.Println("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	scheduler.Stop()
	log.Println("Background scheduler stopped")

	if hub != nil {
		hub.Close()
		log.Println("Change notification hub closed")
	}

	registry.CloseAll()
	log.Println("Feed views closed")

	log.Println("Feed Sync server shutdown complete")
}
