package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/un4givn/FlipForce/internal/api"
	"github.com/un4givn/FlipForce/internal/config"
	"github.com/un4givn/FlipForce/internal/database"
	"github.com/un4givn/FlipForce/internal/services"
)

func main() {
	// Configuration path (TOML), overridable via env. The default file is
	// optional; built-in defaults apply when it is absent.
	configPath := os.Getenv("FLIPFORCE_CONFIG")
	if configPath == "" {
		configPath = "./flipforce.toml"
		if _, err := os.Stat(configPath); err != nil {
			configPath = ""
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize services
	arenaClient := services.NewArenaClubClient(cfg.ArenaClub)
	store := services.NewStore(database.GetDB())
	registry := services.NewRegistry(arenaClient)

	correlator, err := services.NewCorrelator(cfg.Tracker.CorrelationWindow.Duration, cfg.Tracker.VerifyTiers)
	if err != nil {
		log.Fatalf("Failed to initialize correlator: %v", err)
	}

	tracker := services.NewTracker(arenaClient, store, correlator, cfg.ArenaClub.HitFeedPageSize)
	worker := services.NewTrackerWorker(tracker, registry, cfg.Tracker, cfg.Targets)

	log.Printf("Tracking %d target packs against %s", len(cfg.Targets), cfg.ArenaClub.BaseURL)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start tracker worker in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in tracker worker: %v - restarting in 30 seconds", r)
					}
				}()
				worker.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Tracker worker restarting after panic recovery...")
			}
		}
	}()

	// Setup router
	router := api.SetupRouter(cfg.Server, store, worker)

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the tracker worker
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
