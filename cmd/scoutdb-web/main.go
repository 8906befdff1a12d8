// Command scoutdb-web serves the world model HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scoutdb/scoutdb/internal/config"
	"github.com/scoutdb/scoutdb/internal/storage"
	"github.com/scoutdb/scoutdb/internal/storage/postgres"
	"github.com/scoutdb/scoutdb/internal/storage/sqlite"
	"github.com/scoutdb/scoutdb/internal/worldmodel"
	"github.com/scoutdb/scoutdb/web/handlers"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	restore := flag.Bool("restore", false, "Restore the latest snapshot from the backing store on startup")
	flag.Parse()

	if *configPath == "" {
		if _, err := os.Stat("scoutdb.yaml"); err == nil {
			*configPath = "scoutdb.yaml"
			log.Printf("Using config: scoutdb.yaml")
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	model := worldmodel.NewWithConfig(worldmodel.Config{
		MaxEvents:     cfg.Model.MaxEvents,
		CacheTTL:      cfg.Model.CacheTTL.Std(),
		AuditInterval: cfg.Model.AuditInterval.Std(),
	})

	docs, err := openDocumentStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open backing store: %v", err)
	}
	if docs != nil {
		model.AttachMirror(worldmodel.NewMirrorWithConfig(docs, worldmodel.MirrorConfig{
			MaxFailures:  uint32(cfg.Mirror.MaxFailures),
			OpenTimeout:  cfg.Mirror.OpenTimeout.Std(),
			WriteTimeout: cfg.Mirror.WriteTimeout.Std(),
		}))
	}

	if *restore {
		if err := model.Restore(context.Background()); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				log.Println("No snapshot to restore, starting empty")
			} else {
				log.Fatalf("Failed to restore snapshot: %v", err)
			}
		} else {
			stats := model.Statistics()
			log.Printf("Restored snapshot: %d entities, %d events", stats.Store.EntityCount, stats.Events)
		}
	}

	hub := handlers.NewHub()
	go hub.Run()

	api := handlers.NewAPI(model, hub)
	var handler http.Handler = api.Routes()
	handler = handlers.RateLimitMiddleware(handler, handlers.NewRateLimiter(cfg.Security.RateLimit, cfg.Security.RateBurst))
	handler = handlers.RequireAuth(handler, cfg.Security.APIToken)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("ScoutDB API listening at http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	hub.Stop()

	if docs != nil {
		if err := model.Checkpoint(shutdownCtx); err != nil {
			log.Printf("Error saving shutdown snapshot: %v", err)
		}
	}
	if err := model.Close(); err != nil {
		log.Printf("Error closing world model: %v", err)
	}
}

// openDocumentStore builds the configured backing store, or nil for "none".
func openDocumentStore(cfg *config.Config) (storage.DocumentStore, error) {
	switch cfg.Storage.Engine {
	case "none":
		return nil, nil
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlite.NewDocumentStore(cfg.Storage.DataPath + "/scoutdb.db")
	case "postgres":
		// Embedding generation is an external collaborator; without one the
		// postgres backend still persists records and serves text search.
		return postgres.NewDocumentStore(cfg.Storage.PostgresDSN, nil)
	}
	return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
}
