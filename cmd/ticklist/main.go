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

	"github.com/ticklist/internal/config"
	"github.com/ticklist/internal/docstore"
	"github.com/ticklist/internal/identity"
	"github.com/ticklist/internal/logging"
	"github.com/ticklist/internal/reset"
	"github.com/ticklist/internal/server"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.TokenSecret == "" {
		log.Fatal("token_secret is required (set TICKLIST_TOKEN_SECRET or token_secret in the config file)")
	}

	logger := logging.Setup(cfg.LogLevel)

	store, err := docstore.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	identitySvc := identity.NewService(store, []byte(cfg.TokenSecret), cfg.AdminEmail,
		logger.With("component", "identity"))

	marker := reset.NewFileMarker(cfg.ResetMarkerPath)

	srv, err := server.New(store, identitySvc, marker, logger)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.ListenPort,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("ticklist running at http://localhost:%s\n", cfg.ListenPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
