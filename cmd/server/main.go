package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foodscan/matcher/config"
	"github.com/foodscan/matcher/internal/app"
	httpDelivery "github.com/foodscan/matcher/internal/delivery/http"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		log.Printf("WARNING: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting foodmatch server")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Store: %s", cfg.Store.Path)
	log.Printf("Embedding: provider=%s model=%s", cfg.Embedding.Provider, cfg.Embedding.Model)
	if key := cfg.Embedding.APIKey; len(key) >= 8 {
		log.Printf("OpenAI API configured: %s (key: %s...)", cfg.Embedding.BaseURL, key[:8])
	} else if cfg.Embedding.Provider == "openai" {
		log.Printf("WARNING: OpenAI API key looks malformed")
	}
	log.Printf("Cache: type=%s ttl=%s", cfg.Cache.Type, cfg.Cache.TTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	// A failed initial load keeps the server up and reporting "loading"
	// until an operator reload succeeds.
	if status, err := application.Matcher.Reload(ctx); err != nil {
		log.Printf("WARNING: index not loaded, serving in loading state: %v", err)
	} else {
		log.Printf("Index ready: %d records, dimension %d", status.Records, status.Dimension)
	}

	log.Printf("Matching: default_limit=%d max_limit=%d default_threshold=%.2f debug=%v",
		cfg.Matching.DefaultLimit,
		cfg.Matching.MaxLimit,
		cfg.Matching.DefaultThreshold,
		cfg.Matching.EnableDebugLogging)

	handler := httpDelivery.NewHandler(application.Matcher, httpDelivery.HandlerConfig{
		DefaultLimit:     cfg.Matching.DefaultLimit,
		MaxLimit:         cfg.Matching.MaxLimit,
		DefaultThreshold: cfg.Matching.DefaultThreshold,
		RequestTimeout:   cfg.Server.RequestTimeout,
	})
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutdown signal received")
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	log.Printf("Server stopped")
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
