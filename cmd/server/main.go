package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/api"
	"github.com/zihernwong/AthleteBridge-sub000/internal/calendar"
	"github.com/zihernwong/AthleteBridge-sub000/internal/config"
	"github.com/zihernwong/AthleteBridge-sub000/internal/service"
	"github.com/zihernwong/AthleteBridge-sub000/internal/storage"
	storemongo "github.com/zihernwong/AthleteBridge-sub000/internal/store/mongo"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting AthleteBridge server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Document Store ---
	docStore, err := storemongo.Connect(cfg.Database.URI, cfg.Database.Name)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := docStore.Disconnect(); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		docStore.EnsureIndexes(ctx)
		log.Println("Index creation process completed.")
	}()

	// --- Photo Storage ---
	log.Println("Initializing photo storage...")
	fileStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}

	// --- Initialize Services ---
	log.Println("Initializing services...")
	notifier := service.NewNotifier(docStore)
	resolver := service.NewResolver(docStore, fileStorage)
	authService := service.NewAuthService(docStore, cfg.JWT.Secret, cfg.JWT.Expiration)
	bookingService := service.NewBookingService(docStore, notifier, calendar.NewLogSync(), cfg.Calendar.Sync)
	hub := api.NewChatHub(docStore, resolver, notifier)
	defer hub.Close()

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware

	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, bookingService, hub)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
