package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/zihernwong/AthleteBridge-sub000/internal/config"
	"github.com/zihernwong/AthleteBridge-sub000/internal/service"
	storemongo "github.com/zihernwong/AthleteBridge-sub000/internal/store/mongo"
)

// Runs the legacy conversation migration: conversations still on the
// raw participant-id list get the normalized reference schema written
// alongside. Safe to re-run; migrated documents are skipped.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	docStore, err := storemongo.Connect(cfg.Database.URI, cfg.Database.Name)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		if err := docStore.Disconnect(); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	migrator := service.NewMigrator(docStore, cfg.Migration.PageSize, cfg.Migration.PageDelay)
	report, err := migrator.Run(ctx)
	log.Printf("Migration finished: scanned=%d migrated=%d skipped=%d pages=%d",
		report.Scanned, report.Migrated, report.Skipped, report.Pages)
	if report.FirstErr != nil {
		log.Printf("WARN: first per-conversation error: %v", report.FirstErr)
	}
	if err != nil {
		log.Printf("ERROR: migration aborted: %v", err)
		os.Exit(1)
	}
}
