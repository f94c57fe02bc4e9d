// restore-seed loads a workbook exported from the spreadsheet into the store.
// Run it to seed a fresh database or to recover after the store was wiped.
//
// Usage: go run ./cmd/restore-seed backup.xlsx
package main

import (
	"context"
	"log"
	"os"

	"factory-erp/internal/config"
	"factory-erp/internal/logger"
	"factory-erp/internal/platform"
	"factory-erp/internal/syncer"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: restore-seed <workbook.xlsx>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if cfg.DB.URL == "" {
		log.Fatal("DATABASE_URL not set: nothing to restore into")
	}
	appLog, err := logger.NewZapLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	snap, err := syncer.DecodeWorkbook(f, appLog)
	if err != nil {
		log.Fatalf("Failed to read workbook: %v", err)
	}

	ctx := context.Background()
	rt, err := platform.Build(ctx, cfg, appLog)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer rt.Close()

	log.Printf("Restoring %d customers, %d products, %d orders...", len(snap.Customers), len(snap.Products), len(snap.Orders))
	promoted, err := rt.Coordinator.ApplyRemoteSnapshot(ctx, snap)
	if err != nil {
		rt.Close()
		log.Fatalf("Failed to restore: %v", err)
	}

	if n, err := rt.Service.FlushOutbox(ctx); err == nil && n > 0 {
		log.Printf("Pushed %d change(s) to the configured sinks.", n)
	}
	log.Printf("Seed data restored, %d order(s) promoted to Ready.", promoted)
}
