package main

import (
	"context"
	"fmt"
	"os"

	"factory-erp/internal/db"
	"factory-erp/migrations"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		fmt.Printf("Failed to connect to DB: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.FS)
	if err != nil {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	for _, name := range applied {
		fmt.Printf("applied %s\n", name)
	}
	fmt.Println("Migration successful.")
}
