package main

// Run database migrations and optionally load the product catalog:
//   go run ./cmd/migrate -seed

import (
	"context"
	"flag"
	"log"
	"os"

	"skincare-backend/internal/catalog"
	"skincare-backend/internal/shared/config"
	"skincare-backend/internal/shared/storage/db"
)

func main() {
	seed := flag.Bool("seed", false, "replace the products table with the bundled catalog")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	if *seed {
		n, err := catalog.Seed(ctx, &catalog.PGStore{DB: sqlDB})
		if err != nil {
			log.Printf("failed to seed catalog: %v", err)
			os.Exit(1)
		}
		log.Printf("seeded %d products", n)
	}
}
