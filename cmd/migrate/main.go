package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"chat-requests/config"
	"chat-requests/internal/repository"
	"chat-requests/pkg/database"

	"gorm.io/gorm"
)

const usage = `
chat-requests - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update tables, then run SQL files from -migrations
  status      Show database connection status and table sizes
  seed-dev    Create development users (alice, bob, carol @example.com)
  reset       Drop all tables and re-run migrations (DANGEROUS)

Flags:
  -migrations string   Path to extra SQL migrations (default "migrations")
  -seed-pass string    Password for seeded users (default "password123")

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate seed-dev
  go run ./cmd/migrate reset
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to extra SQL migrations")
	seedPass := flag.String("seed-pass", "password123", "Password for seeded users")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close(db)

	switch command {
	case "up":
		runMigrationsUp(db, *migrationsDir)
	case "status":
		showStatus(db)
	case "seed-dev":
		runSeedDevelopment(db, *seedPass)
	case "reset":
		runReset(db, *migrationsDir)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB, migrationsDir string) {
	log.Println("Running migrations UP...")

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if err := database.ApplyRawMigrations(db, migrationsDir); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}

func showStatus(db *gorm.DB) {
	if err := database.HealthCheck(context.Background(), db); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range []string{"users", "chat_requests", "chats", "outbox_events"} {
		if !database.TableExists(db, table) {
			log.Printf("Table %-15s does not exist", table)
			continue
		}
		count, err := database.CountRows(db, table)
		if err != nil {
			log.Printf("Table %-15s count failed: %v", table, err)
			continue
		}
		log.Printf("Table %-15s exists (%d rows)", table, count)
	}
}

func runSeedDevelopment(db *gorm.DB, password string) {
	seedCfg := database.DefaultSeedConfig()
	seedCfg.Password = password

	created, err := database.SeedUsers(context.Background(), db, seedCfg)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	for _, u := range created {
		log.Printf("Seeded user %s (%s)", u.Email, u.ID)
	}
	log.Printf("Development seeding completed, %d new users", len(created))
}

func runReset(db *gorm.DB, migrationsDir string) {
	log.Println("WARNING: dropping all tables")

	if err := repository.DropSchema(db); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}
	runMigrationsUp(db, migrationsDir)

	log.Println("Database reset completed")
}
