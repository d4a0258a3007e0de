// Package main provides a CLI tool for running journal database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/IliyaBaranov/agora/internal/config"
	"github.com/IliyaBaranov/agora/internal/storage"
)

func main() {
	var (
		action         = flag.String("action", "up", "Migration action: up, down, version")
		dbType         = flag.String("db", config.JournalPostgres, "Database type: postgres, clickhouse")
		migrationsPath = flag.String("path", "", "Directory holding the migration files (defaults per database)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch *dbType {
	case config.JournalPostgres:
		path := *migrationsPath
		if path == "" {
			path = storage.DefaultMigrationsPath
		}
		if err := runPostgresMigrations(cfg.Database.Postgres.URL(), path, *action); err != nil {
			log.Fatalf("Postgres migration failed: %v", err)
		}
	case config.JournalClickHouse:
		path := *migrationsPath
		if path == "" {
			path = storage.DefaultClickHouseMigrationsPath
		}
		if err := runClickHouseMigrations(&cfg.Database.ClickHouse, path, *action); err != nil {
			log.Fatalf("ClickHouse migration failed: %v", err)
		}
	default:
		log.Fatalf("Unknown database type: %s", *dbType)
	}
}

func runPostgresMigrations(databaseURL, migrationsPath, action string) error {
	switch action {
	case "up":
		log.Println("Running Postgres migrations...")
		if err := storage.RunMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		log.Println("Postgres migrations completed successfully")

	case "down":
		log.Println("Rolling back Postgres migration...")
		if err := storage.RollbackMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		log.Println("Postgres migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, migrationsPath)
		if err != nil {
			return err
		}
		log.Printf("Current Postgres migration version: %d (dirty: %v)", version, dirty)

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}

func runClickHouseMigrations(cfg *config.ClickHouseConfig, migrationsPath, action string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up' action")
	}

	log.Println("Connecting to ClickHouse...")
	db, err := storage.NewClickHouseDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing ClickHouse connection: %v", err)
		}
	}()

	log.Println("Running ClickHouse migrations...")
	if err := storage.RunClickHouseMigrations(context.Background(), db, migrationsPath); err != nil {
		return err
	}
	log.Println("ClickHouse migrations completed successfully")
	return nil
}
