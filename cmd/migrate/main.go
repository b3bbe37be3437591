// Command migrate runs goose against the documents table used by the
// postgres store driver.
//
//	migrate up
//	migrate status
//	migrate down
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/Jabakyo/next-class/internal/config"
	"github.com/Jabakyo/next-class/internal/logging"
	"github.com/Jabakyo/next-class/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate <up|down|status|redo|version> [args...]")
		os.Exit(2)
	}

	cfg := config.Load()
	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()

	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg.Database.URL, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("migration failed", "command", os.Args[1], "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	logger.Info("migration finished", "command", os.Args[1])
}

func run(ctx context.Context, url, command string, args []string) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return store.Migrate(ctx, db, command, args...)
}
