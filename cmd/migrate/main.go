package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/ringring/ringring-server/pkg/config"
	"github.com/ringring/ringring-server/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	dir := flag.String("dir", "migrations", "migrations directory")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("Failed to configure goose", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *command {
	case "up":
		logger.Info("Applying migrations", "dir", *dir)
		if err := goose.UpContext(ctx, db, *dir); err != nil {
			logger.Error("Failed to apply migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations applied")
	case "status":
		if err := goose.StatusContext(ctx, db, *dir); err != nil {
			logger.Error("Failed to fetch migration status", "error", err)
			os.Exit(1)
		}
	case "down":
		if err := goose.DownContext(ctx, db, *dir); err != nil {
			logger.Error("Failed to roll back migration", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("Unsupported command", "command", *command)
		os.Exit(1)
	}
}
