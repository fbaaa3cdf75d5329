// cmd/migrate/main.go
package main

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"ledger-bot/internal/config"
	"ledger-bot/internal/logging"
)

// Applies the postgres migrations. The sqlite backend migrates itself on open.
//
//	go run ./cmd/migrate [up|down|status|version]
func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	db, err := sql.Open("pgx", cfg.DBConn)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	wd, err := os.Getwd()
	if err != nil {
		slog.Error("Failed to get working directory", "error", err)
		os.Exit(1)
	}
	migrationsDir := filepath.Join(wd, "migrations")

	if err := goose.SetDialect("postgres"); err != nil {
		slog.Error("Failed to set dialect", "error", err)
		os.Exit(1)
	}

	slog.Info("Running migrations", "command", command, "dir", migrationsDir)
	if err := goose.Run(command, db, migrationsDir); err != nil {
		slog.Error("Migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Migrations done", "command", command)
}
