package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmynk/spending-diary/internal/storage/sqlite"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Bring the database schema up to the latest version.

The server also migrates on startup; this command is for deploy pipelines
that want the schema ready before the new binary starts.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show the current schema version without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dbPath := cfg.Database.Path
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	if !status {
		slog.Info("Running database migrations", "database", dbPath)
		if err := sqlite.Migrate(dbPath); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, dirty, err := sqlite.SchemaVersion(dbPath)
	if err != nil {
		return err
	}
	if dirty {
		slog.Warn("Schema is dirty, a previous migration failed part way", "database", dbPath, "version", version)
		return nil
	}

	slog.Info("Schema version", "database", dbPath, "version", version)
	return nil
}
