package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcnelson/support-portal/internal/config"
	"github.com/bcnelson/support-portal/internal/logging"
	"github.com/bcnelson/support-portal/internal/storage/sql"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "support-portal",
	Short:         "Customer support portal API: keys, usage, billing and tickets",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(billingCmd)
	rootCmd.AddCommand(usageCmd)
}

// loadConfig loads and validates configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

// ensureDataDir creates the directory holding a SQLite database file.
func ensureDataDir(cfg *config.Config) error {
	if cfg.Database.Driver != sql.DriverSQLite {
		return nil
	}
	dsn := cfg.Database.DSN
	if strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// openStore opens the configured database and applies pending migrations.
func openStore(cfg *config.Config) (*sql.Store, error) {
	if err := ensureDataDir(cfg); err != nil {
		return nil, err
	}
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return store, nil
}
