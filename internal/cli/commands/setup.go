// Package commands implements the Snowline CLI subcommands.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/snowline/internal/cli/config"
	"github.com/leapstack-labs/snowline/pkg/lineage"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Service *lineage.Service
}

// NewCommandContext resolves configuration and builds the lineage service
// most commands operate through.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	svc := lineage.NewService(cfg.CatalogDir, cfg.CacheDir, logger)
	svc.DefaultDatabase = cfg.Database
	svc.DefaultSchema = cfg.Schema

	return &CommandContext{
		Cfg:     cfg,
		Logger:  logger,
		Service: svc,
	}
}

// getConfig returns the current configuration, falling back to environment
// variables with defaults when no config has been loaded (e.g. in tests
// that call a command constructor directly).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		CatalogDir:    getEnvOrDefault("SNOWLINE_CATALOG_DIR", config.DefaultCatalogDir),
		CacheDir:      getEnvOrDefault("SNOWLINE_CACHE_DIR", config.DefaultCacheDir),
		OutputDir:     getEnvOrDefault("SNOWLINE_OUTPUT_DIR", config.DefaultOutputDir),
		CatalogFormat: getEnvOrDefault("SNOWLINE_CATALOG_FORMAT", config.DefaultCatalogFormat),
		Database:      os.Getenv("SNOWLINE_DATABASE"),
		Schema:        os.Getenv("SNOWLINE_SCHEMA"),
		Verbose:       os.Getenv("SNOWLINE_VERBOSE") == "true",
		OutputFormat:  getEnvOrDefault("SNOWLINE_OUTPUT", config.DefaultOutput),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
