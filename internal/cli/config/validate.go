package config

import (
	"fmt"
)

// Validate checks cross-field constraints that the koanf unmarshal cannot
// express.
func Validate(cfg *Config) error {
	switch cfg.CatalogFormat {
	case "", "json", "jsonl":
	default:
		return fmt.Errorf("invalid catalog_format %q (want json or jsonl)", cfg.CatalogFormat)
	}

	switch cfg.OutputFormat {
	case "", "text", "tree", "json":
	default:
		return fmt.Errorf("invalid output %q (want text, tree, or json)", cfg.OutputFormat)
	}

	if cfg.Source.Type == "duckdb" && cfg.Source.Host != "" {
		return fmt.Errorf("source type duckdb is file-backed; set source.path, not source.host")
	}
	return nil
}
