// Package config provides configuration management for the Snowline CLI.
//
// Configuration is layered: built-in defaults, then an optional
// snowline.yaml, then SNOWLINE_-prefixed environment variables, then
// explicitly set command-line flags.
package config

import (
	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// Config holds all CLI configuration options.
type Config struct {
	// CatalogDir is where catalog snapshots are written and read.
	CatalogDir string `koanf:"catalog_dir"`
	// CacheDir holds persisted lineage graphs keyed by catalog location.
	CacheDir string `koanf:"cache_dir"`
	// OutputDir receives dependency graph exports.
	OutputDir string `koanf:"output_dir"`
	// CatalogFormat selects the persisted layout: json or jsonl.
	CatalogFormat string `koanf:"catalog_format"`
	// Database and Schema qualify bare object names in lineage queries.
	Database string `koanf:"database"`
	Schema   string `koanf:"schema"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	// Source configures the warehouse connection used by catalog builds.
	Source catalog.SourceConfig `koanf:"source"`
}

// Default configuration values.
const (
	DefaultCatalogDir    = "./data_catalogue"
	DefaultCacheDir      = ".snowline/cache"
	DefaultOutputDir     = "./dependencies"
	DefaultCatalogFormat = "json"
	DefaultOutput        = "text"
)
