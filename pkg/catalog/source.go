package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/snowline/pkg/identifier"
)

// MetadataSource supplies object metadata from a warehouse. Implementations
// handle connection and query transport; the engine only consumes the
// returned records.
type MetadataSource interface {
	// Name returns the source kind (e.g. "duckdb", "postgres").
	Name() string

	// Connect establishes the underlying connection.
	Connect(ctx context.Context, cfg SourceConfig) error

	// ListObjects returns the records for every cataloged object, optionally
	// restricted to one database. Definition text may be left empty for
	// types where fetching it is expensive; FetchDDL fills it in.
	ListObjects(ctx context.Context, database string) ([]ObjectRecord, error)

	// FetchDDL returns the definition text for one object.
	FetchDDL(ctx context.Context, qn identifier.QualifiedName, typ ObjectType) (string, error)

	// Close releases the underlying connection.
	Close() error
}

// SourceConfig carries connection parameters for a metadata source.
type SourceConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"` // file-backed sources (duckdb)
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) MetadataSource)
)

// RegisterSource adds a metadata source factory to the registry. Called by
// source implementations in their init() functions.
func RegisterSource(name string, factory func(*slog.Logger) MetadataSource) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// ListSources returns all registered source names, sorted.
func ListSources() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSource creates a metadata source for the configured type. A nil logger
// uses a discard logger.
func NewSource(cfg SourceConfig, logger *slog.Logger) (MetadataSource, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("metadata source type not specified")
	}

	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownSourceError{Type: cfg.Type, Available: ListSources()}
	}
	return factory(logger), nil
}

// UnknownSourceError is returned when an unregistered source type is
// requested.
type UnknownSourceError struct {
	Type      string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown metadata source type %q (available: %v)", e.Type, e.Available)
}
