// Package sqlsource provides common database/sql plumbing for SQL-backed
// metadata sources. Embed BaseSQLSource in concrete implementations to get
// standard connection handling.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/snowline/pkg/catalog"
)

// BaseSQLSource holds the shared connection state of a SQL-backed metadata
// source.
type BaseSQLSource struct {
	DB     *sql.DB
	Cfg    catalog.SourceConfig
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLSource) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing metadata source connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Query runs a query against the source connection.
func (b *BaseSQLSource) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("metadata source connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata query failed: %w", err)
	}
	return rows, nil
}

// QueryRow runs a single-row query against the source connection.
func (b *BaseSQLSource) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return b.DB.QueryRowContext(ctx, query, args...)
}
