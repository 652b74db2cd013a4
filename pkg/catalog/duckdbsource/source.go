// Package duckdbsource provides a DuckDB-backed MetadataSource for Snowline.
package duckdbsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/snowline/pkg/catalog"
	"github.com/leapstack-labs/snowline/pkg/catalog/sqlsource"
	"github.com/leapstack-labs/snowline/pkg/identifier"
)

// Source implements catalog.MetadataSource against DuckDB's
// information_schema and duckdb_views().
type Source struct {
	sqlsource.BaseSQLSource
}

// New creates a DuckDB metadata source. A nil logger discards.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{BaseSQLSource: sqlsource.BaseSQLSource{Logger: logger}}
}

func init() {
	catalog.RegisterSource("duckdb", func(logger *slog.Logger) catalog.MetadataSource {
		return New(logger)
	})
}

// Name returns the source kind.
func (s *Source) Name() string { return "duckdb" }

// Connect opens the DuckDB database. Use ":memory:" (or leave Path empty)
// for an in-memory database.
func (s *Source) Connect(ctx context.Context, cfg catalog.SourceConfig) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	s.DB = db
	s.Cfg = cfg
	return nil
}

const listTablesQuery = `
SELECT table_catalog, table_schema, table_name, table_type
FROM information_schema.tables
WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
ORDER BY table_catalog, table_schema, table_name`

// ListObjects returns every table and view visible to the connection.
// DuckDB does not track per-object modification times, so LastModified is
// left zero and staleness detection rests on the object listing itself.
func (s *Source) ListObjects(ctx context.Context, database string) ([]catalog.ObjectRecord, error) {
	rows, err := s.Query(ctx, listTablesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []catalog.ObjectRecord
	for rows.Next() {
		var db, schema, name, tableType string
		if err := rows.Scan(&db, &schema, &name, &tableType); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		if database != "" && !strings.EqualFold(db, database) {
			continue
		}

		typ := catalog.TypeTable
		if strings.EqualFold(tableType, "VIEW") {
			typ = catalog.TypeView
		}

		records = append(records, catalog.ObjectRecord{
			QualifiedName: identifier.QualifiedName{
				Database: strings.ToUpper(db),
				Schema:   strings.ToUpper(schema),
				Name:     strings.ToUpper(name),
			},
			ObjectType: typ,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	return records, nil
}

const viewDDLQuery = `
SELECT sql FROM duckdb_views()
WHERE upper(schema_name) = ? AND upper(view_name) = ?`

// FetchDDL returns the defining SQL for a view. Base tables have no
// defining query.
func (s *Source) FetchDDL(ctx context.Context, qn identifier.QualifiedName, typ catalog.ObjectType) (string, error) {
	if !typ.HasDefinition() {
		return "", nil
	}

	var ddl sql.NullString
	err := s.QueryRow(ctx, viewDDLQuery, qn.Schema, qn.Name).Scan(&ddl)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch ddl for %s: %w", qn.Key(), err)
	}
	return ddl.String, nil
}
