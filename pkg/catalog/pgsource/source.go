// Package pgsource provides a PostgreSQL-backed MetadataSource for Snowline.
package pgsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/snowline/pkg/catalog"
	"github.com/leapstack-labs/snowline/pkg/catalog/sqlsource"
	"github.com/leapstack-labs/snowline/pkg/identifier"
)

// Source implements catalog.MetadataSource against PostgreSQL system
// catalogs: information_schema for tables and views, pg_matviews for
// materialized views, and pg_proc for functions and procedures.
type Source struct {
	sqlsource.BaseSQLSource
}

// New creates a PostgreSQL metadata source. A nil logger discards.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{BaseSQLSource: sqlsource.BaseSQLSource{Logger: logger}}
}

func init() {
	catalog.RegisterSource("postgres", func(logger *slog.Logger) catalog.MetadataSource {
		return New(logger)
	})
}

// Name returns the source kind.
func (s *Source) Name() string { return "postgres" }

// Connect establishes a connection via the pgx stdlib driver.
func (s *Source) Connect(ctx context.Context, cfg catalog.SourceConfig) error {
	dsn := buildDSN(cfg)

	s.Logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	s.DB = db
	s.Cfg = cfg
	return nil
}

// buildDSN constructs a key=value connection string.
func buildDSN(cfg catalog.SourceConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += " user=" + cfg.Username
	}
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	return dsn
}

const (
	listTablesQuery = `
SELECT table_catalog, table_schema, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
  AND table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_catalog, table_schema, table_name`

	listViewsQuery = `
SELECT table_catalog, table_schema, table_name, view_definition
FROM information_schema.views
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_catalog, table_schema, table_name`

	listMatviewsQuery = `
SELECT current_database(), schemaname, matviewname, definition
FROM pg_matviews
ORDER BY schemaname, matviewname`

	listRoutinesQuery = `
SELECT current_database(), n.nspname, p.proname, p.prokind, pg_get_functiondef(p.oid)
FROM pg_proc p
JOIN pg_namespace n ON n.oid = p.pronamespace
WHERE n.nspname NOT IN ('pg_catalog', 'information_schema')
  AND p.prokind IN ('f', 'p')
ORDER BY n.nspname, p.proname`
)

// ListObjects returns tables, views, materialized views, functions, and
// procedures. View-like definitions come back eagerly from the listing
// queries, so FetchDDL has nothing left to do for them.
// PostgreSQL keeps no per-object modification times, so LastModified is
// left zero and staleness detection rests on the object listing itself.
func (s *Source) ListObjects(ctx context.Context, database string) ([]catalog.ObjectRecord, error) {
	var records []catalog.ObjectRecord

	collect := func(query string, typ catalog.ObjectType, withDef bool, routines bool) error {
		rows, err := s.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var db, schema, name string
			var def sql.NullString
			var kind string
			var scanErr error
			switch {
			case routines:
				scanErr = rows.Scan(&db, &schema, &name, &kind, &def)
			case withDef:
				scanErr = rows.Scan(&db, &schema, &name, &def)
			default:
				scanErr = rows.Scan(&db, &schema, &name)
			}
			if scanErr != nil {
				return fmt.Errorf("failed to scan metadata row: %w", scanErr)
			}
			if database != "" && !strings.EqualFold(db, database) {
				continue
			}

			rtyp := typ
			if routines && kind == "p" {
				rtyp = catalog.TypeProcedure
			}

			records = append(records, catalog.ObjectRecord{
				QualifiedName: identifier.QualifiedName{
					Database: strings.ToUpper(db),
					Schema:   strings.ToUpper(schema),
					Name:     strings.ToUpper(name),
				},
				ObjectType:     rtyp,
				DefinitionText: def.String,
			})
		}
		return rows.Err()
	}

	if err := collect(listTablesQuery, catalog.TypeTable, false, false); err != nil {
		return nil, err
	}
	if err := collect(listViewsQuery, catalog.TypeView, true, false); err != nil {
		return nil, err
	}
	if err := collect(listMatviewsQuery, catalog.TypeMaterializedView, true, false); err != nil {
		return nil, err
	}
	if err := collect(listRoutinesQuery, catalog.TypeFunction, false, true); err != nil {
		return nil, err
	}
	return records, nil
}

const viewDDLQuery = `
SELECT view_definition
FROM information_schema.views
WHERE upper(table_schema) = $1 AND upper(table_name) = $2`

// FetchDDL fills in a view definition that the listing left empty.
func (s *Source) FetchDDL(ctx context.Context, qn identifier.QualifiedName, typ catalog.ObjectType) (string, error) {
	if !typ.HasDefinition() {
		return "", nil
	}

	var def sql.NullString
	err := s.QueryRow(ctx, viewDDLQuery, qn.Schema, qn.Name).Scan(&def)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch ddl for %s: %w", qn.Key(), err)
	}
	return def.String, nil
}
