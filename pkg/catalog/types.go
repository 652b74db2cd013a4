// Package catalog defines the warehouse metadata model: object records, the
// MetadataSource interface that supplies them, catalog persistence, and the
// build fingerprint used for lineage cache invalidation.
package catalog

import (
	"time"

	"github.com/leapstack-labs/snowline/pkg/identifier"
)

// ObjectType classifies a cataloged warehouse object.
type ObjectType string

const (
	TypeTable            ObjectType = "TABLE"
	TypeView             ObjectType = "VIEW"
	TypeMaterializedView ObjectType = "MATERIALIZED_VIEW"
	TypeDynamicTable     ObjectType = "DYNAMIC_TABLE"
	TypeFunction         ObjectType = "FUNCTION"
	TypeProcedure        ObjectType = "PROCEDURE"
	TypeTask             ObjectType = "TASK"
)

// AllObjectTypes lists every object type in stable order.
var AllObjectTypes = []ObjectType{
	TypeTable,
	TypeView,
	TypeMaterializedView,
	TypeDynamicTable,
	TypeFunction,
	TypeProcedure,
	TypeTask,
}

// Valid reports whether t is a known object type.
func (t ObjectType) Valid() bool {
	switch t {
	case TypeTable, TypeView, TypeMaterializedView, TypeDynamicTable,
		TypeFunction, TypeProcedure, TypeTask:
		return true
	}
	return false
}

// HasDefinition reports whether objects of this type carry a defining query
// or body that can reference other objects.
func (t ObjectType) HasDefinition() bool {
	return t != TypeTable
}

// ObjectRecord is one cataloged entity. QualifiedName is the unique key
// within a catalog snapshot and is immutable once recorded.
type ObjectRecord struct {
	QualifiedName  identifier.QualifiedName `json:"qualified_name"`
	ObjectType     ObjectType               `json:"object_type"`
	DefinitionText string                   `json:"definition_text,omitempty"`
	LastModified   time.Time                `json:"last_modified"`
	Comment        string                   `json:"comment,omitempty"`
}

// Key returns the canonical node key for the record.
func (r ObjectRecord) Key() string { return r.QualifiedName.Key() }

// BuildInfo is the metadata recorded for one catalog build. Its fields feed
// the cache fingerprint; they are caller-supplied and never re-derived from
// object content.
type BuildInfo struct {
	BuildID      string             `json:"build_id"`
	BuiltAt      time.Time          `json:"built_at"`
	ObjectCount  int                `json:"object_count"`
	CountsByType map[ObjectType]int `json:"counts_by_type"`
	// DDLChecksums maps database name to a checksum over that database's
	// object names and last-modified timestamps.
	DDLChecksums map[string]string  `json:"ddl_checksums"`
}

// Summary is the persisted catalog summary, readable without loading the
// object records themselves.
type Summary struct {
	BuildInfo
	Databases []string `json:"databases"`
	// Warnings records non-fatal anomalies observed while building the
	// catalog, such as objects whose DDL could not be fetched.
	Warnings []string `json:"warnings,omitempty"`
}
