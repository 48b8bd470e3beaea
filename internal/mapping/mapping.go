// Package mapping compiles the declarative table-mapping file into the
// ordered source and destination mapping artifacts that drive the pipeline.
package mapping

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMapping indicates the mapping file is missing required
	// columns or carries non-numeric identifiers.
	ErrMalformedMapping = errors.New("malformed mapping")
	// ErrWriteFailure indicates a mapping artifact could not be persisted or
	// verified on disk.
	ErrWriteFailure = errors.New("mapping artifact write failure")
)

// Role selects which mapping artifact a compilation produces. Each variant
// carries its own required-column contract.
type Role int

const (
	// RoleSource compiles the artifact consumed by the extractor.
	RoleSource Role = iota
	// RoleDestination compiles the artifact consumed by the table builder and loader.
	RoleDestination
)

// String returns the human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleDestination:
		return "destination"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Column names in the mapping file.
const (
	columnTableID           = "table_id"
	columnExecutionOrder    = "execution_order"
	columnIsAppTable        = "is_app_table"
	columnSourceSelect      = "source_query_select"
	columnDestinationCreate = "destination_query_create"
	columnDestinationInsert = "destination_query_insert"
)

// requiredColumns returns the column-set contract for the role.
func (r Role) requiredColumns() []string {
	switch r {
	case RoleSource:
		return []string{columnTableID, columnExecutionOrder, columnIsAppTable, columnSourceSelect}
	case RoleDestination:
		return []string{columnTableID, columnExecutionOrder, columnIsAppTable, columnDestinationCreate, columnDestinationInsert}
	default:
		return nil
	}
}

// Record is one table's compiled mapping metadata. Fields that do not belong
// to a record's role are left empty and omitted from the persisted artifact.
type Record struct {
	// TableID identifies a logical table across the source and destination artifacts.
	TableID int `json:"table_id"`
	// ExecutionOrder is the primary sort key; it encodes cross-table
	// dependency ordering (parent tables before dependent tables).
	ExecutionOrder int `json:"execution_order"`
	// SourceQuerySelect is the SELECT template filename (source role only).
	SourceQuerySelect string `json:"source_query_select,omitempty"`
	// DestinationQueryCreate is the CREATE TABLE template filename (destination role only).
	DestinationQueryCreate string `json:"destination_query_create,omitempty"`
	// DestinationQueryInsert is the INSERT template filename (destination role only).
	DestinationQueryInsert string `json:"destination_query_insert,omitempty"`
}
