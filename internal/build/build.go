// Package build creates destination tables from the destination mapping.
package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"mssql2pg/internal/logging"
	"mssql2pg/internal/mapping"
	"mssql2pg/internal/querystore"
)

// ErrTableCreation indicates a CREATE TABLE statement failed.
var ErrTableCreation = errors.New("table creation failure")

// Executor is the connectivity capability the builder needs.
type Executor interface {
	Exec(ctx context.Context, database, query string) error
}

// Builder issues one CREATE TABLE statement per destination mapping record.
type Builder struct {
	exec Executor
	dir  string // destination SQL template directory
	log  *logging.Logger
}

// NewBuilder creates a Builder executing through exec.
func NewBuilder(exec Executor, templateDir string, log *logging.Logger) *Builder {
	return &Builder{exec: exec, dir: templateDir, log: log}
}

// CreateTables iterates the destination mapping in its persisted order and
// executes each record's CREATE TABLE script against the target database.
// The first failure stops iteration: later tables may hold foreign-key
// dependencies on earlier ones, so continuing past a failure is never safe.
func (b *Builder) CreateTables(ctx context.Context, database string, records []mapping.Record) error {
	b.log.Logf(logging.Info, "Creating %d tables in database '%s'.", len(records), database)
	for _, rec := range records {
		path := filepath.Join(b.dir, rec.DestinationQueryCreate)
		query, err := querystore.ReadTemplate(path)
		if err != nil {
			return fmt.Errorf("%w: table_id %d: %v", ErrTableCreation, rec.TableID, err)
		}
		if err := b.exec.Exec(ctx, database, query); err != nil {
			return fmt.Errorf("%w: %s (table_id %d): %v", ErrTableCreation, rec.DestinationQueryCreate, rec.TableID, err)
		}
		b.log.Logf(logging.Info, "SUCCESS: %s executed.", rec.DestinationQueryCreate)
	}
	return nil
}
