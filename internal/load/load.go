// Package load inserts extracted rows into destination tables using the
// destination mapping's parameterized INSERT templates.
package load

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"mssql2pg/internal/extract"
	"mssql2pg/internal/logging"
	"mssql2pg/internal/mapping"
	"mssql2pg/internal/querystore"
)

// ErrInsert indicates a batched insert failed during the load stage.
var ErrInsert = errors.New("insert failure")

// BatchExecutor is the connectivity capability the loader needs: a batched
// parameterized insert against a named database.
type BatchExecutor interface {
	ExecBatch(ctx context.Context, database, query string, rows [][]any) error
}

// Loader inserts extraction results table by table in dependency order.
type Loader struct {
	exec BatchExecutor
	dir  string // destination SQL template directory
	log  *logging.Logger
}

// NewLoader creates a Loader executing through exec.
func NewLoader(exec BatchExecutor, templateDir string, log *logging.Logger) *Loader {
	return &Loader{exec: exec, dir: templateDir, log: log}
}

// Load iterates the destination mapping in its persisted order, matching each
// record's extraction entry by table identifier. A table with no matching
// entry receives zero rows and still reports success (tables intentionally
// populated by schema defaults). The first insert failure stops iteration,
// preserving the referential-integrity ordering encoded by execution order.
func (l *Loader) Load(ctx context.Context, database string, records []mapping.Record, data []extract.TableData) error {
	l.log.Logf(logging.Info, "Loading %d tables into database '%s'.", len(records), database)

	for _, rec := range records {
		path := filepath.Join(l.dir, rec.DestinationQueryInsert)
		query, err := querystore.ReadTemplate(path)
		if err != nil {
			return fmt.Errorf("%w: table_id %d: %v", ErrInsert, rec.TableID, err)
		}

		rows := matchRows(data, rec.TableID)
		if len(rows) == 0 {
			l.log.Logf(logging.Info, "SUCCESS: %s skipped, no extracted rows for table_id %d.", rec.DestinationQueryInsert, rec.TableID)
			continue
		}

		if err := l.exec.ExecBatch(ctx, database, query, rows); err != nil {
			return fmt.Errorf("%w: %s (table_id %d): %v", ErrInsert, rec.DestinationQueryInsert, rec.TableID, err)
		}
		l.log.Logf(logging.Info, "SUCCESS: %s executed, %d rows inserted.", rec.DestinationQueryInsert, len(rows))
	}
	return nil
}

// matchRows selects the extraction entry whose table identifier matches.
func matchRows(data []extract.TableData, tableID int) [][]any {
	for _, td := range data {
		if td.TableID == tableID {
			return td.Rows
		}
	}
	return nil
}
