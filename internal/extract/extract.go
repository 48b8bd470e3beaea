// Package extract pulls table data from the source SQL Server according to
// the source mapping.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"mssql2pg/internal/logging"
	"mssql2pg/internal/mapping"
	"mssql2pg/internal/querystore"
)

// ErrNoDataExtracted indicates the run yielded zero rows across every table,
// signalling a systemic source-connectivity or mapping problem rather than a
// per-table issue.
var ErrNoDataExtracted = errors.New("no data extracted from source")

// Querier is the source-engine capability the extractor needs. Each call
// runs on a fresh connection; extractions share no transaction.
type Querier interface {
	Query(ctx context.Context, query string) ([][]any, error)
}

// TableData holds one table's extracted rows, tagged by table identifier.
// It lives in memory for a single pipeline run and is consumed read-only by
// the loader.
type TableData struct {
	TableID int
	Rows    [][]any
}

// Extractor runs each source mapping record's SELECT against the source engine.
type Extractor struct {
	source Querier
	dir    string // source SQL template directory
	log    *logging.Logger
}

// NewExtractor creates an Extractor reading SELECT templates from templateDir.
func NewExtractor(source Querier, templateDir string, log *logging.Logger) *Extractor {
	return &Extractor{source: source, dir: templateDir, log: log}
}

// Extract iterates the source mapping in its persisted order, accumulating
// one result set per table. A SELECT that legitimately returns zero rows is
// recorded with an empty row sequence and is not an error; a blank template
// file is. If no table yields any row, the whole extraction fails with
// ErrNoDataExtracted.
func (e *Extractor) Extract(ctx context.Context, records []mapping.Record) ([]TableData, error) {
	e.log.Logf(logging.Info, "Extracting %d tables from source.", len(records))

	result := make([]TableData, 0, len(records))
	totalRows := 0
	for _, rec := range records {
		path := filepath.Join(e.dir, rec.SourceQuerySelect)
		query, err := querystore.ReadTemplate(path)
		if err != nil {
			return nil, fmt.Errorf("extraction of table_id %d failed: %w", rec.TableID, err)
		}

		rows, err := e.source.Query(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("extraction of %s (table_id %d) failed: %w", rec.SourceQuerySelect, rec.TableID, err)
		}
		if len(rows) == 0 {
			e.log.Logf(logging.Warning, "%s returned zero rows (table_id %d).", rec.SourceQuerySelect, rec.TableID)
		} else {
			e.log.Logf(logging.Info, "SUCCESS: %s executed, %d rows.", rec.SourceQuerySelect, len(rows))
		}

		result = append(result, TableData{TableID: rec.TableID, Rows: rows})
		totalRows += len(rows)
	}

	if totalRows == 0 {
		return nil, fmt.Errorf("%w: %d tables queried, zero rows total", ErrNoDataExtracted, len(records))
	}
	e.log.Logf(logging.Info, "Extraction complete: %d tables, %d rows.", len(result), totalRows)
	return result, nil
}
