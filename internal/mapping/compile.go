package mapping

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mssql2pg/internal/logging"

	"github.com/Knetic/govaluate"
)

// Compiler turns the mapping file into ordered, filtered record sequences.
type Compiler struct {
	// Path to the mapping file (.csv or .xlsx).
	Path string
	// Filter is an optional govaluate expression applied to each row on top
	// of the mandatory is_app_table filter.
	Filter string

	log *logging.Logger
}

// NewCompiler creates a Compiler for the mapping file at path.
func NewCompiler(path, filter string, log *logging.Logger) *Compiler {
	return &Compiler{Path: path, Filter: filter, log: log}
}

// Compile reads the mapping file, verifies the role's column contract,
// filters to application tables, and returns the records sorted ascending by
// (execution_order, table_id). The sort is stable and deterministic so
// repeated compilations of the same file yield identical artifacts.
func (c *Compiler) Compile(role Role) ([]Record, error) {
	headers, rows, err := readTable(c.Path)
	if err != nil {
		return nil, err
	}

	headerSet := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		headerSet[h] = struct{}{}
	}
	for _, col := range role.requiredColumns() {
		if _, ok := headerSet[col]; !ok {
			return nil, fmt.Errorf("%w: '%s' is missing required column '%s' for %s role", ErrMalformedMapping, c.Path, col, role)
		}
	}

	var filterExpr *govaluate.EvaluableExpression
	if c.Filter != "" {
		filterExpr, err = govaluate.NewEvaluableExpression(c.Filter)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid filter expression '%s': %v", ErrMalformedMapping, c.Filter, err)
		}
	}

	records := make([]Record, 0, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for i, row := range rows {
		rowNum := i + 2 // 1-based file row, counting the header

		tableID, err := strconv.Atoi(strings.TrimSpace(row[columnTableID]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d of '%s': table_id '%s' is not an integer", ErrMalformedMapping, rowNum, c.Path, row[columnTableID])
		}
		executionOrder, err := strconv.Atoi(strings.TrimSpace(row[columnExecutionOrder]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d of '%s': execution_order '%s' is not an integer", ErrMalformedMapping, rowNum, c.Path, row[columnExecutionOrder])
		}

		// Only application tables participate in the pipeline.
		if !isAppTable(row[columnIsAppTable]) {
			c.log.Logf(logging.Debug, "Mapping row %d (table_id %d) excluded: not an application table.", rowNum, tableID)
			continue
		}

		if filterExpr != nil {
			keep, err := evaluateFilter(filterExpr, tableID, executionOrder, row)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d of '%s': %v", ErrMalformedMapping, rowNum, c.Path, err)
			}
			if !keep {
				c.log.Logf(logging.Debug, "Mapping row %d (table_id %d) excluded by filter.", rowNum, tableID)
				continue
			}
		}

		if _, dup := seen[tableID]; dup {
			return nil, fmt.Errorf("%w: '%s' contains duplicate table_id %d", ErrMalformedMapping, c.Path, tableID)
		}
		seen[tableID] = struct{}{}

		rec := Record{TableID: tableID, ExecutionOrder: executionOrder}
		switch role {
		case RoleSource:
			rec.SourceQuerySelect = strings.TrimSpace(row[columnSourceSelect])
		case RoleDestination:
			rec.DestinationQueryCreate = strings.TrimSpace(row[columnDestinationCreate])
			rec.DestinationQueryInsert = strings.TrimSpace(row[columnDestinationInsert])
		}
		records = append(records, rec)
	}

	// The (execution_order, table_id) ordering is the dependency contract:
	// lower execution_order always precedes higher, table_id breaks ties.
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].ExecutionOrder != records[j].ExecutionOrder {
			return records[i].ExecutionOrder < records[j].ExecutionOrder
		}
		return records[i].TableID < records[j].TableID
	})

	c.log.Logf(logging.Info, "Compiled %s mapping: %d of %d rows retained from '%s'.", role, len(records), len(rows), c.Path)
	return records, nil
}

// isAppTable reports whether an is_app_table cell marks an application table.
// CSV files carry 0/1; spreadsheet cells may render booleans as TRUE/FALSE.
func isAppTable(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true":
		return true
	default:
		return false
	}
}

// evaluateFilter applies the configured row filter. The expression sees the
// typed identifiers plus every raw cell value by column name.
func evaluateFilter(expr *govaluate.EvaluableExpression, tableID, executionOrder int, row map[string]string) (bool, error) {
	params := make(map[string]interface{}, len(row)+2)
	for k, v := range row {
		params[k] = v
	}
	params[columnTableID] = tableID
	params[columnExecutionOrder] = executionOrder

	result, err := expr.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("filter evaluation failed: %v", err)
	}
	keep, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("filter returned non-boolean %T (%v)", result, result)
	}
	return keep, nil
}

// readTable dispatches on the mapping file extension and returns the header
// row and the data rows keyed by header name.
func readTable(path string) ([]string, []map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVTable(path)
	case ".xlsx":
		return readXLSXTable(path)
	default:
		return nil, nil, fmt.Errorf("%w: unsupported mapping file extension '%s'", ErrMalformedMapping, filepath.Ext(path))
	}
}
