package dbx

import (
	"context"
	"database/sql"
	"fmt"

	"mssql2pg/internal/logging"
	"mssql2pg/internal/util"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// sqlOpenFunc allows overriding sql.Open for testing.
var sqlOpenFunc = sql.Open

// SQLServerClient executes read-only queries against the source SQL Server.
// Each query runs on a freshly opened connection; extractions are independent
// and share no transaction.
type SQLServerClient struct {
	dsn string
	log *logging.Logger
}

// NewSQLServerClient constructs a client after validating the DSN, failing
// fast on obvious mistakes.
func NewSQLServerClient(dsn string, log *logging.Logger) (*SQLServerClient, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("invalid SQL Server DSN (%s): %w", util.MaskCredentials(dsn), err)
	}
	return &SQLServerClient{dsn: dsn, log: log}, nil
}

// Query runs a SELECT against the source engine and returns every row as a
// sequence of column values, order matching the SELECT's projection.
func (c *SQLServerClient) Query(ctx context.Context, query string) ([][]any, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultDbTimeout*2)
	defer cancel()

	db, err := sqlOpenFunc("sqlserver", c.dsn)
	if err != nil {
		return nil, fmt.Errorf("SQLServerClient failed to open connection: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		c.log.Logf(logging.Error, "SQLServerClient query failed (%s): %v", util.MaskCredentials(c.dsn), err)
		return nil, fmt.Errorf("SQLServerClient failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("SQLServerClient failed to read column descriptions: %w", err)
	}

	data := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("SQLServerClient failed to scan row values: %w", err)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SQLServerClient error during row iteration: %w", err)
	}

	c.log.Logf(logging.Debug, "SQLServerClient returned %d rows.", len(data))
	return data, nil
}
