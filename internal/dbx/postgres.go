// Package dbx provides the database connectivity capability consumed by the
// pipeline components: execute a statement against a named database and
// report success or failure. Connections are opened per discrete operation
// and closed before the next operation begins; nothing is pooled.
package dbx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"mssql2pg/internal/config"
	"mssql2pg/internal/logging"
	"mssql2pg/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxConnectFunc allows overriding pgx.Connect for testing.
var pgxConnectFunc = pgx.Connect

// Default database connection and statement timeout.
const defaultDbTimeout = 30 * time.Second

// PostgresClient executes statements against databases on one PostgreSQL server.
type PostgresClient struct {
	cfg       config.DestinationConfig
	batchSize int
	log       *logging.Logger
}

// NewPostgresClient creates a PostgresClient for the configured server.
func NewPostgresClient(cfg config.DestinationConfig, batchSize int, log *logging.Logger) *PostgresClient {
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	return &PostgresClient{cfg: cfg, batchSize: batchSize, log: log}
}

// connString builds the connection URL for a database on the configured server.
func (c *PostgresClient) connString(database string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.cfg.User, c.cfg.Password),
		Host:   fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port),
		Path:   "/" + database,
	}
	return u.String()
}

// connect opens a fresh connection to the named database. The caller closes it.
func (c *PostgresClient) connect(ctx context.Context, database string) (*pgx.Conn, error) {
	connStr := c.connString(database)
	conn, err := pgxConnectFunc(ctx, connStr)
	if err != nil {
		c.log.Logf(logging.Error, "PostgresClient failed to connect using connection string: %s", util.MaskCredentials(connStr))
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("PostgresClient connection to '%s' timed out: %w", database, ctx.Err())
		}
		return nil, fmt.Errorf("PostgresClient failed to connect to database '%s': %w", database, err)
	}
	return conn, nil
}

// Exec runs a single statement against the named database on a fresh
// connection, which is closed before Exec returns.
func (c *PostgresClient) Exec(ctx context.Context, database, query string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultDbTimeout)
	defer cancel()

	conn, err := c.connect(ctx, database)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, query); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("PostgresClient statement against '%s' timed out: %w", database, ctx.Err())
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			c.log.Logf(logging.Error, "PostgresClient statement failed on '%s'. PG Error Code: %s, Message: %s, Detail: %s", database, pgErr.Code, pgErr.Message, pgErr.Detail)
		} else {
			c.log.Logf(logging.Error, "PostgresClient statement failed on '%s'. Error: %v", database, err)
		}
		return fmt.Errorf("PostgresClient statement failed on '%s': %w", database, err)
	}
	return nil
}

// ExecBatch executes a parameterized statement once per row inside a single
// transaction, sending rows in fixed-size batches. The transaction is rolled
// back on the first failing command; partial batches are never committed.
func (c *PostgresClient) ExecBatch(ctx context.Context, database, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultDbTimeout*10)
	defer cancel()

	conn, err := c.connect(ctx, database)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("PostgresClient failed to begin transaction on '%s': %w", database, err)
	}
	committed := false
	defer func() {
		if !committed {
			rbCtx, rbCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer rbCancel()
			if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				c.log.Logf(logging.Error, "PostgresClient failed to rollback transaction on '%s': %v", database, rbErr)
			}
		}
	}()

	total := len(rows)
	for start := 0; start < total; start += c.batchSize {
		end := start + c.batchSize
		if end > total {
			end = total
		}
		if ctx.Err() != nil {
			return fmt.Errorf("PostgresClient batch starting at row %d timed out or cancelled: %w", start, ctx.Err())
		}

		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			batch.Queue(query, row...)
		}
		br := tx.SendBatch(ctx, batch)

		var firstBatchErr error
		for k := start; k < end; k++ {
			if _, execErr := br.Exec(); execErr != nil && firstBatchErr == nil {
				firstBatchErr = fmt.Errorf("command for row %d failed: %w", k, execErr)
			}
		}
		if closeErr := br.Close(); closeErr != nil && firstBatchErr == nil {
			firstBatchErr = fmt.Errorf("failed closing batch results for rows %d-%d: %w", start, end-1, closeErr)
		}
		if firstBatchErr != nil {
			var pgErr *pgconn.PgError
			if errors.As(firstBatchErr, &pgErr) {
				c.log.Logf(logging.Error, "PostgresClient batch failed on '%s'. PG Error Code: %s, Message: %s, Detail: %s", database, pgErr.Code, pgErr.Message, pgErr.Detail)
			}
			return fmt.Errorf("PostgresClient batch insert on '%s' failed: %w", database, firstBatchErr)
		}
		c.log.Logf(logging.Debug, "PostgresClient: batch rows %d-%d queued on '%s'.", start, end-1, database)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("PostgresClient failed to commit transaction on '%s': %w", database, err)
	}
	committed = true
	c.log.Logf(logging.Debug, "PostgresClient: committed %d rows on '%s'.", total, database)
	return nil
}
