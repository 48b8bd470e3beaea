package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"mssql2pg/internal/extract"
	"mssql2pg/internal/logging"
	"mssql2pg/internal/mapping"
)

type batchCall struct {
	database string
	query    string
	rows     [][]any
}

// fakeBatchExecutor records batch calls and can fail on a chosen call.
type fakeBatchExecutor struct {
	calls  []batchCall
	failOn int // 1-based call number to fail on; 0 means never
}

func (f *fakeBatchExecutor) ExecBatch(ctx context.Context, database, query string, rows [][]any) error {
	f.calls = append(f.calls, batchCall{database: database, query: query, rows: rows})
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return fmt.Errorf("simulated insert failure")
	}
	return nil
}

func writeInserts(t *testing.T, templates map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range templates {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write template %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeInserts(t, map[string]string{
		"customers__INSERT.sql": "INSERT INTO sales.customers (id, name) VALUES ($1, $2);",
		"orders__INSERT.sql":    "INSERT INTO sales.orders (id, total) VALUES ($1, $2);",
	})
	exec := &fakeBatchExecutor{}
	l := NewLoader(exec, dir, logging.New(io.Discard, logging.None))

	records := []mapping.Record{
		{TableID: 2, ExecutionOrder: 5, DestinationQueryInsert: "customers__INSERT.sql"},
		{TableID: 1, ExecutionOrder: 10, DestinationQueryInsert: "orders__INSERT.sql"},
	}
	data := []extract.TableData{
		{TableID: 2, Rows: [][]any{{int64(1), "acme"}, {int64(2), "globex"}}},
		{TableID: 1, Rows: [][]any{{int64(10), 99.5}}},
	}

	if err := l.Load(context.Background(), "aw_sales", records, data); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("Load() made %d batch calls, want 2", len(exec.calls))
	}
	if exec.calls[0].query != "INSERT INTO sales.customers (id, name) VALUES ($1, $2);" {
		t.Errorf("first call query = %q", exec.calls[0].query)
	}
	if len(exec.calls[0].rows) != 2 || len(exec.calls[1].rows) != 1 {
		t.Errorf("batch row counts = [%d %d], want [2 1]", len(exec.calls[0].rows), len(exec.calls[1].rows))
	}
	if exec.calls[0].database != "aw_sales" {
		t.Errorf("load ran on %q, want aw_sales", exec.calls[0].database)
	}
}

func TestLoadSkipsTableWithoutExtraction(t *testing.T) {
	dir := writeInserts(t, map[string]string{
		"customers__INSERT.sql": "INSERT INTO sales.customers (id) VALUES ($1);",
		"lookup__INSERT.sql":    "INSERT INTO ref.lookup (id) VALUES ($1);",
	})
	exec := &fakeBatchExecutor{}
	l := NewLoader(exec, dir, logging.New(io.Discard, logging.None))

	records := []mapping.Record{
		{TableID: 2, ExecutionOrder: 5, DestinationQueryInsert: "customers__INSERT.sql"},
		{TableID: 4, ExecutionOrder: 10, DestinationQueryInsert: "lookup__INSERT.sql"},
	}
	// No extraction entry exists for table_id 4.
	data := []extract.TableData{
		{TableID: 2, Rows: [][]any{{int64(1)}}},
	}

	if err := l.Load(context.Background(), "aw_sales", records, data); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("Load() made %d batch calls, want 1 (table_id 4 skipped)", len(exec.calls))
	}
	if exec.calls[0].query != "INSERT INTO sales.customers (id) VALUES ($1);" {
		t.Errorf("unexpected query executed: %q", exec.calls[0].query)
	}
}

func TestLoadZeroRowEntrySkipped(t *testing.T) {
	dir := writeInserts(t, map[string]string{
		"archive__INSERT.sql": "INSERT INTO sales.archive (id) VALUES ($1);",
	})
	exec := &fakeBatchExecutor{}
	l := NewLoader(exec, dir, logging.New(io.Discard, logging.None))

	records := []mapping.Record{
		{TableID: 3, ExecutionOrder: 5, DestinationQueryInsert: "archive__INSERT.sql"},
	}
	data := []extract.TableData{
		{TableID: 3, Rows: [][]any{}},
	}

	if err := l.Load(context.Background(), "aw_sales", records, data); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(exec.calls) != 0 {
		t.Errorf("Load() made %d batch calls for a zero-row table, want 0", len(exec.calls))
	}
}

func TestLoadStopsAtFirstFailure(t *testing.T) {
	dir := writeInserts(t, map[string]string{
		"customers__INSERT.sql": "INSERT INTO sales.customers (id) VALUES ($1);",
		"orders__INSERT.sql":    "INSERT INTO sales.orders (id) VALUES ($1);",
	})
	exec := &fakeBatchExecutor{failOn: 1}
	l := NewLoader(exec, dir, logging.New(io.Discard, logging.None))

	records := []mapping.Record{
		{TableID: 2, ExecutionOrder: 5, DestinationQueryInsert: "customers__INSERT.sql"},
		{TableID: 1, ExecutionOrder: 10, DestinationQueryInsert: "orders__INSERT.sql"},
	}
	data := []extract.TableData{
		{TableID: 2, Rows: [][]any{{int64(1)}}},
		{TableID: 1, Rows: [][]any{{int64(2)}}},
	}

	err := l.Load(context.Background(), "aw_sales", records, data)
	if !errors.Is(err, ErrInsert) {
		t.Fatalf("Load() error = %v, want wrapping %v", err, ErrInsert)
	}
	if len(exec.calls) != 1 {
		t.Errorf("Load() made %d batch calls after failure, want 1", len(exec.calls))
	}
}

func TestLoadMissingTemplateIsFailure(t *testing.T) {
	exec := &fakeBatchExecutor{}
	l := NewLoader(exec, t.TempDir(), logging.New(io.Discard, logging.None))

	records := []mapping.Record{
		{TableID: 1, ExecutionOrder: 5, DestinationQueryInsert: "absent__INSERT.sql"},
	}
	err := l.Load(context.Background(), "aw_sales", records, nil)
	if !errors.Is(err, ErrInsert) {
		t.Fatalf("Load() error = %v, want wrapping %v", err, ErrInsert)
	}
}
