package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mssql2pg/internal/logging"
	"mssql2pg/internal/mapping"
)

type fakeExecutor struct {
	calls  []string
	failOn int // 1-based call number to fail on; 0 means never
}

func (f *fakeExecutor) Exec(ctx context.Context, database, query string) error {
	f.calls = append(f.calls, query)
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return fmt.Errorf("simulated engine failure")
	}
	return nil
}

func writeCreateScripts(t *testing.T, names map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write script %s: %v", name, err)
		}
	}
	return dir
}

func testRecords() []mapping.Record {
	return []mapping.Record{
		{TableID: 2, ExecutionOrder: 5, DestinationQueryCreate: "customers__CREATE.sql"},
		{TableID: 1, ExecutionOrder: 10, DestinationQueryCreate: "orders__CREATE.sql"},
		{TableID: 4, ExecutionOrder: 20, DestinationQueryCreate: "items__CREATE.sql"},
	}
}

func TestCreateTablesInOrder(t *testing.T) {
	dir := writeCreateScripts(t, map[string]string{
		"customers__CREATE.sql": "CREATE TABLE sales.customers (id INT);",
		"orders__CREATE.sql":    "CREATE TABLE sales.orders (id INT);",
		"items__CREATE.sql":     "CREATE TABLE sales.items (id INT);",
	})
	exec := &fakeExecutor{}
	b := NewBuilder(exec, dir, logging.New(io.Discard, logging.None))

	if err := b.CreateTables(context.Background(), "aw_sales", testRecords()); err != nil {
		t.Fatalf("CreateTables() unexpected error: %v", err)
	}

	want := []string{
		"CREATE TABLE sales.customers (id INT);",
		"CREATE TABLE sales.orders (id INT);",
		"CREATE TABLE sales.items (id INT);",
	}
	if len(exec.calls) != len(want) {
		t.Fatalf("CreateTables() executed %d statements, want %d", len(exec.calls), len(want))
	}
	for i, q := range want {
		if exec.calls[i] != q {
			t.Errorf("statement %d = %q, want %q", i, exec.calls[i], q)
		}
	}
}

func TestCreateTablesStopsAtFirstFailure(t *testing.T) {
	dir := writeCreateScripts(t, map[string]string{
		"customers__CREATE.sql": "CREATE TABLE sales.customers (id INT);",
		"orders__CREATE.sql":    "CREATE TABLE sales.orders (id INT);",
		"items__CREATE.sql":     "CREATE TABLE sales.items (id INT);",
	})
	exec := &fakeExecutor{failOn: 2}
	b := NewBuilder(exec, dir, logging.New(io.Discard, logging.None))

	err := b.CreateTables(context.Background(), "aw_sales", testRecords())
	if !errors.Is(err, ErrTableCreation) {
		t.Fatalf("CreateTables() error = %v, want wrapping %v", err, ErrTableCreation)
	}
	if !strings.Contains(err.Error(), "orders__CREATE.sql") || !strings.Contains(err.Error(), "table_id 1") {
		t.Errorf("CreateTables() error should identify the failing table, got: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Errorf("CreateTables() executed %d statements after failure, want 2", len(exec.calls))
	}
}

func TestCreateTablesMissingScript(t *testing.T) {
	dir := writeCreateScripts(t, map[string]string{
		"customers__CREATE.sql": "CREATE TABLE sales.customers (id INT);",
	})
	exec := &fakeExecutor{}
	b := NewBuilder(exec, dir, logging.New(io.Discard, logging.None))

	err := b.CreateTables(context.Background(), "aw_sales", testRecords())
	if !errors.Is(err, ErrTableCreation) {
		t.Fatalf("CreateTables() error = %v, want wrapping %v", err, ErrTableCreation)
	}
	// The first record resolves; the second is absent, so exactly one ran.
	if len(exec.calls) != 1 {
		t.Errorf("CreateTables() executed %d statements, want 1", len(exec.calls))
	}
}

func TestCreateTablesEmpty(t *testing.T) {
	exec := &fakeExecutor{}
	b := NewBuilder(exec, t.TempDir(), logging.New(io.Discard, logging.None))

	if err := b.CreateTables(context.Background(), "aw_sales", nil); err != nil {
		t.Fatalf("CreateTables() unexpected error for empty mapping: %v", err)
	}
	if len(exec.calls) != 0 {
		t.Errorf("CreateTables() executed %d statements for empty mapping, want 0", len(exec.calls))
	}
}
