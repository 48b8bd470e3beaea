package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mssql2pg/internal/config"
	"mssql2pg/internal/logging"
)

// fakeExecutor records executed statements and can fail on a chosen call.
type fakeExecutor struct {
	calls  []execCall
	failOn int // 1-based call number to fail on; 0 means never
}

type execCall struct {
	database string
	query    string
}

func (f *fakeExecutor) Exec(ctx context.Context, database, query string) error {
	f.calls = append(f.calls, execCall{database: database, query: query})
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return fmt.Errorf("simulated engine failure")
	}
	return nil
}

// scriptFixtures maps each provisioning script to a representative template.
var scriptFixtures = map[string]string{
	"db_database__CREATE.sql": "CREATE DATABASE $database;",
	"db_role__CREATE.sql":     "CREATE ROLE $role WITH LOGIN PASSWORD '$password';",
	"db_database__GRANT.sql":  "GRANT ALL PRIVILEGES ON DATABASE $database TO $role;",
	"db_schemas__CREATE.sql":  "CREATE SCHEMA sales; CREATE SCHEMA ref;",
	"db_role__GRANT.sql":      "GRANT USAGE ON SCHEMA sales TO $role;",
	"db_role__DROP.sql":       "DROP ROLE IF EXISTS $role;",
}

func writeScripts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range scriptFixtures {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write script %s: %v", name, err)
		}
	}
	return dir
}

func newTestProvisioner(exec Executor, dir string) *Provisioner {
	role := config.RoleConfig{Name: "etl_user", Password: "secret"}
	return NewProvisioner(exec, dir, "postgres", role, logging.New(io.Discard, logging.None))
}

func TestBuildSequence(t *testing.T) {
	exec := &fakeExecutor{}
	p := newTestProvisioner(exec, writeScripts(t))

	if err := p.Build(context.Background(), "aw_sales"); err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}

	if len(exec.calls) != 5 {
		t.Fatalf("Build() executed %d statements, want 5", len(exec.calls))
	}

	wantQueries := []string{
		"CREATE DATABASE aw_sales;",
		"CREATE ROLE etl_user WITH LOGIN PASSWORD 'secret';",
		"GRANT ALL PRIVILEGES ON DATABASE aw_sales TO etl_user;",
		"CREATE SCHEMA sales; CREATE SCHEMA ref;",
		"GRANT USAGE ON SCHEMA sales TO etl_user;",
	}
	wantDatabases := []string{"postgres", "postgres", "postgres", "aw_sales", "aw_sales"}
	for i, call := range exec.calls {
		if call.query != wantQueries[i] {
			t.Errorf("call %d query = %q, want %q", i, call.query, wantQueries[i])
		}
		if call.database != wantDatabases[i] {
			t.Errorf("call %d database = %q, want %q", i, call.database, wantDatabases[i])
		}
	}
}

func TestBuildSkipsRoleForTestDatabase(t *testing.T) {
	exec := &fakeExecutor{}
	p := newTestProvisioner(exec, writeScripts(t))

	if err := p.Build(context.Background(), "aw_sales_test"); err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}

	if len(exec.calls) != 4 {
		t.Fatalf("Build() executed %d statements, want 4 (role creation skipped)", len(exec.calls))
	}
	for _, call := range exec.calls {
		if strings.Contains(call.query, "CREATE ROLE") {
			t.Errorf("Role creation should be skipped for test database, got: %q", call.query)
		}
	}
}

func TestBuildStopsAtFirstFailure(t *testing.T) {
	exec := &fakeExecutor{failOn: 2}
	p := newTestProvisioner(exec, writeScripts(t))

	err := p.Build(context.Background(), "aw_sales")
	if !errors.Is(err, ErrProvision) {
		t.Fatalf("Build() error = %v, want wrapping %v", err, ErrProvision)
	}
	if !strings.Contains(err.Error(), "db_role__CREATE.sql") {
		t.Errorf("Build() error should name the failing script, got: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Errorf("Build() executed %d statements after failure, want 2", len(exec.calls))
	}
}

func TestBuildMissingScript(t *testing.T) {
	dir := writeScripts(t)
	if err := os.Remove(filepath.Join(dir, "db_schemas__CREATE.sql")); err != nil {
		t.Fatalf("Failed to remove script: %v", err)
	}

	exec := &fakeExecutor{}
	p := newTestProvisioner(exec, dir)

	err := p.Build(context.Background(), "aw_sales")
	if !errors.Is(err, ErrProvision) {
		t.Fatalf("Build() error = %v, want wrapping %v", err, ErrProvision)
	}
	if !strings.Contains(err.Error(), "db_schemas__CREATE.sql") {
		t.Errorf("Build() error should name the missing script, got: %v", err)
	}
}

func TestDropDatabase(t *testing.T) {
	exec := &fakeExecutor{}
	p := newTestProvisioner(exec, writeScripts(t))

	if err := p.DropDatabase(context.Background(), "aw_sales"); err != nil {
		t.Fatalf("DropDatabase() unexpected error: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("DropDatabase() executed %d statements, want 1", len(exec.calls))
	}
	want := `DROP DATABASE IF EXISTS "aw_sales" WITH (FORCE)`
	if exec.calls[0].query != want {
		t.Errorf("DropDatabase() query = %q, want %q", exec.calls[0].query, want)
	}
	if exec.calls[0].database != "postgres" {
		t.Errorf("DropDatabase() ran on %q, want administrative database", exec.calls[0].database)
	}
}

func TestDropRole(t *testing.T) {
	exec := &fakeExecutor{}
	p := newTestProvisioner(exec, writeScripts(t))

	if err := p.DropRole(context.Background(), "aw_sales"); err != nil {
		t.Fatalf("DropRole() unexpected error: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("DropRole() executed %d statements, want 1", len(exec.calls))
	}
	if exec.calls[0].query != "DROP ROLE IF EXISTS etl_user;" {
		t.Errorf("DropRole() query = %q", exec.calls[0].query)
	}
}
