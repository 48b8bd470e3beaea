// Package provision creates and tears down PostgreSQL databases, roles,
// schemas, and permissions from templated SQL scripts.
package provision

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mssql2pg/internal/config"
	"mssql2pg/internal/logging"
	"mssql2pg/internal/querystore"
)

// ErrProvision indicates a schema-provisioning statement failed at the engine.
var ErrProvision = errors.New("provision failure")

// Script filenames under the destination SQL directory.
const (
	scriptDatabaseCreate = "db_database__CREATE.sql"
	scriptRoleCreate     = "db_role__CREATE.sql"
	scriptDatabaseGrant  = "db_database__GRANT.sql"
	scriptSchemasCreate  = "db_schemas__CREATE.sql"
	scriptRoleGrant      = "db_role__GRANT.sql"
	scriptRoleDrop       = "db_role__DROP.sql"
)

// Executor is the connectivity capability the provisioner needs: execute a
// statement against a named database and report success or failure.
type Executor interface {
	Exec(ctx context.Context, database, query string) error
}

// Provisioner runs the fixed provisioning sequence for a target database.
type Provisioner struct {
	exec    Executor
	dir     string // destination SQL template directory
	adminDB string
	role    config.RoleConfig
	log     *logging.Logger
}

// NewProvisioner creates a Provisioner executing through exec.
func NewProvisioner(exec Executor, templateDir, adminDB string, role config.RoleConfig, log *logging.Logger) *Provisioner {
	return &Provisioner{exec: exec, dir: templateDir, adminDB: adminDB, role: role, log: log}
}

// bindings returns the substitution values supplied to every script.
// Scripts reference only the placeholders they need.
func (p *Provisioner) bindings(database string) map[string]string {
	return map[string]string{
		"database": database,
		"role":     p.role.Name,
		"password": p.role.Password,
	}
}

// runScript reads, substitutes, and executes one script against the given
// database connection target. Failures wrap ErrProvision with the script name.
func (p *Provisioner) runScript(ctx context.Context, script, connectDB, targetDB string) error {
	path := filepath.Join(p.dir, script)
	text, err := querystore.ReadTemplate(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProvision, script, err)
	}
	query, err := querystore.Substitute(text, p.bindings(targetDB))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProvision, script, err)
	}
	if err := p.exec.Exec(ctx, connectDB, query); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProvision, script, err)
	}
	p.log.Logf(logging.Info, "SUCCESS: %s executed.", script)
	return nil
}

// CreateDatabase issues the CREATE DATABASE script against the
// administrative connection.
func (p *Provisioner) CreateDatabase(ctx context.Context, database string) error {
	return p.runScript(ctx, scriptDatabaseCreate, p.adminDB, database)
}

// CreateRole creates the shared role from its templated script. Role
// creation is skipped for test database names: the test clone shares the
// role created for its production counterpart, avoiding duplicate-role errors.
func (p *Provisioner) CreateRole(ctx context.Context, database string) error {
	if strings.Contains(database, config.TestDatabaseSuffix) {
		p.log.Logf(logging.Info, "Skipping role creation for test database '%s' (role is shared).", database)
		return nil
	}
	return p.runScript(ctx, scriptRoleCreate, p.adminDB, database)
}

// GrantDatabase grants database-level permissions to the role.
func (p *Provisioner) GrantDatabase(ctx context.Context, database string) error {
	return p.runScript(ctx, scriptDatabaseGrant, p.adminDB, database)
}

// CreateSchemas creates the schemas inside the target database. This runs on
// a database-scoped connection because schemas live inside the database.
func (p *Provisioner) CreateSchemas(ctx context.Context, database string) error {
	return p.runScript(ctx, scriptSchemasCreate, database, database)
}

// GrantTables grants schema- and table-level permissions inside the target
// database, which must already contain its schemas.
func (p *Provisioner) GrantTables(ctx context.Context, database string) error {
	return p.runScript(ctx, scriptRoleGrant, database, database)
}

// Build runs the full provisioning sequence for a database. Each step
// requires the prior to have succeeded.
func (p *Provisioner) Build(ctx context.Context, database string) error {
	p.log.Logf(logging.Info, "Creating Database: %s", database)
	steps := []func(context.Context, string) error{
		p.CreateDatabase,
		p.CreateRole,
		p.GrantDatabase,
		p.CreateSchemas,
		p.GrantTables,
	}
	for _, step := range steps {
		if err := step(ctx, database); err != nil {
			return err
		}
	}
	p.log.Logf(logging.Info, "SUCCESS: %s database built.", database)
	return nil
}

// DropDatabase drops the database, terminating any connected sessions. The
// IF EXISTS form makes teardown safe on a fresh environment.
func (p *Provisioner) DropDatabase(ctx context.Context, database string) error {
	query := fmt.Sprintf(`DROP DATABASE IF EXISTS %s WITH (FORCE)`, quoteIdent(database))
	if err := p.exec.Exec(ctx, p.adminDB, query); err != nil {
		return fmt.Errorf("%w: drop database '%s': %v", ErrProvision, database, err)
	}
	p.log.Logf(logging.Info, "SUCCESS: database %s dropped.", database)
	return nil
}

// DropRole runs the templated DROP ROLE script. A role that never existed is
// a legitimate no-op, not an error.
func (p *Provisioner) DropRole(ctx context.Context, database string) error {
	return p.runScript(ctx, scriptRoleDrop, p.adminDB, database)
}

// quoteIdent quotes a PostgreSQL identifier, escaping embedded quotes.
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
