// Package pipeline orchestrates the full migration run: teardown, mapping
// compilation, provisioning, table build, extraction, and load, in a fixed
// sequence with fail-fast halting.
package pipeline

import (
	"context"
	"fmt"

	"mssql2pg/internal/build"
	"mssql2pg/internal/config"
	"mssql2pg/internal/dbx"
	"mssql2pg/internal/extract"
	"mssql2pg/internal/load"
	"mssql2pg/internal/logging"
	"mssql2pg/internal/mapping"
	"mssql2pg/internal/provision"
)

// Stage names used in failure diagnostics.
const (
	StageDropDatabases = "drop databases"
	StageDropRole      = "drop role"
	StageBuildMappings = "build query/table mappings"
	StageBuildDatabase = "build databases"
	StageCreateTables  = "create database tables"
	StageExtract       = "extract source data"
	StageLoad          = "load destination data"
)

// Collaborator capabilities, defined at the consumer.
type mappingCompiler interface {
	Compile(role mapping.Role) ([]mapping.Record, error)
}

type provisioner interface {
	Build(ctx context.Context, database string) error
	DropDatabase(ctx context.Context, database string) error
	DropRole(ctx context.Context, database string) error
}

type tableBuilder interface {
	CreateTables(ctx context.Context, database string, records []mapping.Record) error
}

type extractor interface {
	Extract(ctx context.Context, records []mapping.Record) ([]extract.TableData, error)
}

type loader interface {
	Load(ctx context.Context, database string, records []mapping.Record, data []extract.TableData) error
}

// Pipeline owns the run sequence and the mapping artifacts for its duration.
type Pipeline struct {
	cfg  *config.Config
	log  *logging.Logger
	comp mappingCompiler
	prov provisioner
	bld  tableBuilder
	ext  extractor
	ldr  loader

	// Artifact persistence hooks; overridable in tests.
	persistFunc      func(records []mapping.Record, path string) error
	loadArtifactFunc func(path string) ([]mapping.Record, error)
}

// New wires a Pipeline from configuration with real collaborators.
func New(cfg *config.Config, log *logging.Logger) (*Pipeline, error) {
	pg := dbx.NewPostgresClient(cfg.Destination, cfg.Loader.BatchSize, log)
	ms, err := dbx.NewSQLServerClient(cfg.Source.DSN, log)
	if err != nil {
		return nil, err
	}

	destDir := cfg.DestinationDirPath()
	return &Pipeline{
		cfg:              cfg,
		log:              log,
		comp:             mapping.NewCompiler(cfg.Mapping.File, cfg.Mapping.Filter, log),
		prov:             provision.NewProvisioner(pg, destDir, cfg.Destination.AdminDatabase, cfg.Role, log),
		bld:              build.NewBuilder(pg, destDir, log),
		ext:              extract.NewExtractor(ms, cfg.SourceDirPath(), log),
		ldr:              load.NewLoader(pg, destDir, log),
		persistFunc:      mapping.Persist,
		loadArtifactFunc: mapping.LoadArtifact,
	}, nil
}

// Run executes the full migration for the logical database name. Steps never
// run out of order and never run concurrently; the first failing stage halts
// the run. Partial completion is a valid halted state; re-running from the
// top recovers via the drop-then-rebuild teardown.
func (p *Pipeline) Run(ctx context.Context, database string, seedTest bool) error {
	testDatabase := database + config.TestDatabaseSuffix
	p.log.Logf(logging.Info, "Running ETL for Database: %s", database)

	p.banner("DROP DATABASES")
	if err := p.prov.DropDatabase(ctx, database); err != nil {
		return p.fail(StageDropDatabases, err)
	}
	if err := p.prov.DropDatabase(ctx, testDatabase); err != nil {
		return p.fail(StageDropDatabases, err)
	}

	p.banner("DROP ROLE")
	if err := p.prov.DropRole(ctx, database); err != nil {
		return p.fail(StageDropRole, err)
	}

	p.banner("BUILD QUERY/TABLE MAPPINGS")
	sourceRecords, err := p.buildMapping(mapping.RoleSource, p.cfg.Mapping.SourceArtifact)
	if err != nil {
		return p.fail(StageBuildMappings, err)
	}
	destRecords, err := p.buildMapping(mapping.RoleDestination, p.cfg.Mapping.DestinationArtifact)
	if err != nil {
		return p.fail(StageBuildMappings, err)
	}

	p.banner("BUILD DATABASES")
	if err := p.prov.Build(ctx, database); err != nil {
		return p.fail(StageBuildDatabase, err)
	}
	if err := p.prov.Build(ctx, testDatabase); err != nil {
		return p.fail(StageBuildDatabase, err)
	}

	p.banner("CREATE DATABASE TABLES")
	if err := p.bld.CreateTables(ctx, database, destRecords); err != nil {
		return p.fail(StageCreateTables, err)
	}
	if err := p.bld.CreateTables(ctx, testDatabase, destRecords); err != nil {
		return p.fail(StageCreateTables, err)
	}

	p.banner("EXTRACT SOURCE DATA")
	data, err := p.ext.Extract(ctx, sourceRecords)
	if err != nil {
		return p.fail(StageExtract, err)
	}

	p.banner("LOAD DESTINATION DATA")
	if err := p.ldr.Load(ctx, database, destRecords, data); err != nil {
		return p.fail(StageLoad, err)
	}
	if seedTest {
		if err := p.ldr.Load(ctx, testDatabase, destRecords, data); err != nil {
			return p.fail(StageLoad, err)
		}
	}

	p.log.Logf(logging.Info, "ETL for Database: %s completed.", database)
	return nil
}

// buildMapping compiles one role's mapping, persists its artifact, and reads
// it back from disk; the artifact on disk is the contract the later stages
// consume, not the in-memory slice.
func (p *Pipeline) buildMapping(role mapping.Role, artifactPath string) ([]mapping.Record, error) {
	p.log.Logf(logging.Info, "Building %s query/table mapping.", role)
	records, err := p.comp.Compile(role)
	if err != nil {
		return nil, err
	}
	if err := p.persistFunc(records, artifactPath); err != nil {
		return nil, err
	}
	persisted, err := p.loadArtifactFunc(artifactPath)
	if err != nil {
		return nil, err
	}
	p.log.Logf(logging.Info, "SUCCESS: %s query/table mapping persisted to '%s'.", role, artifactPath)
	return persisted, nil
}

// banner logs a stage transition marker.
func (p *Pipeline) banner(stage string) {
	p.log.Logf(logging.Info, "------ %s ------", stage)
}

// fail logs the EXITING diagnostic naming the failed stage and wraps the error.
func (p *Pipeline) fail(stage string, err error) error {
	p.log.Logf(logging.Error, "EXITING: stage '%s' failed: %v", stage, err)
	return fmt.Errorf("stage '%s' failed: %w", stage, err)
}
