package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mssql2pg/internal/config"
	"mssql2pg/internal/logging"
	"mssql2pg/internal/pipeline"
)

// Define common application-level errors.
var (
	ErrUsage          = errors.New("usage error")
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrMissingArgs    = errors.New("missing required arguments")
)

// Factory variables; tests can replace these functions.
var (
	newPipelineFunc = func(cfg *config.Config, log *logging.Logger) (pipelineRunner, error) {
		return pipeline.New(cfg, log)
	}
	osStatFunc     = os.Stat
	osOpenFileFunc = os.OpenFile
)

// pipelineRunner is the orchestration capability the app drives.
type pipelineRunner interface {
	Run(ctx context.Context, database string, seedTest bool) error
}

// AppRunner encapsulates the application's execution logic.
type AppRunner struct{}

// NewAppRunner creates a new instance of the application runner.
func NewAppRunner() *AppRunner {
	return &AppRunner{}
}

// usageText defines the command-line help information.
const usageText = `Usage:
  mssql2pg [options]

Options:
  -config string
        YAML configuration file (default "config/mssql2pg.yaml")
  -database string
        Logical destination database name (required)
  -seed-test
        Also seed the <database>_test clone with the extracted data (default false)
  -loglevel string
        Logging level (none, error, warn, info, debug) (default "info")
  -help
        Show help

Environment Variables:
  Any VAR          Can be used in config paths/connection strings via $VAR/${VAR} or %VAR%

Examples:
  mssql2pg -config=config/mssql2pg.yaml -database=aw_sales
  mssql2pg -database=aw_sales -seed-test -loglevel=debug
`

// Usage prints the command-line help information to the specified writer.
func (a *AppRunner) Usage(writer io.Writer) {
	fmt.Fprint(writer, usageText)
}

// Run parses command-line arguments and executes the migration pipeline.
func (a *AppRunner) Run(args []string) error {
	fs := flag.NewFlagSet("mssql2pg", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "config/mssql2pg.yaml", "YAML configuration file")
	database := fs.String("database", "", "Logical destination database name")
	seedTest := fs.Bool("seed-test", false, "Also seed the test database")
	logLevelStr := fs.String("loglevel", "info", "Logging level")
	helpFlag := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			a.Usage(os.Stderr)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *helpFlag {
		a.Usage(os.Stderr)
		return nil
	}
	if *database == "" {
		return fmt.Errorf("%w: -database is required", ErrMissingArgs)
	}

	// The logger exists before config loading so load failures are reported
	// through it; the level may be adjusted once config is in hand.
	level, err := logging.ParseLevel(*logLevelStr)
	log := logging.New(os.Stderr, level)
	if err != nil {
		log.Logf(logging.Warning, "Invalid log level '%s' provided, defaulting to 'info'.", *logLevelStr)
	}

	if _, err := osStatFunc(*configFile); err != nil {
		if os.IsNotExist(err) {
			log.Logf(logging.Error, "Config file '%s' not found.", *configFile)
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to stat config file '%s': %w", *configFile, err)
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Logf(logging.Error, "Error loading/validating config '%s': %v", *configFile, err)
		return err
	}

	// The flag wins over the config file when explicitly set.
	if !isFlagSet(fs, "loglevel") && cfg.Logging.Level != "" {
		if cfgLevel, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
			log.SetLevel(cfgLevel)
		}
	}

	// Optional log file alongside stderr.
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory for log file '%s': %w", cfg.Logging.File, err)
			}
		}
		f, err := osOpenFileFunc(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file '%s': %w", cfg.Logging.File, err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	log.Logf(logging.Info, "Starting migration with config: %s", *configFile)

	p, err := newPipelineFunc(cfg, log)
	if err != nil {
		log.Logf(logging.Error, "Failed to construct pipeline: %v", err)
		return err
	}
	return p.Run(context.Background(), *database, *seedTest)
}

// isFlagSet reports whether a flag was explicitly provided on the command line.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
