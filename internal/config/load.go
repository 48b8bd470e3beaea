package config

import (
	"fmt"
	"os"
	"path/filepath"

	"mssql2pg/internal/util"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses, and validates the YAML configuration file.
// It applies defaults and expands environment variables before returning the
// validated configuration.
func LoadConfig(filename string) (*Config, error) {
	// Read the configuration file content.
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	var config Config
	// Parse the YAML content into the configuration struct.
	err = yaml.Unmarshal(fileBytes, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
	}

	// Apply defaults and expansion before validation.
	applyDefaults(&config)
	expandEnv(&config)

	// Perform comprehensive validation of the loaded configuration.
	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults sets default values for various configuration sections.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Destination.AdminDatabase == "" {
		cfg.Destination.AdminDatabase = DefaultAdminDatabase
	}
	if cfg.SQL.SourceDir == "" {
		cfg.SQL.SourceDir = DefaultSourceDir
	}
	if cfg.SQL.DestinationDir == "" {
		cfg.SQL.DestinationDir = DefaultDestinationDir
	}
	if cfg.Loader.BatchSize <= 0 {
		cfg.Loader.BatchSize = DefaultBatchSize
	}
}

// expandEnv expands environment variables in the fields that commonly carry
// them (connection strings, credentials, filesystem paths).
func expandEnv(cfg *Config) {
	cfg.Source.DSN = util.ExpandEnvUniversal(cfg.Source.DSN)
	cfg.Destination.Password = util.ExpandEnvUniversal(cfg.Destination.Password)
	cfg.Role.Password = util.ExpandEnvUniversal(cfg.Role.Password)
	cfg.SQL.BasePath = util.ExpandEnvUniversal(cfg.SQL.BasePath)
	cfg.Mapping.File = util.ExpandEnvUniversal(cfg.Mapping.File)
	cfg.Mapping.SourceArtifact = util.ExpandEnvUniversal(cfg.Mapping.SourceArtifact)
	cfg.Mapping.DestinationArtifact = util.ExpandEnvUniversal(cfg.Mapping.DestinationArtifact)
	cfg.Logging.File = util.ExpandEnvUniversal(cfg.Logging.File)
}

// joinPath joins a base path and a subdirectory, tolerating an empty subdirectory.
func joinPath(base, sub string) string {
	if sub == "" {
		return base
	}
	return filepath.Join(base, sub)
}
