package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Knetic/govaluate"
)

// knownLogLevels lists valid values for Config.Logging.Level.
var knownLogLevels = []string{"none", "error", "warn", "warning", "info", "debug"}

// knownMappingExtensions lists supported mapping file formats.
var knownMappingExtensions = []string{".csv", ".xlsx"}

// isValidEnumValue checks if a value is present in a list of allowed string values (case-insensitive).
func isValidEnumValue(value string, allowedValues []string) bool {
	lowerValue := strings.ToLower(value)
	for _, allowed := range allowedValues {
		if lowerValue == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ValidateConfig performs comprehensive validation of the entire configuration.
func ValidateConfig(cfg *Config) error {
	var allErrors []string

	if !isValidEnumValue(cfg.Logging.Level, knownLogLevels) {
		allErrors = append(allErrors, fmt.Sprintf("- Config.Logging.Level: invalid log level '%s', must be one of %v", cfg.Logging.Level, knownLogLevels))
	}

	if cfg.Source.DSN == "" {
		allErrors = append(allErrors, "- Config.Source.DSN: SQL Server connection string is required")
	}

	if cfg.Destination.Host == "" {
		allErrors = append(allErrors, "- Config.Destination.Host: PostgreSQL host is required")
	}
	if cfg.Destination.Port <= 0 || cfg.Destination.Port > 65535 {
		allErrors = append(allErrors, fmt.Sprintf("- Config.Destination.Port: invalid port %d", cfg.Destination.Port))
	}
	if cfg.Destination.User == "" {
		allErrors = append(allErrors, "- Config.Destination.User: PostgreSQL user is required")
	}

	if cfg.Role.Name == "" {
		allErrors = append(allErrors, "- Config.Role.Name: role name is required")
	}
	if cfg.Role.Password == "" {
		allErrors = append(allErrors, "- Config.Role.Password: role password is required")
	}

	if cfg.SQL.BasePath == "" {
		allErrors = append(allErrors, "- Config.SQL.BasePath: SQL template base path is required")
	}

	if cfg.Mapping.File == "" {
		allErrors = append(allErrors, "- Config.Mapping.File: mapping file path is required")
	} else {
		ext := strings.ToLower(filepath.Ext(cfg.Mapping.File))
		if !isValidEnumValue(ext, knownMappingExtensions) {
			allErrors = append(allErrors, fmt.Sprintf("- Config.Mapping.File: unsupported mapping file extension '%s', must be one of %v", ext, knownMappingExtensions))
		}
	}
	if cfg.Mapping.SourceArtifact == "" {
		allErrors = append(allErrors, "- Config.Mapping.SourceArtifact: source artifact path is required")
	}
	if cfg.Mapping.DestinationArtifact == "" {
		allErrors = append(allErrors, "- Config.Mapping.DestinationArtifact: destination artifact path is required")
	}

	// The optional mapping filter must at least parse; evaluation errors
	// against real rows surface during compilation.
	if cfg.Mapping.Filter != "" {
		if _, err := govaluate.NewEvaluableExpression(cfg.Mapping.Filter); err != nil {
			allErrors = append(allErrors, fmt.Sprintf("- Config.Mapping.Filter: invalid filter expression '%s': %v", cfg.Mapping.Filter, err))
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(allErrors, "\n"))
	}
	return nil
}
