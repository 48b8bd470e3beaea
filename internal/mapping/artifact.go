package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persist serializes records to the mapping artifact JSON form at path.
// The write is not trusted until the artifact's existence on disk has been
// confirmed; any failure along the way wraps ErrWriteFailure.
func Persist(records []Record, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: failed to create directory for '%s': %v", ErrWriteFailure, path, err)
		}
	}

	var data []byte
	var err error
	if len(records) == 0 {
		data = []byte("[]\n")
	} else {
		data, err = json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("%w: failed to marshal mapping artifact: %v", ErrWriteFailure, err)
		}
		data = append(data, '\n')
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write '%s': %v", ErrWriteFailure, path, err)
	}

	// A write is confirmed only by an existence check on the artifact file.
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: artifact '%s' not found after write: %v", ErrWriteFailure, path, err)
	}
	return nil
}

// LoadArtifact reads a persisted mapping artifact back, preserving the
// sequence order it was written with.
func LoadArtifact(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping artifact '%s': %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mapping artifact '%s': %w", path, err)
	}
	return records, nil
}
