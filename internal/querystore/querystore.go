// Package querystore reads SQL statements from on-disk template files and
// performs strict placeholder substitution. Templates are never cached; every
// call re-reads the file.
package querystore

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrMissingTemplate indicates a required SQL template file does not exist.
	ErrMissingTemplate = errors.New("missing SQL template")
	// ErrEmptyTemplate indicates a SQL template file exists but contains no statement.
	ErrEmptyTemplate = errors.New("empty SQL template")
)

// UnresolvedPlaceholderError indicates a template references a substitution
// variable with no supplied binding.
type UnresolvedPlaceholderError struct {
	Placeholder string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("unresolved placeholder $%s in SQL template", e.Placeholder)
}

// placeholderRegexp matches $name tokens. Names follow identifier rules so a
// literal dollar amount in SQL text is left alone.
var placeholderRegexp = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// whitespaceRegexp collapses runs of whitespace left by newline/tab removal.
var whitespaceRegexp = regexp.MustCompile(`[ \t\r\n]+`)

// ReadTemplate reads the SQL template at path and normalizes multi-line SQL
// into a single executable statement string. A missing file wraps
// ErrMissingTemplate; a file that is blank after normalization wraps
// ErrEmptyTemplate.
func ReadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: '%s'", ErrMissingTemplate, path)
		}
		return "", fmt.Errorf("failed to read SQL template '%s': %w", path, err)
	}

	text := strings.TrimSpace(whitespaceRegexp.ReplaceAllString(string(data), " "))
	if text == "" {
		return "", fmt.Errorf("%w: '%s'", ErrEmptyTemplate, path)
	}
	return text, nil
}

// Substitute replaces every $name placeholder in text using bindings.
// Any placeholder without a binding fails with *UnresolvedPlaceholderError;
// a statement is never executed with a residual $name token. Bindings that
// the text does not reference are ignored.
func Substitute(text string, bindings map[string]string) (string, error) {
	var missing string
	result := placeholderRegexp.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1:]
		value, ok := bindings[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return value
	})
	if missing != "" {
		return "", &UnresolvedPlaceholderError{Placeholder: missing}
	}
	return result, nil
}
