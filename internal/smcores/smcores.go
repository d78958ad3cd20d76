// Package smcores holds the compute-capability to CUDA-cores table.
// The table ships as an embedded YAML document so the binary stays
// self-contained while the values remain auditable as data.
package smcores

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed table.yaml
var tableYAML []byte

// Entry is one row of the capability table.
type Entry struct {
	SM    string `yaml:"sm"`
	Arch  string `yaml:"arch"`
	Cores int    `yaml:"cores"`
}

type document struct {
	Entries []Entry `yaml:"entries"`
}

type capability struct {
	major int
	minor int
}

// Table maps a compute capability to its cores-per-multiprocessor
// entry. Immutable after Parse.
type Table struct {
	entries map[capability]Entry
}

// ValidationError represents a single problem in the table document
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}

// Load parses and validates the embedded table document.
func Load() (*Table, error) {
	return Parse(tableYAML)
}

// Parse parses and validates a table document.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse core table: %w", err)
	}

	if validationErrors := validate(doc.Entries); len(validationErrors) > 0 {
		return nil, fmt.Errorf("core table validation failed: %s", formatValidationErrors(validationErrors))
	}

	table := &Table{entries: make(map[capability]Entry, len(doc.Entries))}
	for _, entry := range doc.Entries {
		major, minor, err := parseSM(entry.SM)
		if err != nil {
			// validate already rejected malformed sm values
			return nil, err
		}
		table.entries[capability{major: major, minor: minor}] = entry
	}

	return table, nil
}

// Lookup returns the entry for a compute capability. A miss means the
// capability is newer (or odder) than the table knows; callers treat
// that as an unknown core count, not a failure.
func (t *Table) Lookup(major, minor int) (Entry, bool) {
	entry, ok := t.entries[capability{major: major, minor: minor}]
	return entry, ok
}

// Len returns the number of table entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// validate checks the parsed entries and collects all problems
func validate(entries []Entry) []ValidationError {
	var errors []ValidationError

	if len(entries) == 0 {
		return []ValidationError{{
			Path:    "entries",
			Message: "table must contain at least one entry",
		}}
	}

	seen := make(map[capability]bool, len(entries))
	for i, entry := range entries {
		path := fmt.Sprintf("entries[%d]", i)

		// Dedupe on the parsed pair: "8.9" and "8.09" are the same
		// capability and must not collide silently in the table map.
		if major, minor, err := parseSM(entry.SM); err != nil {
			errors = append(errors, ValidationError{
				Path:    path + ".sm",
				Message: err.Error(),
			})
		} else {
			key := capability{major: major, minor: minor}
			if seen[key] {
				errors = append(errors, ValidationError{
					Path:    path + ".sm",
					Message: fmt.Sprintf("duplicate compute capability '%s'", entry.SM),
				})
			}
			seen[key] = true
		}

		if entry.Cores <= 0 {
			errors = append(errors, ValidationError{
				Path:    path + ".cores",
				Message: fmt.Sprintf("must be positive, got %d", entry.Cores),
			})
		}

		if strings.TrimSpace(entry.Arch) == "" {
			errors = append(errors, ValidationError{
				Path:    path + ".arch",
				Message: "must not be empty",
			})
		}
	}

	return errors
}

// parseSM splits a "major.minor" capability string into its halves
func parseSM(s string) (int, int, error) {
	majorStr, minorStr, found := strings.Cut(s, ".")
	if !found {
		return 0, 0, fmt.Errorf("must be '<major>.<minor>', got '%s'", s)
	}

	major, err := strconv.Atoi(majorStr)
	if err != nil || major < 0 {
		return 0, 0, fmt.Errorf("major version must be a non-negative integer, got '%s'", majorStr)
	}

	minor, err := strconv.Atoi(minorStr)
	if err != nil || minor < 0 {
		return 0, 0, fmt.Errorf("minor version must be a non-negative integer, got '%s'", minorStr)
	}

	return major, minor, nil
}

// formatValidationErrors formats validation errors for display
func formatValidationErrors(errors []ValidationError) string {
	if len(errors) == 1 {
		return errors[0].Error()
	}
	parts := make([]string, 0, len(errors))
	for _, err := range errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%d problems: %s", len(errors), strings.Join(parts, "; "))
}
