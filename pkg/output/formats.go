package output

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatCSV   = "csv"
	FormatTable = "table"

	// formatTextAlias is a CLI alias for the table format.
	formatTextAlias = "text"
	// formatYMLAlias is the short extension form of yaml.
	formatYMLAlias = "yml"
)

// ErrUnsupportedFormat indicates the requested output format is not supported.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Formats returns every supported output format.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatCSV, FormatTable}
}

// NormalizeFormat canonicalizes a user-provided output format string.
func NormalizeFormat(format string) string {
	normalized := strings.ToLower(strings.TrimSpace(format))

	switch normalized {
	case formatTextAlias:
		return FormatTable
	case formatYMLAlias:
		return FormatYAML
	}

	return normalized
}

// ValidateFormat returns the canonical form of format or ErrUnsupportedFormat.
func ValidateFormat(format string) (string, error) {
	normalized := NormalizeFormat(format)
	if slices.Contains(Formats(), normalized) {
		return normalized, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}
