package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// RepairLegacyText normalizes lookup descriptions coming from the legacy
// SQL Server database. Columns collated in Latin1 occasionally reach us as
// raw Windows-1252 bytes (accented client and customs-office names); valid
// UTF-8 passes through untouched apart from trimming.
func RepairLegacyText(s string) string {
	if s == "" {
		return ""
	}

	if utf8.ValidString(s) {
		return strings.TrimSpace(s)
	}

	decoded, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		// Fallback: return the raw string, a mangled accent beats losing the row
		return strings.TrimSpace(s)
	}

	return strings.TrimSpace(decoded)
}
