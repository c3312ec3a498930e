package upsert

import (
	"fmt"
	"strings"
)

// Statement declaratively describes a multi-row MySQL upsert: target
// table, full column list in value order, and the conflict-key columns.
// Every non-key column is refreshed from the incoming values on conflict.
type Statement struct {
	Table      string
	Columns    []string
	KeyColumns []string
}

// Build renders the INSERT ... ON DUPLICATE KEY UPDATE text for rowCount
// rows. Placeholders only; values are always bound, never interpolated.
func (s Statement) Build(rowCount int) (string, error) {
	if rowCount <= 0 {
		return "", fmt.Errorf("no rows provided for upsert on table %s", s.Table)
	}
	if len(s.Columns) == 0 {
		return "", fmt.Errorf("no columns declared for table %s", s.Table)
	}

	keys := make(map[string]bool, len(s.KeyColumns))
	for _, k := range s.KeyColumns {
		keys[k] = true
	}

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(s.Columns)), ", ") + ")"
	rowsClause := strings.TrimSuffix(strings.Repeat(rowPlaceholder+", ", rowCount), ", ")

	var updates []string
	for _, c := range s.Columns {
		if keys[c] {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s=VALUES(%s)", c, c))
	}
	if len(updates) == 0 {
		return "", fmt.Errorf("table %s has no non-key columns to update", s.Table)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE %s",
		s.Table,
		strings.Join(s.Columns, ", "),
		rowsClause,
		strings.Join(updates, ", "),
	)
	return query, nil
}

// ColumnValue is one (column, value) pair of a dynamic per-row update.
type ColumnValue struct {
	Column string
	Value  any
}

// BuildRowUpdate renders a single-row UPDATE from a declarative
// (column, value) list. Replaces the legacy habit of appending SET
// fragments by string concatenation per present field.
func BuildRowUpdate(table, keyColumn string, key any, sets []ColumnValue) (string, []any, error) {
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("no columns to set for table %s", table)
	}

	clauses := make([]string, 0, len(sets))
	args := make([]any, 0, len(sets)+1)
	for _, cv := range sets {
		clauses = append(clauses, fmt.Sprintf("%s = ?", cv.Column))
		args = append(args, cv.Value)
	}
	args = append(args, key)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		table,
		strings.Join(clauses, ", "),
		keyColumn,
	)
	return query, args, nil
}
