// Package normalize holds the value conversions applied to every field
// crossing the SQL Server → MySQL boundary. The two engines disagree on
// timezone handling and on type strictness for money and boolean columns,
// so no value is ever written raw: each date, amount, flag and text field
// passes through exactly one of these functions.
package normalize

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aduanapp/refsync/pkg/encoding"
)

// SourceOffset is the fixed shift between the capture zone of the legacy
// system and the canonical zone stored in the reporting database.
const SourceOffset = 6 * time.Hour

// SentinelYear marks the cutoff for the legacy "no date" placeholder.
// The source stores 1899-12-30/31 where it means NULL; shifting those
// forward would persist a bogus 19th-century date.
const SentinelYear = 1900

// ShiftSourceTime applies the fixed source-to-target offset. Sentinel
// "zero dates" (year <= 1900) are rejected and mapped to nil.
func ShiftSourceTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	if t.Year() <= SentinelYear {
		return nil
	}
	shifted := t.Add(SourceOffset)
	return &shifted
}

// ShiftNullTime adapts ShiftSourceTime to database/sql scan results.
func ShiftNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return ShiftSourceTime(&t.Time)
}

// CoerceMoney converts a source monetary value into a plain float64.
// The mssql driver may hand back native floats, ints, DECIMAL/MONEY as
// []byte or string (possibly with currency formatting), or nothing at
// all. Anything that fails numeric parsing degrades to nil, never to an
// error: a single malformed amount must not abort a row or the run.
func CoerceMoney(v any) *float64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return &val
	case float32:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	case int:
		f := float64(val)
		return &f
	case []byte:
		return parseMoneyString(string(val))
	case string:
		return parseMoneyString(val)
	case bool:
		return nil
	default:
		// last resort for driver-specific wrappers (e.g. decimal types
		// that only expose a String method)
		return parseMoneyString(fmt.Sprintf("%v", val))
	}
}

func parseMoneyString(s string) *float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return nil
	}
	return &f
}

// CoerceBool normalizes boolean-ish source values to the tri-state 0/1/nil
// encoding the reporting tables use for TINYINT(1) flags. The legacy data
// mixes BIT columns, numeric flags, and literal "si"/"no" strings.
func CoerceBool(v any) *int8 {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return boolBit(val)
	case int64:
		return boolBit(val != 0)
	case int:
		return boolBit(val != 0)
	case float64:
		return boolBit(val != 0)
	case []byte:
		return parseBoolString(string(val))
	case string:
		return parseBoolString(val)
	default:
		return nil
	}
}

func parseBoolString(s string) *int8 {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "si", "sí", "yes":
		return boolBit(true)
	case "0", "false", "no":
		return boolBit(false)
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return boolBit(n != 0)
	}
	return nil
}

func boolBit(b bool) *int8 {
	v := int8(0)
	if b {
		v = 1
	}
	return &v
}

// CleanText trims and repairs legacy lookup descriptions. NULL stays nil
// so the target column keeps its NULL semantics.
func CleanText(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	cleaned := encoding.RepairLegacyText(s.String)
	return &cleaned
}
