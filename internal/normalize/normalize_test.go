package normalize

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftSourceTime(t *testing.T) {
	t.Run("applies the fixed offset", func(t *testing.T) {
		in := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		out := ShiftSourceTime(&in)

		require.NotNil(t, out)
		assert.Equal(t, time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC), *out)
	})

	t.Run("crosses the day boundary", func(t *testing.T) {
		in := time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)
		out := ShiftSourceTime(&in)

		require.NotNil(t, out)
		assert.Equal(t, time.Date(2024, 3, 2, 4, 30, 0, 0, time.UTC), *out)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ShiftSourceTime(nil))
	})

	t.Run("zero time stays nil", func(t *testing.T) {
		var zero time.Time
		assert.Nil(t, ShiftSourceTime(&zero))
	})

	t.Run("legacy sentinel dates are rejected", func(t *testing.T) {
		for _, in := range []time.Time{
			time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC),
			time.Date(1899, 12, 31, 23, 59, 59, 0, time.UTC),
			time.Date(1900, 6, 15, 12, 0, 0, 0, time.UTC),
		} {
			assert.Nil(t, ShiftSourceTime(&in), "input %v", in)
		}
	})

	t.Run("1901 passes through", func(t *testing.T) {
		in := time.Date(1901, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.NotNil(t, ShiftSourceTime(&in))
	})
}

func TestShiftNullTime(t *testing.T) {
	assert.Nil(t, ShiftNullTime(sql.NullTime{}))

	in := sql.NullTime{Time: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), Valid: true}
	out := ShiftNullTime(in)
	require.NotNil(t, out)
	assert.Equal(t, time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC), *out)
}

func TestCoerceMoney(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"nil", nil, nil},
		{"float64", float64(123.45), f(123.45)},
		{"float32", float32(2.5), f(2.5)},
		{"int64", int64(700), f(700)},
		{"int", int(7), f(7)},
		{"plain string", "123.45", f(123.45)},
		{"bytes", []byte("123.45"), f(123.45)},
		{"currency formatting", "$1,234.50", f(1234.50)},
		{"negative with symbol", "-$45.10", f(-45.10)},
		{"garbage string", "N/A", nil},
		{"empty string", "", nil},
		{"bool is not money", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceMoney(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestCoerceBool(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *int8
	}{
		{"nil", nil, nil},
		{"true", true, b(1)},
		{"false", false, b(0)},
		{"int64 one", int64(1), b(1)},
		{"int64 zero", int64(0), b(0)},
		{"float nonzero", float64(2), b(1)},
		{"string si", "si", b(1)},
		{"string accented si", "Sí", b(1)},
		{"string no", "no", b(0)},
		{"string true", "TRUE", b(1)},
		{"bytes one", []byte("1"), b(1)},
		{"numeric string", "3", b(1)},
		{"garbage string", "maybe", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceBool(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Nil(t, CleanText(sql.NullString{}))

	got := CleanText(sql.NullString{String: "  ADUANA MEXICO  ", Valid: true})
	require.NotNil(t, got)
	assert.Equal(t, "ADUANA MEXICO", *got)

	// raw Windows-1252 bytes from a Latin1-collated column
	got = CleanText(sql.NullString{String: "Jos\xe9 P\xe9rez", Valid: true})
	require.NotNil(t, got)
	assert.Equal(t, "José Pérez", *got)
}

func f(v float64) *float64 { return &v }
func b(v int8) *int8       { return &v }
