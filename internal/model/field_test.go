package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsCoverSchema(t *testing.T) {
	assert.Len(t, Fields, 21)

	seen := map[string]bool{}
	for _, f := range Fields {
		assert.False(t, seen[f.Name], "duplicate field %s", f.Name)
		seen[f.Name] = true
	}

	spec, ok := LookupField("precio")
	require.True(t, ok)
	assert.Equal(t, KindFloat, spec.Kind)

	_, ok = LookupField("superficie")
	assert.False(t, ok)
}

func TestCoerceNumbers(t *testing.T) {
	tests := []struct {
		field string
		raw   string
		want  any
		ok    bool
	}{
		{"precio", "180000", float64(180000), true},
		{"precio", "180.000", float64(180000), true},
		{"precio", "USD 1.250.000", float64(1250000), true},
		{"precio", "120,50", 120.5, true},
		{"precio", "1,234,567", float64(1234567), true},
		{"metros_cuadrados_totales", "85 m2", float64(85), true},
		{"metros_cuadrados_totales", "85.5", 85.5, true},
		{"cantidad_dormitorios", "3", int64(3), true},
		{"cantidad_dormitorios", "3.0", int64(3), true},
		{"cantidad_dormitorios", "tres", nil, false},
		{"precio", "consultar", nil, false},
		{"precio", "", nil, false},
	}

	for _, tt := range tests {
		got, ok := Coerce(tt.field, tt.raw)
		assert.Equal(t, tt.ok, ok, "%s %q", tt.field, tt.raw)
		if tt.ok {
			assert.Equal(t, tt.want, got, "%s %q", tt.field, tt.raw)
		}
	}
}

func TestCoerceBool(t *testing.T) {
	for raw, want := range map[string]bool{
		"si":           true,
		"Sí":           true,
		"1":            true,
		"patio amplio": true,
		"no":           false,
		"0":            false,
		"false":        false,
	} {
		got, ok := Coerce("tiene_patio", raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := Coerce("tiene_patio", "  ")
	assert.False(t, ok)
}

func TestCoerceString(t *testing.T) {
	got, ok := Coerce("direccion", "  Av. Colón 1234  ")
	require.True(t, ok)
	assert.Equal(t, "Av. Colón 1234", got)
}

func TestCoerceAny(t *testing.T) {
	got, ok := CoerceAny("precio", float64(100000))
	require.True(t, ok)
	assert.Equal(t, float64(100000), got)

	got, ok = CoerceAny("cantidad_banos", float64(2))
	require.True(t, ok)
	assert.Equal(t, int64(2), got)

	_, ok = CoerceAny("cantidad_banos", 2.5)
	assert.False(t, ok)

	got, ok = CoerceAny("tiene_pileta", true)
	require.True(t, ok)
	assert.Equal(t, true, got)

	// String digits for numeric fields are accepted.
	got, ok = CoerceAny("precio", "180.000")
	require.True(t, ok)
	assert.Equal(t, float64(180000), got)

	// Type mismatch is dropped, not zero-filled.
	_, ok = CoerceAny("direccion", float64(4))
	assert.False(t, ok)

	_, ok = CoerceAny("precio", nil)
	assert.False(t, ok)
}
