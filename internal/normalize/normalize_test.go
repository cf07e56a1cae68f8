package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propscout/propscout-cli/internal/model"
)

func TestApplyCasing(t *testing.T) {
	out := Apply(model.FieldMap{
		"tipo_operacion": " Venta ",
		"tipo_inmueble":  "DEPARTAMENTO",
		"moneda":         "usd",
	})
	assert.Equal(t, "venta", out["tipo_operacion"])
	assert.Equal(t, "departamento", out["tipo_inmueble"])
	assert.Equal(t, "USD", out["moneda"])
}

func TestApplyDireccion(t *testing.T) {
	tests := map[string]string{
		"3 De Febrero 1208 '09-01, Centro, Rosario": "3 De Febrero 1208",
		"Moreno al 400":       "Moreno 400",
		"Av. Colón 1234, Alberdi": "Av. Colón 1234",
		"Bv. Oroño 950.":      "Bv. Oroño 950",
		"Calle sin numero":    "Calle sin numero",
	}
	for in, want := range tests {
		out := Apply(model.FieldMap{"direccion": in})
		assert.Equal(t, want, out["direccion"], in)
	}
}

func TestApplyPiso(t *testing.T) {
	for _, alias := range []string{"pb", "Planta Baja", "P.B.", "0"} {
		out := Apply(model.FieldMap{"piso": alias})
		assert.Equal(t, "PB", out["piso"], alias)
	}

	for _, noise := range []string{"ninguno", "No especifica", "n/a", "-", "no tiene"} {
		out := Apply(model.FieldMap{"piso": noise})
		_, ok := out["piso"]
		assert.False(t, ok, noise)
	}

	out := Apply(model.FieldMap{"piso": " 4 "})
	assert.Equal(t, "4", out["piso"])
}

func TestApplyDropsNegativeAntiguedad(t *testing.T) {
	out := Apply(model.FieldMap{"antiguedad": int64(-1)})
	_, ok := out["antiguedad"]
	assert.False(t, ok)

	out = Apply(model.FieldMap{"antiguedad": int64(12)})
	assert.Equal(t, int64(12), out["antiguedad"])
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := model.FieldMap{"moneda": "usd"}
	_ = Apply(in)
	assert.Equal(t, "usd", in["moneda"])
}

func TestApplyPassesThroughTypedFields(t *testing.T) {
	in := model.FieldMap{"precio": float64(185000), "tiene_patio": true}
	out := Apply(in)
	assert.Equal(t, float64(185000), out["precio"])
	assert.Equal(t, true, out["tiene_patio"])
}

func TestAntiguedad(t *testing.T) {
	for raw, want := range map[string]int64{
		"A estrenar":   0,
		"ESTRENO":      0,
		"nuevo":        0,
		"30 años":      30,
		"Antigüedad: 8": 8,
		"12":           12,
	} {
		got, ok := Antiguedad(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := Antiguedad("sin datos")
	assert.False(t, ok)
}

func TestFoldAccents(t *testing.T) {
	assert.Equal(t, "si", foldAccents("Sí"))
	assert.Equal(t, "antiguedad", foldAccents("Antigüedad"))
}
