package model

import (
	"strconv"
	"strings"
)

// FieldKind describes the storage type of a schema field.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
	KindBool   FieldKind = "bool"
)

// FieldSpec describes one field of the property schema.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// Fields is the full property schema, in canonical column order. Site
// configs, prompts, database columns and export headers all derive from
// this table.
var Fields = []FieldSpec{
	{Name: "tipo_operacion", Kind: KindString},
	{Name: "tipo_inmueble", Kind: KindString},
	{Name: "direccion", Kind: KindString},
	{Name: "barrio", Kind: KindString},
	{Name: "metros_cuadrados_cubiertos", Kind: KindFloat},
	{Name: "metros_cuadrados_totales", Kind: KindFloat},
	{Name: "precio", Kind: KindFloat},
	{Name: "moneda", Kind: KindString},
	{Name: "cantidad_dormitorios", Kind: KindInt},
	{Name: "cantidad_banos", Kind: KindInt},
	{Name: "cantidad_ambientes", Kind: KindInt},
	{Name: "tiene_patio", Kind: KindBool},
	{Name: "tiene_quincho", Kind: KindBool},
	{Name: "tiene_pileta", Kind: KindBool},
	{Name: "tiene_cochera", Kind: KindBool},
	{Name: "tiene_balcon", Kind: KindBool},
	{Name: "tiene_terraza", Kind: KindBool},
	{Name: "piso", Kind: KindString},
	{Name: "orientacion", Kind: KindString},
	{Name: "antiguedad", Kind: KindInt},
	{Name: "descripcion_breve", Kind: KindString},
}

var fieldIndex = func() map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(Fields))
	for _, f := range Fields {
		m[f.Name] = f
	}
	return m
}()

// FieldNames returns the schema field names in canonical order.
func FieldNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// LookupField returns the spec for a schema field name.
func LookupField(name string) (FieldSpec, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// Coerce converts a raw extracted string into the field's typed value.
// Returns ok=false when the value cannot be interpreted; callers leave the
// field unresolved in that case rather than storing a zero value.
func Coerce(name, raw string) (any, bool) {
	spec, ok := fieldIndex[name]
	if !ok {
		return nil, false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	switch spec.Kind {
	case KindString:
		return raw, true
	case KindInt:
		if n, err := strconv.ParseInt(cleanNumber(raw), 10, 64); err == nil {
			return n, true
		}
		// "3.0" style answers still count.
		if f, err := strconv.ParseFloat(cleanNumber(raw), 64); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return nil, false
	case KindFloat:
		if f, err := strconv.ParseFloat(cleanNumber(raw), 64); err == nil {
			return f, true
		}
		return nil, false
	case KindBool:
		return coerceBool(raw)
	}
	return nil, false
}

// CoerceAny converts an arbitrary decoded JSON value into the field's typed
// value. Used when validating model replies, where numbers arrive as float64
// and booleans as bool but sloppy models answer with strings too.
func CoerceAny(name string, v any) (any, bool) {
	spec, ok := fieldIndex[name]
	if !ok {
		return nil, false
	}
	if v == nil {
		return nil, false
	}

	switch val := v.(type) {
	case string:
		return Coerce(name, val)
	case bool:
		if spec.Kind == KindBool {
			return val, true
		}
		return nil, false
	case float64:
		switch spec.Kind {
		case KindFloat:
			return val, true
		case KindInt:
			if val == float64(int64(val)) {
				return int64(val), true
			}
			return nil, false
		case KindBool:
			return val != 0, true
		}
		return nil, false
	case int:
		return CoerceAny(name, float64(val))
	case int64:
		return CoerceAny(name, float64(val))
	}
	return nil, false
}

// cleanNumber strips currency symbols, unit suffixes and digit-group
// separators so LatAm-formatted amounts parse ("USD 180.000" → "180000",
// "120,50" → "120.50", "85 m2" → "85").
func cleanNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// Both present: the rightmost separator is the decimal mark.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	case hasDot:
		// Dots grouping exactly three digits are thousands separators in
		// the source locale ("180.000", "1.250.000").
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		} else if i := strings.LastIndex(s, "."); len(s)-i-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

var boolTrueTokens = map[string]bool{
	"si": true, "sí": true, "yes": true, "true": true, "1": true,
}

var boolFalseTokens = map[string]bool{
	"no": true, "false": true, "0": true,
}

func coerceBool(raw string) (any, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if boolTrueTokens[token] {
		return true, true
	}
	if boolFalseTokens[token] {
		return false, true
	}
	// Any other non-empty match ("patio amplio") counts as presence.
	return true, true
}
