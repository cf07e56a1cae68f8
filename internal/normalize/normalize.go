// Package normalize canonicalizes merged field values before they reach
// the store: casing rules, address reduction and floor aliases. Values it
// cannot improve pass through untouched; values that turn out to be noise
// ("piso: no especifica") are removed rather than stored.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/propscout/propscout-cli/internal/model"
)

var (
	alRe     = regexp.MustCompile(`(?i)\s+al\s+`)
	streetRe = regexp.MustCompile(`^([^,]+?\d+)`)
	trailRe  = regexp.MustCompile(`['",.]+$`)
	yearsRe  = regexp.MustCompile(`\d+`)
)

// pisoNull are answers that mean "no floor information".
var pisoNull = map[string]bool{
	"ninguno": true, "ningun": true, "no especifica": true, "n/a": true,
	"null": true, "-": true, "piso": true, "no": true, "no tiene": true,
}

// pisoPB are ground-floor aliases collapsed to the canonical "PB".
var pisoPB = map[string]bool{
	"pb": true, "planta baja": true, "p.b.": true, "0": true,
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAccents lowercases and strips combining marks so "Sí", "si" and
// "SI" compare equal.
func foldAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Apply returns a normalized copy of the map. The input is not mutated.
func Apply(fm model.FieldMap) model.FieldMap {
	out := fm.Clone()

	lowerField(out, "tipo_operacion")
	lowerField(out, "tipo_inmueble")

	if v, ok := out["moneda"].(string); ok {
		out["moneda"] = strings.ToUpper(strings.TrimSpace(v))
	}

	if v, ok := out["direccion"].(string); ok {
		out["direccion"] = cleanAddress(v)
	}

	normalizePiso(out)

	if v, ok := out["antiguedad"].(int64); ok && v < 0 {
		zap.L().Debug("dropping negative antiguedad", zap.Int64("value", v))
		delete(out, "antiguedad")
	}

	return out
}

func lowerField(fm model.FieldMap, name string) {
	if v, ok := fm[name].(string); ok {
		fm[name] = strings.ToLower(strings.TrimSpace(v))
	}
}

// cleanAddress reduces an address to "street number": floor and unit
// suffixes, neighborhood and city tails are dropped, and the "Moreno al
// 400" form becomes "Moreno 400".
func cleanAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = alRe.ReplaceAllString(addr, " ")

	if m := streetRe.FindStringSubmatch(addr); m != nil {
		clean := strings.TrimSpace(m[1])
		return strings.TrimSpace(trailRe.ReplaceAllString(clean, ""))
	}
	return addr
}

func normalizePiso(fm model.FieldMap) {
	v, ok := fm["piso"].(string)
	if !ok {
		return
	}
	folded := foldAccents(v)
	switch {
	case pisoNull[folded]:
		delete(fm, "piso")
	case pisoPB[folded]:
		fm["piso"] = "PB"
	default:
		fm["piso"] = strings.TrimSpace(v)
	}
}

// Antiguedad interprets a free-text age answer as whole years. "A
// estrenar" style phrasings mean zero; otherwise the first number wins.
func Antiguedad(raw string) (int64, bool) {
	folded := foldAccents(raw)
	for _, token := range []string{"a estrenar", "nuevo", "estreno"} {
		if strings.Contains(folded, token) {
			return 0, true
		}
	}
	if m := yearsRe.FindString(folded); m != "" {
		var n int64
		for _, r := range m {
			n = n*10 + int64(r-'0')
		}
		return n, true
	}
	return 0, false
}
