package model

import (
	"strings"
	"time"
)

// FieldMap holds resolved schema fields. Values are typed (string, int64,
// float64, bool); a missing key means the field is unresolved. A nil value
// is never stored.
type FieldMap map[string]any

// Merge combines two field maps, preferring left on conflict. Neither input
// is mutated.
func Merge(left, right FieldMap) FieldMap {
	out := make(FieldMap, len(left)+len(right))
	for k, v := range right {
		out[k] = v
	}
	for k, v := range left {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of the map.
func (fm FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(fm))
	for k, v := range fm {
		out[k] = v
	}
	return out
}

// GetString returns the string value for a field, or "" when unresolved.
func (fm FieldMap) GetString(name string) string {
	if s, ok := fm[name].(string); ok {
		return s
	}
	return ""
}

// GetFloat returns the numeric value for a field, accepting int64 too.
func (fm FieldMap) GetFloat(name string) (float64, bool) {
	switch v := fm[name].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Status is the human review verdict carried in the ledger.
type Status string

const (
	StatusUnset Status = ""
	StatusYes   Status = "yes"
	StatusNo    Status = "no"
	StatusMaybe Status = "maybe"
)

// ParseStatus maps a ledger tag body to a Status, case-insensitively.
// Unknown tags are reported so callers can skip the line.
func ParseStatus(tag string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "":
		return StatusUnset, true
	case "yes", "si", "sí":
		return StatusYes, true
	case "no":
		return StatusNo, true
	case "maybe", "?":
		return StatusMaybe, true
	}
	return StatusUnset, false
}

// Tag renders the status as its ledger tag body, uppercase by convention.
func (s Status) Tag() string {
	if s == StatusUnset {
		return " "
	}
	return strings.ToUpper(string(s))
}

// PropertyRecord is one stored listing.
type PropertyRecord struct {
	ID        string
	URL       string
	Fields    FieldMap
	CostM2    *float64 // precio / total m²
	CostM2W   *float64 // precio / weighted m² (uncovered at 25%)
	Status    Status
	CreatedAt time.Time
	ScrapedAt time.Time
}

// FetchedVia records which transport produced a page.
type FetchedVia string

const (
	ViaLightClient     FetchedVia = "light_client"
	ViaHeadlessBrowser FetchedVia = "headless_browser"
)

// RawPage is the fetch result handed to extraction.
type RawPage struct {
	URL        string
	HTML       string // cleaned markup, chrome subtrees removed
	Text       string // visible text, whitespace collapsed
	FetchedVia FetchedVia
	FetchedAt  time.Time
}

// DeriveCostM2 computes price per total square meter. Nil when either input
// is unresolved or the area is zero.
func DeriveCostM2(fm FieldMap) *float64 {
	precio, ok := fm.GetFloat("precio")
	if !ok {
		return nil
	}
	total, ok := fm.GetFloat("metros_cuadrados_totales")
	if !ok || total <= 0 {
		return nil
	}
	v := precio / total
	return &v
}

// DeriveCostM2Weighted computes price per weighted square meter: covered
// area counts in full, uncovered area at 25%. Covered is clamped to total.
func DeriveCostM2Weighted(fm FieldMap) *float64 {
	precio, ok := fm.GetFloat("precio")
	if !ok {
		return nil
	}
	total, ok := fm.GetFloat("metros_cuadrados_totales")
	if !ok || total <= 0 {
		return nil
	}
	covered, ok := fm.GetFloat("metros_cuadrados_cubiertos")
	if !ok || covered < 0 {
		covered = total
	}
	if covered > total {
		covered = total
	}
	weighted := (total-covered)*0.25 + covered
	if weighted <= 0 {
		return nil
	}
	v := precio / weighted
	return &v
}
