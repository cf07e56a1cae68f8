// Package store persists property records keyed by listing URL.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/propscout/propscout-cli/internal/model"
)

// ErrNotFound is returned when a URL has no stored record.
var ErrNotFound = eris.New("store: record not found")

// Outcome reports what an Upsert did.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// UpsertOptions tunes Upsert behavior.
type UpsertOptions struct {
	// SkipExisting returns the stored record untouched when the URL is
	// already present.
	SkipExisting bool
}

// Filter narrows List results. Limit 0 uses the store default, negative
// means no limit.
type Filter struct {
	Status *model.Status
	Limit  int
}

// Store is the persistence boundary. Upsert is idempotent on URL: a second
// scrape of the same listing updates field data but never changes the
// record's id, status or created_at.
type Store interface {
	Migrate(ctx context.Context) error
	Upsert(ctx context.Context, url string, fm model.FieldMap, opts UpsertOptions) (Outcome, *model.PropertyRecord, error)
	GetByURL(ctx context.Context, url string) (*model.PropertyRecord, error)
	List(ctx context.Context, filter Filter) ([]model.PropertyRecord, error)
	UpdateStatus(ctx context.Context, url string, status model.Status) (bool, error)
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
	Close() error
}

// fieldColumns are the schema columns, in canonical order. Field names
// double as column names.
var fieldColumns = model.FieldNames()

// fieldArgs renders a field map as one positional arg per schema column,
// nil for unresolved fields.
func fieldArgs(fm model.FieldMap) []any {
	args := make([]any, len(fieldColumns))
	for i, name := range fieldColumns {
		if v, ok := fm[name]; ok {
			args[i] = v
		}
	}
	return args
}

// fieldScanDest returns per-column scan targets and a closure that builds
// the FieldMap after scanning. NULL columns stay absent from the map.
func fieldScanDest() ([]any, func() model.FieldMap) {
	dest := make([]any, len(model.Fields))
	for i, f := range model.Fields {
		switch f.Kind {
		case model.KindString:
			dest[i] = new(*string)
		case model.KindInt:
			dest[i] = new(*int64)
		case model.KindFloat:
			dest[i] = new(*float64)
		case model.KindBool:
			dest[i] = new(*bool)
		}
	}

	build := func() model.FieldMap {
		fm := make(model.FieldMap)
		for i, f := range model.Fields {
			switch p := dest[i].(type) {
			case **string:
				if *p != nil {
					fm[f.Name] = **p
				}
			case **int64:
				if *p != nil {
					fm[f.Name] = **p
				}
			case **float64:
				if *p != nil {
					fm[f.Name] = **p
				}
			case **bool:
				if *p != nil {
					fm[f.Name] = **p
				}
			}
		}
		return fm
	}
	return dest, build
}

// selectColumns is the column list shared by every record query.
func selectColumns() string {
	cols := append([]string{"id", "url"}, fieldColumns...)
	cols = append(cols, "costo_metro_cuadrado", "costo_m2_ponderado", "status", "created_at", "scraped_at")
	return strings.Join(cols, ", ")
}
