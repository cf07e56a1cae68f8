package complete

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscout/propscout-cli/internal/model"
	"github.com/propscout/propscout-cli/internal/sites"
)

const defaultMaxPageChars = 10000

var kindHints = map[model.FieldKind]string{
	model.KindString: "texto",
	model.KindInt:    "número entero",
	model.KindFloat:  "número",
	model.KindBool:   "true o false",
}

// Engine asks a model backend for the fields that pattern extraction could
// not resolve, validates the reply against the schema, and merges it under
// the already-extracted values.
type Engine struct {
	backend      Backend
	maxPageChars int
}

// NewEngine creates an Engine. maxPageChars bounds the listing text placed
// in the prompt; zero means the default.
func NewEngine(backend Backend, maxPageChars int) *Engine {
	if maxPageChars <= 0 {
		maxPageChars = defaultMaxPageChars
	}
	return &Engine{backend: backend, maxPageChars: maxPageChars}
}

// Complete fills the missing fields for one listing. The returned map is
// Merge(partial, modelAnswers): extracted values always win. When nothing
// is missing the backend is never called.
func (e *Engine) Complete(ctx context.Context, site *sites.SiteConfig, page *model.RawPage, partial model.FieldMap, unresolved []string) (model.FieldMap, error) {
	missing := missingFields(site, partial, unresolved)
	if len(missing) == 0 {
		return partial.Clone(), nil
	}

	prompt := e.buildPrompt(page, partial, missing)

	reply, err := e.backend.Generate(ctx, prompt)
	if err != nil {
		return nil, eris.Wrapf(ErrCompletion, "%s backend: %s", e.backend.Name(), err.Error())
	}

	answered, err := parseReply(reply, missing)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("completion resolved fields",
		zap.String("url", page.URL),
		zap.Int("requested", len(missing)),
		zap.Int("answered", len(answered)),
	)
	return model.Merge(partial, answered), nil
}

// missingFields is the site's llm fields plus whatever structured
// extraction failed to resolve, minus anything already present.
func missingFields(site *sites.SiteConfig, partial model.FieldMap, unresolved []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if _, ok := partial[name]; ok {
			return
		}
		out = append(out, name)
	}
	for _, name := range site.LLMFields {
		add(name)
	}
	for _, name := range unresolved {
		add(name)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) buildPrompt(page *model.RawPage, partial model.FieldMap, missing []string) string {
	text := truncateText(page.Text, e.maxPageChars)

	var fields strings.Builder
	for _, name := range missing {
		spec, _ := model.LookupField(name)
		fmt.Fprintf(&fields, "- %s (%s)\n", name, kindHints[spec.Kind])
	}

	known := "{}"
	if len(partial) > 0 {
		if blob, err := json.Marshal(partial); err == nil {
			known = string(blob)
		}
	}

	return fmt.Sprintf(`Sos un extractor de datos de avisos inmobiliarios argentinos.

A continuación está el texto de un aviso. Extraé ÚNICAMENTE los siguientes campos:
%s
Datos ya conocidos (no los repitas ni los contradigas):
%s

Reglas:
- Respondé SOLO con un objeto JSON válido, sin explicaciones ni markdown.
- Si un campo no aparece en el aviso, usá null.
- Los números van sin símbolos de moneda ni separadores de miles.
- Los campos booleanos son true solo si el aviso lo menciona.

Texto del aviso:
%s`, fields.String(), known, text)
}

// truncateText cuts at a rune boundary so a multi-byte character is never
// split into a broken trailing byte.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
