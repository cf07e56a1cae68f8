// Package extract resolves schema fields from fetched pages using the
// per-site patterns. It is pure: no network, no clock, no logging beyond
// returning what could not be resolved.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/propscout/propscout-cli/internal/model"
	"github.com/propscout/propscout-cli/internal/normalize"
	"github.com/propscout/propscout-cli/internal/sites"
)

// Result carries the resolved fields and the structured fields that failed
// to resolve. Unresolved fields are reported, never zero-filled.
type Result struct {
	Fields     model.FieldMap
	Unresolved []string
}

// Extract applies the site's patterns to a page. Pattern misses and
// coercion failures mark the field unresolved; nothing here is an error.
func Extract(site *sites.SiteConfig, page *model.RawPage) Result {
	res := Result{Fields: make(model.FieldMap, len(site.StructuredFields))}

	// CSS patterns share one parsed document.
	var doc *goquery.Document
	for _, name := range site.StructuredFields {
		if site.Patterns[name].Kind == sites.KindCSS {
			doc, _ = goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
			break
		}
	}

	for _, name := range site.StructuredFields {
		p := site.Patterns[name]

		raw, ok := applyPattern(p, page, doc)
		if ok {
			raw = applyTransform(p, raw)
		}
		if !ok {
			res.Unresolved = append(res.Unresolved, name)
			continue
		}

		val, ok := model.Coerce(name, raw)
		if !ok && name == "antiguedad" {
			// Sites phrase age as text ("A estrenar", "30 años").
			if years, aok := normalize.Antiguedad(raw); aok {
				val, ok = years, true
			}
		}
		if !ok {
			res.Unresolved = append(res.Unresolved, name)
			continue
		}
		res.Fields[name] = val
	}
	return res
}

func applyPattern(p *sites.FieldPattern, page *model.RawPage, doc *goquery.Document) (string, bool) {
	switch p.Kind {
	case sites.KindRegex:
		haystack := page.HTML
		if p.SearchIn == sites.SearchText {
			haystack = page.Text
		}
		m := p.Regexp().FindStringSubmatch(haystack)
		if len(m) < 2 {
			return "", false
		}
		return strings.TrimSpace(m[1]), true

	case sites.KindCSS:
		if doc == nil {
			return "", false
		}
		sel := doc.Find(p.Selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		var raw string
		if p.Attribute != "" {
			v, ok := sel.Attr(p.Attribute)
			if !ok {
				return "", false
			}
			raw = v
		} else {
			raw = sel.Text()
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return "", false
		}
		if re := p.ExtractRegexp(); re != nil {
			m := re.FindStringSubmatch(raw)
			if len(m) < 2 {
				return "", false
			}
			raw = strings.TrimSpace(m[1])
		}
		return raw, true
	}
	return "", false
}

func applyTransform(p *sites.FieldPattern, raw string) string {
	if len(p.Transform) == 0 {
		return raw
	}
	if mapped, ok := p.Transform[raw]; ok {
		return mapped
	}
	if mapped, ok := p.Transform[strings.ToLower(raw)]; ok {
		return mapped
	}
	return raw
}
