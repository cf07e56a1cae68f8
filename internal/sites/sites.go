package sites

import (
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/propscout/propscout-cli/internal/model"
)

// ErrUnknownSite is returned by Resolve for hosts with no registered config.
var ErrUnknownSite = eris.New("sites: unknown site")

// Pattern kinds.
const (
	KindRegex = "regex"
	KindCSS   = "css"
)

// Search scopes for regex patterns.
const (
	SearchHTML = "html"
	SearchText = "text"
)

// FieldPattern tells the extractor how to pull one field from a page.
// Exactly one of the two kinds applies: regex patterns run an expression
// with one capture group against the page; css patterns select a node with
// goquery and optionally post-process the match.
type FieldPattern struct {
	Kind      string            `yaml:"kind"`
	Expr      string            `yaml:"expr,omitempty"`      // regex kind
	SearchIn  string            `yaml:"search_in,omitempty"` // regex kind: html | text
	Selector  string            `yaml:"selector,omitempty"`  // css kind
	Attribute string            `yaml:"attribute,omitempty"` // css kind: attr instead of text
	Extract   string            `yaml:"extract,omitempty"`   // css kind: capture regex on the match
	Transform map[string]string `yaml:"transform,omitempty"` // exact-match value rewrite

	re        *regexp.Regexp
	extractRe *regexp.Regexp
}

// Regexp returns the compiled expression for regex-kind patterns.
func (p *FieldPattern) Regexp() *regexp.Regexp { return p.re }

// ExtractRegexp returns the compiled post-extraction regexp, or nil.
func (p *FieldPattern) ExtractRegexp() *regexp.Regexp { return p.extractRe }

// SiteConfig describes how to extract listings from one site.
type SiteConfig struct {
	Name             string                   `yaml:"name"`
	Domain           string                   `yaml:"domain"`
	StructuredFields []string                 `yaml:"structured_fields"`
	LLMFields        []string                 `yaml:"llm_fields"`
	Patterns         map[string]*FieldPattern `yaml:"patterns"`
}

// Registry maps hosts to site configs.
type Registry struct {
	byDomain map[string]*SiteConfig
}

type registryFile struct {
	Sites []*SiteConfig `yaml:"sites"`
}

// LoadFile reads and validates a registry from a YAML file.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sites: read %s", path)
	}
	return Load(raw)
}

// Load parses and validates registry YAML.
func Load(raw []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrap(err, "sites: parse yaml")
	}
	if len(f.Sites) == 0 {
		return nil, eris.New("sites: no sites defined")
	}

	r := &Registry{byDomain: make(map[string]*SiteConfig, len(f.Sites))}
	for _, sc := range f.Sites {
		if err := validate(sc); err != nil {
			return nil, err
		}
		domain := normalizeHost(sc.Domain)
		if _, dup := r.byDomain[domain]; dup {
			return nil, eris.Errorf("sites: duplicate domain %s", domain)
		}
		r.byDomain[domain] = sc
	}
	return r, nil
}

func validate(sc *SiteConfig) error {
	if sc.Domain == "" {
		return eris.Errorf("sites: site %q missing domain", sc.Name)
	}

	covered := make(map[string]string, len(model.Fields))
	for _, name := range sc.StructuredFields {
		if _, ok := model.LookupField(name); !ok {
			return eris.Errorf("sites: %s: unknown structured field %s", sc.Domain, name)
		}
		if covered[name] != "" {
			return eris.Errorf("sites: %s: field %s listed twice", sc.Domain, name)
		}
		covered[name] = "structured"
	}
	for _, name := range sc.LLMFields {
		if _, ok := model.LookupField(name); !ok {
			return eris.Errorf("sites: %s: unknown llm field %s", sc.Domain, name)
		}
		if covered[name] != "" {
			return eris.Errorf("sites: %s: field %s is both structured and llm", sc.Domain, name)
		}
		covered[name] = "llm"
	}
	for _, f := range model.Fields {
		if covered[f.Name] == "" {
			return eris.Errorf("sites: %s: field %s not assigned", sc.Domain, f.Name)
		}
	}

	for _, name := range sc.StructuredFields {
		p, ok := sc.Patterns[name]
		if !ok || p == nil {
			return eris.Errorf("sites: %s: structured field %s has no pattern", sc.Domain, name)
		}
		if err := compilePattern(p); err != nil {
			return eris.Wrapf(err, "sites: %s: field %s", sc.Domain, name)
		}
	}
	for name := range sc.Patterns {
		if covered[name] != "structured" {
			return eris.Errorf("sites: %s: pattern for non-structured field %s", sc.Domain, name)
		}
	}
	return nil
}

func compilePattern(p *FieldPattern) error {
	switch p.Kind {
	case KindRegex:
		if p.Expr == "" {
			return eris.New("regex pattern missing expr")
		}
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return eris.Wrap(err, "compile expr")
		}
		if re.NumSubexp() < 1 {
			return eris.New("expr needs a capture group")
		}
		p.re = re
		switch p.SearchIn {
		case "":
			p.SearchIn = SearchHTML
		case SearchHTML, SearchText:
		default:
			return eris.Errorf("bad search_in %q", p.SearchIn)
		}
	case KindCSS:
		if p.Selector == "" {
			return eris.New("css pattern missing selector")
		}
		if p.Extract != "" {
			re, err := regexp.Compile(p.Extract)
			if err != nil {
				return eris.Wrap(err, "compile extract")
			}
			if re.NumSubexp() < 1 {
				return eris.New("extract needs a capture group")
			}
			p.extractRe = re
		}
	default:
		return eris.Errorf("bad pattern kind %q", p.Kind)
	}
	return nil
}

// Resolve finds the site config for a listing URL by host suffix match.
func (r *Registry) Resolve(rawURL string) (*SiteConfig, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil, eris.Wrapf(ErrUnknownSite, "unparseable url %s", rawURL)
	}
	host := normalizeHost(u.Hostname())

	if sc, ok := r.byDomain[host]; ok {
		return sc, nil
	}
	// Subdomain match: listing.zonaprop.com.ar → zonaprop.com.ar.
	for domain, sc := range r.byDomain {
		if strings.HasSuffix(host, "."+domain) {
			return sc, nil
		}
	}
	return nil, eris.Wrapf(ErrUnknownSite, "host %s", host)
}

// Domains lists registered domains.
func (r *Registry) Domains() []string {
	out := make([]string, 0, len(r.byDomain))
	for d := range r.byDomain {
		out = append(out, d)
	}
	return out
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "www.")
	return h
}
