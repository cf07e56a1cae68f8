// Package pipeline runs the scrape chain for batches of listing URLs:
// resolve site, fetch, pattern-extract, model-complete, normalize, store.
package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/propscout/propscout-cli/internal/complete"
	"github.com/propscout/propscout-cli/internal/extract"
	"github.com/propscout/propscout-cli/internal/fetch"
	"github.com/propscout/propscout-cli/internal/model"
	"github.com/propscout/propscout-cli/internal/normalize"
	"github.com/propscout/propscout-cli/internal/sites"
	"github.com/propscout/propscout-cli/internal/store"
)

// Fetcher retrieves one listing page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.RawPage, error)
}

// Completer fills unresolved fields from the page text.
type Completer interface {
	Complete(ctx context.Context, site *sites.SiteConfig, page *model.RawPage, partial model.FieldMap, unresolved []string) (model.FieldMap, error)
}

// FailKind classifies a per-URL failure.
type FailKind string

const (
	FailUnknownSite FailKind = "unknown_site"
	FailFetch       FailKind = "fetch"
	FailCompletion  FailKind = "completion"
	FailStore       FailKind = "store"
)

// Failure is one URL that could not be processed.
type Failure struct {
	URL    string
	Kind   FailKind
	Reason string
}

// Summary aggregates a batch run.
type Summary struct {
	Total     int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
	Succeeded []string // URLs now present in the store, in input order
	Failures  []Failure
}

// Config tunes a pipeline run.
type Config struct {
	Workers      int
	SkipExisting bool
	Normalize    bool
}

// Pipeline wires the stages together. The store is the only shared
// mutable boundary; everything else is per-URL.
type Pipeline struct {
	registry *sites.Registry
	fetcher  Fetcher
	engine   Completer
	store    store.Store
	cfg      Config
}

// New creates a Pipeline.
func New(registry *sites.Registry, fetcher Fetcher, engine Completer, st store.Store, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Pipeline{
		registry: registry,
		fetcher:  fetcher,
		engine:   engine,
		store:    st,
		cfg:      cfg,
	}
}

type urlResult struct {
	outcome store.Outcome
	failure *Failure
}

// Run processes the batch. One URL failing never aborts the rest; context
// cancellation stops new work. The error return is reserved for the
// context, per-URL problems land in the Summary.
func (p *Pipeline) Run(ctx context.Context, urls []string) Summary {
	results := make([]urlResult, len(urls))

	g := &errgroup.Group{}
	g.SetLimit(p.cfg.Workers)

	var mu sync.Mutex
	for i, url := range urls {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := p.processURL(ctx, url)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Total: len(urls)}
	for i, res := range results {
		switch {
		case res.failure != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, *res.failure)
		case res.outcome == store.OutcomeCreated:
			summary.Created++
			summary.Succeeded = append(summary.Succeeded, urls[i])
		case res.outcome == store.OutcomeUpdated:
			summary.Updated++
			summary.Succeeded = append(summary.Succeeded, urls[i])
		case res.outcome == store.OutcomeSkipped:
			summary.Skipped++
			summary.Succeeded = append(summary.Succeeded, urls[i])
		default:
			// Cancelled before the worker ran.
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{
				URL: urls[i], Kind: FailFetch, Reason: "cancelled",
			})
		}
	}
	return summary
}

func (p *Pipeline) processURL(ctx context.Context, url string) urlResult {
	log := zap.L().With(zap.String("url", url))

	site, err := p.registry.Resolve(url)
	if err != nil {
		log.Warn("unknown site", zap.Error(err))
		return failed(url, FailUnknownSite, err)
	}

	// A listing we already hold needs no network traffic in skip mode.
	if p.cfg.SkipExisting {
		if _, err := p.store.GetByURL(ctx, url); err == nil {
			log.Debug("already stored, skipping")
			return urlResult{outcome: store.OutcomeSkipped}
		} else if !eris.Is(err, store.ErrNotFound) {
			return failed(url, FailStore, err)
		}
	}

	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		return failed(url, FailFetch, err)
	}

	res := extract.Extract(site, page)
	log.Debug("pattern extraction done",
		zap.Int("resolved", len(res.Fields)),
		zap.Strings("unresolved", res.Unresolved),
	)

	fields, err := p.engine.Complete(ctx, site, page, res.Fields, res.Unresolved)
	if err != nil {
		log.Warn("completion failed", zap.Error(err))
		return failed(url, FailCompletion, err)
	}

	if p.cfg.Normalize {
		fields = normalize.Apply(fields)
	}

	outcome, _, err := p.store.Upsert(ctx, url, fields, store.UpsertOptions{})
	if err != nil {
		log.Error("upsert failed", zap.Error(err))
		return failed(url, FailStore, err)
	}

	log.Info("listing stored",
		zap.String("outcome", string(outcome)),
		zap.String("via", string(page.FetchedVia)),
	)
	return urlResult{outcome: outcome}
}

func failed(url string, kind FailKind, err error) urlResult {
	return urlResult{failure: &Failure{URL: url, Kind: kind, Reason: eris.Cause(err).Error()}}
}

// Classify maps a chain error to its failure kind. Used by callers that
// run single stages outside Run.
func Classify(err error) FailKind {
	switch {
	case eris.Is(err, sites.ErrUnknownSite):
		return FailUnknownSite
	case eris.Is(err, fetch.ErrFetchFailed):
		return FailFetch
	case eris.Is(err, complete.ErrCompletion):
		return FailCompletion
	}
	return FailStore
}
