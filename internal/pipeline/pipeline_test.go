package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propscout/propscout-cli/internal/complete"
	"github.com/propscout/propscout-cli/internal/fetch"
	"github.com/propscout/propscout-cli/internal/model"
	"github.com/propscout/propscout-cli/internal/sites"
	"github.com/propscout/propscout-cli/internal/store"
)

func testRegistry(t *testing.T) *sites.Registry {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("sites:\n  - name: Test Portal\n    domain: portal.com\n")
	sb.WriteString("    structured_fields:\n      - precio\n      - metros_cuadrados_totales\n")
	sb.WriteString("    llm_fields:\n")
	for _, f := range model.Fields {
		if f.Name != "precio" && f.Name != "metros_cuadrados_totales" {
			fmt.Fprintf(&sb, "      - %s\n", f.Name)
		}
	}
	sb.WriteString("    patterns:\n")
	sb.WriteString("      precio:\n        kind: regex\n        search_in: text\n        expr: 'USD ([\\d\\.]+)'\n")
	sb.WriteString("      metros_cuadrados_totales:\n        kind: regex\n        search_in: text\n        expr: '([\\d]+) m2'\n")

	r, err := sites.Load([]byte(sb.String()))
	require.NoError(t, err)
	return r
}

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (*model.RawPage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail[url] {
		return nil, eris.Wrap(fetch.ErrFetchFailed, "light client: status 404")
	}
	return &model.RawPage{
		URL:        url,
		Text:       "Departamento USD 100.000, 50 m2, en barrio Centro.",
		FetchedVia: model.ViaLightClient,
	}, nil
}

type stubCompleter struct {
	fields model.FieldMap
	err    error
}

func (s *stubCompleter) Complete(_ context.Context, _ *sites.SiteConfig, _ *model.RawPage, partial model.FieldMap, _ []string) (model.FieldMap, error) {
	if s.err != nil {
		return nil, s.err
	}
	return model.Merge(partial, s.fields), nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestRunFullChain(t *testing.T) {
	st := newTestStore(t)
	completer := &stubCompleter{fields: model.FieldMap{"barrio": "Centro", "moneda": "usd"}}
	p := New(testRegistry(t), &stubFetcher{}, completer, st, Config{Workers: 2, Normalize: true})

	urls := []string{"https://portal.com/p/1", "https://portal.com/p/2"}
	sum := p.Run(context.Background(), urls)

	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.Created)
	assert.Zero(t, sum.Failed)
	assert.ElementsMatch(t, urls, sum.Succeeded)

	rec, err := st.GetByURL(context.Background(), "https://portal.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, float64(100000), rec.Fields["precio"])
	assert.Equal(t, float64(50), rec.Fields["metros_cuadrados_totales"])
	assert.Equal(t, "Centro", rec.Fields["barrio"])
	// Normalization ran before the write.
	assert.Equal(t, "USD", rec.Fields["moneda"])
	require.NotNil(t, rec.CostM2)
	assert.Equal(t, float64(2000), *rec.CostM2)
}

func TestRunPartialFailure(t *testing.T) {
	st := newTestStore(t)
	fetcher := &stubFetcher{fail: map[string]bool{"https://portal.com/p/2": true}}
	p := New(testRegistry(t), fetcher, &stubCompleter{}, st, Config{Workers: 1})

	sum := p.Run(context.Background(), []string{
		"https://portal.com/p/1",
		"https://portal.com/p/2",
		"https://unknown.com/p/3",
	})

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, []string{"https://portal.com/p/1"}, sum.Succeeded)

	kinds := map[string]FailKind{}
	for _, f := range sum.Failures {
		kinds[f.URL] = f.Kind
	}
	assert.Equal(t, FailFetch, kinds["https://portal.com/p/2"])
	assert.Equal(t, FailUnknownSite, kinds["https://unknown.com/p/3"])

	// The good URL committed despite its neighbors.
	_, err := st.GetByURL(context.Background(), "https://portal.com/p/1")
	require.NoError(t, err)
}

func TestRunCompletionFailure(t *testing.T) {
	st := newTestStore(t)
	completer := &stubCompleter{err: eris.Wrap(complete.ErrCompletion, "backend down")}
	p := New(testRegistry(t), &stubFetcher{}, completer, st, Config{Workers: 1})

	sum := p.Run(context.Background(), []string{"https://portal.com/p/1"})
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, FailCompletion, sum.Failures[0].Kind)

	// Nothing half-written.
	_, err := st.GetByURL(context.Background(), "https://portal.com/p/1")
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestRunSkipExisting(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	_, _, err := st.Upsert(ctx, "https://portal.com/p/1", model.FieldMap{"precio": float64(1)}, store.UpsertOptions{})
	require.NoError(t, err)

	fetcher := &stubFetcher{}
	p := New(testRegistry(t), fetcher, &stubCompleter{}, st, Config{Workers: 1, SkipExisting: true})

	sum := p.Run(ctx, []string{"https://portal.com/p/1", "https://portal.com/p/2"})
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Created)

	// The stored listing consumed no fetch.
	assert.Equal(t, 1, fetcher.calls)

	rec, err := st.GetByURL(ctx, "https://portal.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), rec.Fields["precio"])
}

func TestRunRescrapeUpdates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	p := New(testRegistry(t), &stubFetcher{}, &stubCompleter{}, st, Config{Workers: 1})

	sum := p.Run(ctx, []string{"https://portal.com/p/1"})
	assert.Equal(t, 1, sum.Created)

	sum = p.Run(ctx, []string{"https://portal.com/p/1"})
	assert.Equal(t, 1, sum.Updated)
	assert.Zero(t, sum.Created)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FailUnknownSite, Classify(eris.Wrap(sites.ErrUnknownSite, "x")))
	assert.Equal(t, FailFetch, Classify(eris.Wrap(fetch.ErrFetchFailed, "x")))
	assert.Equal(t, FailCompletion, Classify(eris.Wrap(complete.ErrCompletion, "x")))
	assert.Equal(t, FailStore, Classify(eris.New("anything else")))
}
