package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/propscout/propscout-cli/internal/model"
)

// ErrFetchFailed is returned when both the light client and the browser
// fail to produce a usable page.
var ErrFetchFailed = eris.New("fetch: fetch failed")

const maxBodyBytes = 512 * 1024

// Browser renders a page with a real browser engine. Implemented by the
// playwright engine; nil disables escalation.
type Browser interface {
	Render(ctx context.Context, pageURL string) (string, error)
	Close() error
}

// Config tunes the fetcher.
type Config struct {
	Timeout          time.Duration
	UserAgent        string
	MinContentLength int     // rendered text shorter than this triggers escalation
	RequestsPerSec   float64 // per host
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = 1000
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = 1
	}
}

// Fetcher retrieves listing pages, trying the light HTTP client first and
// escalating to a headless browser when the cheap path comes back blocked,
// errored or suspiciously thin.
type Fetcher struct {
	client  *http.Client
	browser Browser
	cfg     Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher. browser may be nil, in which case light-client
// failures are final.
func New(cfg Config, browser Browser) *Fetcher {
	cfg.applyDefaults()
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		browser:  browser,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Fetch retrieves one listing page. The returned page carries cleaned HTML,
// visible text and which transport produced it.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*model.RawPage, error) {
	host, err := hostOf(pageURL)
	if err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "bad url %s", pageURL)
	}
	if err := f.limiter(host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate wait")
	}

	page, lightErr := f.fetchLight(ctx, pageURL)
	if lightErr == nil {
		return page, nil
	}

	if f.browser == nil {
		return nil, eris.Wrapf(ErrFetchFailed, "light client: %s", lightErr.Error())
	}

	zap.L().Debug("escalating to browser",
		zap.String("url", pageURL),
		zap.String("reason", lightErr.Error()),
	)

	page, browserErr := f.fetchBrowser(ctx, pageURL)
	if browserErr != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "light client: %s; browser: %s",
			lightErr.Error(), browserErr.Error())
	}
	return page, nil
}

func (f *Fetcher) fetchLight(ctx context.Context, pageURL string) (*model.RawPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	if blocked, blockType := detectBlock(resp, body); blocked {
		return nil, eris.Errorf("blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("status %d", resp.StatusCode)
	}

	return f.finishPage(pageURL, string(body), model.ViaLightClient)
}

func (f *Fetcher) fetchBrowser(ctx context.Context, pageURL string) (*model.RawPage, error) {
	raw, err := f.browser.Render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return f.finishPage(pageURL, raw, model.ViaHeadlessBrowser)
}

// finishPage cleans the markup and enforces the minimum-content threshold.
// A near-empty render means the page never loaded its data, whichever
// transport produced it.
func (f *Fetcher) finishPage(pageURL, raw string, via model.FetchedVia) (*model.RawPage, error) {
	html, text, err := cleanPage(raw)
	if err != nil {
		return nil, err
	}
	if len(text) < f.cfg.MinContentLength {
		return nil, eris.Errorf("thin content (%d chars)", len(text))
	}
	return &model.RawPage{
		URL:        pageURL,
		HTML:       html,
		Text:       text,
		FetchedVia: via,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.cfg.RequestsPerSec), 1)
		f.limiters[host] = l
	}
	return l
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", eris.New("fetch: url without host")
	}
	return strings.ToLower(u.Host), nil
}
