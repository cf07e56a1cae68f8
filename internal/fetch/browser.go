package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BrowserConfig tunes the headless engine.
type BrowserConfig struct {
	Headless    bool
	UserAgent   string
	Locale      string
	NavTimeout  time.Duration
	SettleDelay time.Duration // wait after domcontentloaded for JS hydration
}

func (c *BrowserConfig) applyDefaults() {
	if c.Locale == "" {
		c.Locale = "es-AR"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 3 * time.Second
	}
}

// PlaywrightBrowser renders pages through headless Chromium. The engine is
// launched lazily on first use and reused across renders.
type PlaywrightBrowser struct {
	cfg BrowserConfig

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
}

// NewPlaywrightBrowser creates the engine without launching it.
func NewPlaywrightBrowser(cfg BrowserConfig) *PlaywrightBrowser {
	cfg.applyDefaults()
	return &PlaywrightBrowser{cfg: cfg}
}

func (b *PlaywrightBrowser) ensure() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bctx != nil {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return eris.Wrap(err, "browser: start playwright")
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return eris.Wrap(err, "browser: launch chromium")
	}

	opts := playwright.BrowserNewContextOptions{
		Locale: playwright.String(b.cfg.Locale),
	}
	if b.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(b.cfg.UserAgent)
	}
	bctx, err := browser.NewContext(opts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return eris.Wrap(err, "browser: new context")
	}

	b.pw = pw
	b.browser = browser
	b.bctx = bctx
	zap.L().Info("headless browser launched", zap.Bool("headless", b.cfg.Headless))
	return nil
}

// Render navigates to the URL and returns the hydrated markup.
func (b *PlaywrightBrowser) Render(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "browser: context done")
	}
	if err := b.ensure(); err != nil {
		return "", err
	}

	page, err := b.bctx.NewPage()
	if err != nil {
		return "", eris.Wrap(err, "browser: new page")
	}
	defer func() { _ = page.Close() }()

	_, err = page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(b.cfg.NavTimeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return "", eris.Wrapf(err, "browser: goto %s", pageURL)
	}

	// Listing portals hydrate price and features client-side after load.
	page.WaitForTimeout(float64(b.cfg.SettleDelay.Milliseconds()))

	content, err := page.Content()
	if err != nil {
		return "", eris.Wrap(err, "browser: read content")
	}
	return content, nil
}

// Close shuts the engine down. Safe to call without a prior Render.
func (b *PlaywrightBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bctx != nil {
		_ = b.bctx.Close()
		b.bctx = nil
	}
	if b.browser != nil {
		_ = b.browser.Close()
		b.browser = nil
	}
	if b.pw != nil {
		err := b.pw.Stop()
		b.pw = nil
		return eris.Wrap(err, "browser: stop playwright")
	}
	return nil
}
