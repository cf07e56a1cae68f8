package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/propscout/propscout-cli/internal/complete"
	"github.com/propscout/propscout-cli/internal/fetch"
	"github.com/propscout/propscout-cli/internal/model"
	"github.com/propscout/propscout-cli/internal/sites"
	"github.com/propscout/propscout-cli/internal/store"
)

// parseStatusFlag accepts the ledger tags plus "unset" for unreviewed.
func parseStatusFlag(raw string) (model.Status, error) {
	if raw == "unset" {
		return model.StatusUnset, nil
	}
	status, ok := model.ParseStatus(raw)
	if !ok {
		return "", eris.Errorf("unknown status %q (want yes, no, maybe or unset)", raw)
	}
	return status, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadRegistry() (*sites.Registry, error) {
	return sites.LoadFile(cfg.Files.Sites)
}

func initFetcher() (*fetch.Fetcher, func()) {
	var browser fetch.Browser
	cleanup := func() {}

	if cfg.Browser.Enabled {
		pb := fetch.NewPlaywrightBrowser(fetch.BrowserConfig{
			Headless:    cfg.Browser.Headless,
			UserAgent:   cfg.Fetch.UserAgent,
			NavTimeout:  time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
			SettleDelay: time.Duration(cfg.Browser.SettleDelaySecs) * time.Second,
		})
		browser = pb
		cleanup = func() { _ = pb.Close() }
	}

	f := fetch.New(fetch.Config{
		Timeout:          time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		UserAgent:        cfg.Fetch.UserAgent,
		MinContentLength: cfg.Fetch.MinContentLength,
		RequestsPerSec:   cfg.Fetch.RequestsPerSec,
	}, browser)
	return f, cleanup
}

func initEngine() (*complete.Engine, error) {
	var backend complete.Backend
	switch cfg.Completion.Provider {
	case "ollama":
		backend = complete.NewOllama(
			complete.WithBaseURL(cfg.Completion.Ollama.BaseURL),
			complete.WithModel(cfg.Completion.Ollama.Model),
		)
	case "anthropic":
		backend = complete.NewAnthropic(cfg.Completion.Anthropic.Key, cfg.Completion.Anthropic.Model)
	default:
		return nil, eris.Errorf("unsupported completion provider: %s", cfg.Completion.Provider)
	}
	return complete.NewEngine(backend, cfg.Completion.MaxPageChars), nil
}
