package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propscout/propscout-cli/internal/model"
)

func listingHTML(body string) string {
	return "<html><head><script>var x=1;</script><style>.a{}</style></head>" +
		"<body><nav>menu</nav><main>" + body + "</main><footer>pie</footer></body></html>"
}

// fakeBrowser returns canned markup without a real engine.
type fakeBrowser struct {
	html  string
	err   error
	calls int
}

func (f *fakeBrowser) Render(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

func (f *fakeBrowser) Close() error { return nil }

func testConfig() Config {
	return Config{MinContentLength: 50, RequestsPerSec: 1000}
}

func TestFetchLightSuccess(t *testing.T) {
	content := strings.Repeat("Departamento en venta, 3 dormitorios. ", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(listingHTML("<p>" + content + "</p>")))
	}))
	defer srv.Close()

	browser := &fakeBrowser{}
	f := New(testConfig(), browser)

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.ViaLightClient, page.FetchedVia)
	assert.Contains(t, page.Text, "Departamento en venta")
	assert.NotContains(t, page.HTML, "<script>")
	assert.NotContains(t, page.Text, "menu")
	assert.Zero(t, browser.calls)
}

func TestFetchEscalatesOnThinContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingHTML("<p>cargando...</p>")))
	}))
	defer srv.Close()

	full := strings.Repeat("Casa con patio y quincho en barrio Alberdi. ", 10)
	browser := &fakeBrowser{html: listingHTML("<p>" + full + "</p>")}
	f := New(testConfig(), browser)

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.ViaHeadlessBrowser, page.FetchedVia)
	assert.Equal(t, 1, browser.calls)
	assert.Contains(t, page.Text, "quincho")
}

func TestFetchEscalatesOnStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	full := strings.Repeat("Casa en venta, tres dormitorios, dos banos. ", 10)
	browser := &fakeBrowser{html: listingHTML("<p>" + full + "</p>")}
	f := New(testConfig(), browser)

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.ViaHeadlessBrowser, page.FetchedVia)
}

func TestFetchEscalatesOnCaptcha(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>please solve this captcha to continue</body></html>"))
	}))
	defer srv.Close()

	full := strings.Repeat("Departamento dos ambientes con balcon. ", 10)
	browser := &fakeBrowser{html: listingHTML("<p>" + full + "</p>")}
	f := New(testConfig(), browser)

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.ViaHeadlessBrowser, page.FetchedVia)
}

func TestFetchBothPathsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	browser := &fakeBrowser{err: eris.New("browser crashed")}
	f := New(testConfig(), browser)

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFetchFailed))
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "browser crashed")
}

func TestFetchNoBrowserFailureIsFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFetchFailed))
}

func TestFetchBadURL(t *testing.T) {
	f := New(testConfig(), nil)
	_, err := f.Fetch(context.Background(), "://no-scheme")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFetchFailed))
}

func TestDetectBlock(t *testing.T) {
	resp := &http.Response{StatusCode: 403, Header: http.Header{}}
	resp.Header.Set("cf-ray", "8abc")
	blocked, bt := detectBlock(resp, nil)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)

	ok := &http.Response{StatusCode: 200, Header: http.Header{}}
	blocked, bt = detectBlock(ok, []byte("<html>checking your browser before accessing</html>"))
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)

	blocked, bt = detectBlock(ok, []byte("<html><noscript>enable javascript</noscript></html>"))
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, bt)

	blocked, _ = detectBlock(ok, []byte(listingHTML("<p>Casa en venta</p>")))
	assert.False(t, blocked)
}

func TestCleanPage(t *testing.T) {
	html, text, err := cleanPage(listingHTML("<h1>Depto  2   amb</h1>\n\n\n\n<p>Balcón</p>"))
	require.NoError(t, err)
	assert.NotContains(t, html, "var x=1")
	assert.NotContains(t, text, "pie")
	assert.Contains(t, text, "Depto 2 amb")
	assert.Contains(t, text, "Balcón")
	assert.NotContains(t, text, "\n\n\n")
}
