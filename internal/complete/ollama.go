package complete

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1"
	ollamaTemperature    = 0.1
)

// OllamaOption configures the Ollama backend.
type OllamaOption func(*OllamaBackend)

// WithBaseURL overrides the default Ollama address.
func WithBaseURL(url string) OllamaOption {
	return func(b *OllamaBackend) { b.baseURL = url }
}

// WithModel overrides the default model.
func WithModel(model string) OllamaOption {
	return func(b *OllamaBackend) { b.model = model }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) OllamaOption {
	return func(b *OllamaBackend) { b.http = hc }
}

// OllamaBackend talks to a local Ollama server via POST /api/generate.
type OllamaBackend struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewOllama creates an Ollama backend.
func NewOllama(opts ...OllamaOption) *OllamaBackend {
	b := &OllamaBackend{
		baseURL: defaultOllamaBaseURL,
		model:   defaultOllamaModel,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *OllamaBackend) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a single non-streaming generation request.
func (b *OllamaBackend) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   b.model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: ollamaTemperature},
	})
	if err != nil {
		return "", eris.Wrap(err, "ollama: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "ollama: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ollama: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "ollama: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("ollama: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", eris.Wrap(err, "ollama: unmarshal response")
	}
	return result.Response, nil
}
