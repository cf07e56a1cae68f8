package complete

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const anthropicSystemPrompt = "Sos un asistente que extrae datos estructurados de avisos inmobiliarios. Respondés únicamente con JSON válido, sin texto adicional."

// AnthropicBackend generates completions through the hosted Anthropic API.
type AnthropicBackend struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a backend for the given API key and model.
func NewAnthropic(apiKey, model string) *AnthropicBackend {
	return &AnthropicBackend{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 1024,
	}
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

// Generate sends the prompt as a single user message and returns the
// concatenated text blocks of the reply.
func (b *AnthropicBackend) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := b.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(b.model),
		MaxTokens:   b.maxTokens,
		Temperature: sdk.Float(0.1),
		System: []sdk.TextBlockParam{
			{Text: anthropicSystemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}
