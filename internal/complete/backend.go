// Package complete fills the schema fields that pattern extraction left
// unresolved by asking a language model to read the listing text.
package complete

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrCompletion is returned when the model backend fails or its reply
// contains no usable JSON object.
var ErrCompletion = eris.New("complete: completion failed")

// Backend generates a raw model reply for a prompt. Implementations wrap
// one provider; the engine owns prompting and reply validation.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}
