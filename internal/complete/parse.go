package complete

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscout/propscout-cli/internal/model"
	"github.com/propscout/propscout-cli/internal/normalize"
)

// cleanJSON strips markdown fences and any chatter around the JSON object
// in a model reply. Returns "" when no object is present.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// parseReply decodes a model reply into typed fields. Only the requested
// fields survive: hallucinated keys are dropped, nulls are dropped, and
// values that cannot coerce to the field's type are dropped. Dropping is
// silent by design at the record level; a debug line keeps it observable.
func parseReply(raw string, requested []string) (model.FieldMap, error) {
	blob := cleanJSON(raw)
	if blob == "" {
		return nil, eris.Wrap(ErrCompletion, "reply has no json object")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(blob), &decoded); err != nil {
		return nil, eris.Wrapf(ErrCompletion, "reply json invalid: %s", err.Error())
	}

	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		want[name] = true
	}

	out := make(model.FieldMap, len(decoded))
	for key, val := range decoded {
		if !want[key] {
			zap.L().Debug("dropping unrequested field from reply", zap.String("field", key))
			continue
		}
		typed, ok := model.CoerceAny(key, val)
		if !ok && key == "antiguedad" {
			if s, isStr := val.(string); isStr {
				if years, aok := normalize.Antiguedad(s); aok {
					typed, ok = years, true
				}
			}
		}
		if !ok {
			zap.L().Debug("dropping uncoercible field from reply",
				zap.String("field", key), zap.Any("value", val))
			continue
		}
		out[key] = typed
	}
	return out, nil
}
