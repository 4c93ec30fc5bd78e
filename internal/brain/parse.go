package brain

import (
	"encoding/json"
	"strings"

	"github.com/blockapps/kieren-clone/internal/core/domain"
)

// Length tiers for generated text.
const (
	ShortLimit = 280
	LongLimit  = 4000
)

// replyEnvelope is the single-line structured object the model is
// asked to produce in reply mode.
type replyEnvelope struct {
	Respond bool   `json:"respond"`
	Reply   string `json:"reply"`
}

// ParseReply applies the reply-mode parsing policy: parse the
// envelope if possible, otherwise treat any non-empty output as the
// reply text (the model is known to occasionally drop the envelope).
// Empty output means the model declined.
func ParseReply(raw string) domain.GenerationResult {
	content := stripFences(raw)
	if content == "" {
		return domain.GenerationResult{Raw: raw}
	}

	var env replyEnvelope
	if err := json.Unmarshal([]byte(content), &env); err == nil {
		if !env.Respond {
			return domain.GenerationResult{Raw: raw}
		}
		return domain.GenerationResult{
			ShouldRespond: true,
			Text:          strings.TrimSpace(env.Reply),
			Raw:           raw,
		}
	}

	return domain.GenerationResult{ShouldRespond: true, Text: content, Raw: raw}
}

// Truncate bounds s to limit runes, replacing the tail with an
// ellipsis when it would overflow. Limits too small to carry the
// ellipsis cut hard instead.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// stripFences removes a markdown code fence wrapper, which some
// models add around JSON output.
func stripFences(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
