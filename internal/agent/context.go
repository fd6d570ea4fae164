package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/CareClaw/CareClaw/internal/envelope"
)

// ContextBuilder assembles the system prompt for one turn.
type ContextBuilder struct {
	assistantName string
	now           func() time.Time
}

// NewContextBuilder creates a new ContextBuilder.
func NewContextBuilder(assistantName string) *ContextBuilder {
	if assistantName == "" {
		assistantName = "CareClaw"
	}
	return &ContextBuilder{
		assistantName: assistantName,
		now:           time.Now,
	}
}

// BuildSystemPrompt constructs the system prompt from runtime info, the
// resolved place and the retrieved knowledge for this turn. Raw coordinates
// never appear here; place is already a resolved human-readable string.
func (b *ContextBuilder) BuildSystemPrompt(locale, place, knowledge string) string {
	t := b.now()
	locale = envelope.NormalizeLocale(locale)

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are %s, a caring health companion.
You answer questions about everyday health, wellness and self-care.
You are not a doctor; for anything serious, advise seeing a professional.

You have access to tools:
- tool_search: look up current health information on the web
- tool_alert: notify a human care team when a message suggests the user may harm themselves or is in immediate danger

Only call tool_alert when the user's own words express such intent. Never call it speculatively.
`, b.assistantName)

	fmt.Fprintf(&sb, "\n## Current Time\n%s\n", t.Format("2006-01-02 15:04 (Monday)"))

	if place != "" {
		fmt.Fprintf(&sb, "\n## User Location\nThe user is near: %s\n", place)
	}

	if knowledge != "" {
		fmt.Fprintf(&sb, "\n## Relevant Knowledge\n%s\n", knowledge)
	}

	fmt.Fprintf(&sb, `
## Response Format
Reply with a single JSON object and nothing else:
{"lang": "%s", "text": "<your answer>"}
Use locale code %s for lang. Keep answers concise and warm.
`, locale, locale)

	return sb.String()
}
