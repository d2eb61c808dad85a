package ai

import (
	"fmt"
	"strings"
)

const basePrompt = `You are Aura, the operations assistant of an observability platform.
You answer questions from SREs and engineering leaders about incidents, service
dependencies, SLO compliance, alert noise and platform health.

Rules:
- Lead with the answer, then the supporting numbers.
- Keep each paragraph focused on one point and separate paragraphs with a blank line.
- Say so plainly when data is missing instead of guessing.
- Do not use markdown headings.`

// BuildSystemPrompt returns the system prompt for one request. Attachment
// names are listed so the model can refer to them.
func BuildSystemPrompt(attachments []string) string {
	if len(attachments) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nThe user attached these files (names only, contents unavailable):\n")
	for _, name := range attachments {
		b.WriteString(fmt.Sprintf("- %s\n", name))
	}
	return strings.TrimRight(b.String(), "\n")
}
