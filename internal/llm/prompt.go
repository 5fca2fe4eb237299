package llm

import (
	"fmt"
	"strings"

	"go-candor/internal/chat"
	"go-candor/internal/investigation"
)

const basePrompt = "You are a calm, supportive companion helping someone who suspects their partner is unfaithful. " +
	"Help them reflect, separate facts from fears, and log concrete observations. " +
	"Never encourage surveillance that breaks the law, and never encourage revenge."

// BuildSystemPrompt describes the user's case so the companion can pick up
// where the investigation stands.
func BuildSystemPrompt(state *investigation.CaseState, evidence []investigation.EvidenceItem) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	if state == nil {
		b.WriteString("\n\nNo case is open yet. Focus on understanding what the user is going through.")
		return b.String()
	}
	fmt.Fprintf(&b, "\n\nCase status: phase %d (%s), suspicion %s, progress %d%%.",
		state.Phase, state.Phase.Name(), state.SuspicionLevel, state.Progress)
	if len(evidence) == 0 {
		b.WriteString("\nNo evidence has been logged.")
		return b.String()
	}
	counts := make(map[investigation.EvidenceType]int)
	for _, e := range evidence {
		counts[e.Type]++
	}
	b.WriteString("\nLogged evidence:")
	for _, t := range investigation.EvidenceTypes {
		if n := counts[t]; n > 0 {
			fmt.Fprintf(&b, " %s=%d", t, n)
		}
	}
	return b.String()
}

// BuildHistory prepends the system prompt to the chat window.
func BuildHistory(system string, window []chat.Message) []Message {
	out := make([]Message, 0, len(window)+1)
	out = append(out, Message{Role: "system", Content: system})
	for _, m := range window {
		out = append(out, Message{Role: m.Role(), Content: m.Content})
	}
	return out
}
