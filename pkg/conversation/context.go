package conversation

import (
	"sort"
	"strings"

	"companion/pkg/llm"
	"companion/pkg/persona"
)

// BuildContext returns at most maxTurns of the most recent turns in
// chronological order. Ties on timestamp keep insertion order (Seq, then
// position in the input). The input slice is left untouched.
func BuildContext(turns []persona.Turn, maxTurns int) []persona.Turn {
	if maxTurns <= 0 || len(turns) == 0 {
		return []persona.Turn{}
	}

	ordered := make([]persona.Turn, len(turns))
	copy(ordered, turns)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})

	if len(ordered) > maxTurns {
		ordered = ordered[len(ordered)-maxTurns:]
	}
	return ordered
}

// ToMessages prepends the system prompt and maps turns to chat roles.
func ToMessages(systemPrompt string, turns []persona.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, t := range turns {
		role := llm.RoleUser
		if t.Sender == persona.SenderPersona {
			role = llm.RoleAssistant
		}
		content := t.Text
		if t.MediaURL != "" {
			content = strings.TrimSpace(content + " [photo]")
		}
		messages = append(messages, llm.Message{Role: role, Content: content})
	}
	return messages
}
