package conversation

import (
	"testing"
	"time"

	"companion/pkg/llm"
	"companion/pkg/persona"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turnsAt(base time.Time, texts ...string) []persona.Turn {
	out := make([]persona.Turn, len(texts))
	for i, text := range texts {
		sender := persona.SenderUser
		if i%2 == 1 {
			sender = persona.SenderPersona
		}
		out[i] = persona.Turn{
			PersonaID: "lea",
			UserID:    "u1",
			Sender:    sender,
			Text:      text,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Seq:       int64(i),
		}
	}
	return out
}

func texts(turns []persona.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Text
	}
	return out
}

func TestBuildContext_LastN(t *testing.T) {
	turns := turnsAt(time.Unix(1700000000, 0), "t1", "t2", "t3", "t4", "t5")

	got := BuildContext(turns, 3)
	assert.Equal(t, []string{"t3", "t4", "t5"}, texts(got))

	// Window larger than history returns everything
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, texts(BuildContext(turns, 10)))

	assert.Empty(t, BuildContext(turns, 0))
	assert.Empty(t, BuildContext(nil, 3))
}

func TestBuildContext_SortsAndKeepsInputIntact(t *testing.T) {
	turns := turnsAt(time.Unix(1700000000, 0), "t1", "t2", "t3", "t4")
	shuffled := []persona.Turn{turns[2], turns[0], turns[3], turns[1]}

	got := BuildContext(shuffled, 2)
	assert.Equal(t, []string{"t3", "t4"}, texts(got))
	assert.Equal(t, "t3", shuffled[0].Text, "input must not be reordered")
}

func TestBuildContext_TimestampTies(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	turns := []persona.Turn{
		{Text: "b", Timestamp: ts, Seq: 2},
		{Text: "a", Timestamp: ts, Seq: 1},
		{Text: "c", Timestamp: ts, Seq: 2}, // same seq, input order wins
	}
	got := BuildContext(turns, 3)
	assert.Equal(t, []string{"a", "b", "c"}, texts(got))
}

func TestToMessages(t *testing.T) {
	turns := turnsAt(time.Unix(1700000000, 0), "salut", "coucou toi")
	msgs := ToMessages("system prompt", turns)

	require.Len(t, msgs, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "system prompt"}, msgs[0])
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "coucou toi", msgs[2].Content)
}

func TestToMessages_PhotoTurn(t *testing.T) {
	turns := turnsAt(time.Unix(1700000000, 0), "montre-moi", "")
	turns[1].MediaURL = "https://cdn.example.com/personas/lea/portrait/abc.jpg"

	msgs := ToMessages("system prompt", turns)
	require.Len(t, msgs, 3)
	assert.Equal(t, "[photo]", msgs[2].Content)
}
