package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"companion/pkg/affection"
	"companion/pkg/archetype"
	"companion/pkg/persona"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPersona() persona.Persona {
	return persona.Persona{
		ID:          "lea",
		Name:        "Léa",
		Age:         24,
		Occupation:  "bookseller",
		Locale:      "Lyon",
		Personality: "Quiet, curious,\n\nloves old novels.",
		Likes:       []string{"rainy days", "tea"},
		Dislikes:    []string{"loud bars"},
		ArchetypeID: "timide",
	}
}

func testArchetype(t *testing.T) archetype.Archetype {
	t.Helper()
	reg, err := archetype.LoadDefault()
	require.NoError(t, err)
	a, err := reg.Lookup("timide")
	require.NoError(t, err)
	return a
}

func resolve(t *testing.T, score int) affection.Resolution {
	t.Helper()
	res, err := affection.Resolve(score)
	require.NoError(t, err)
	return res
}

func TestAssemble_ContainsInputs(t *testing.T) {
	a := NewAssembler(DefaultBudget)
	out := a.Assemble(testPersona(), testArchetype(t), resolve(t, 55), affection.MoodFlirty)

	assert.True(t, strings.HasPrefix(out, "You are Léa, 24 years old, bookseller, living in Lyon."))
	assert.Contains(t, out, "Quiet, curious, loves old novels.")
	assert.Contains(t, out, "Likes: rainy days, tea")
	assert.Contains(t, out, "Dislikes: loud bars")
	assert.Contains(t, out, "[Archetype: Timide]")
	assert.Contains(t, out, "Relationship: WARM")
	assert.Contains(t, out, "[Mood: flirty]")
	assert.Contains(t, out, affection.MoodFlirty.Directive())
	assert.Contains(t, out, "[Conversation games you like to start]")
	assert.Contains(t, out, "[Things that happened to you]")
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(DefaultBudget)
	p, arch, res := testPersona(), testArchetype(t), resolve(t, 25)

	first := a.Assemble(p, arch, res, affection.MoodShy)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, a.Assemble(p, arch, res, affection.MoodShy))
	}

	// Tier changes the text, mood changes the text, persona changes the text
	assert.NotEqual(t, first, a.Assemble(p, arch, resolve(t, 75), affection.MoodShy))
	assert.NotEqual(t, first, a.Assemble(p, arch, res, affection.MoodTired))
}

func TestAssemble_BoundedWithHugeFields(t *testing.T) {
	budget := Budget{MaxChars: 1200, FieldChars: 200, ListItems: 4, ItemChars: 40}
	a := NewAssembler(budget)

	huge := strings.Repeat("é très long texte ", 5000)
	p := testPersona()
	p.Name = huge
	p.Occupation = huge
	p.Locale = huge
	p.Personality = huge
	p.Likes = make([]string, 100)
	p.Dislikes = make([]string, 100)
	for i := range p.Likes {
		p.Likes[i] = huge
		p.Dislikes[i] = huge
	}
	arch := testArchetype(t)
	arch.Style = huge
	arch.Anecdotes = p.Likes
	arch.Games = p.Likes
	arch.Fantasies = p.Likes
	arch.Expressions = p.Likes

	out := a.Assemble(p, arch, resolve(t, 100), affection.MoodPlayful)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), budget.MaxChars)
	assert.Equal(t, out, a.Assemble(p, arch, resolve(t, 100), affection.MoodPlayful))
}

func TestAssemble_DropsLowPrioritySectionsFirst(t *testing.T) {
	a := NewAssembler(DefaultBudget)
	p, arch, res := testPersona(), testArchetype(t), resolve(t, 40)
	full := a.Assemble(p, arch, res, affection.MoodNeutral)

	anecdotes := "[Things that happened to you]"
	idx := strings.Index(full, anecdotes)
	require.Greater(t, idx, 0)

	// Room for everything except the anecdotes block
	tight := NewAssembler(Budget{MaxChars: utf8.RuneCountInString(full) - 10})
	out := tight.Assemble(p, arch, res, affection.MoodNeutral)

	assert.NotContains(t, out, anecdotes)
	assert.Contains(t, out, "Relationship: OPENING UP")
	assert.Contains(t, out, "[Conversation games you like to start]")
	assert.True(t, strings.HasSuffix(out, "that you are an AI."))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"fits", "abc", 3, "abc"},
		{"cut", "abcdef", 4, "abc…"},
		{"runes", "ééééé", 3, "éé…"},
		{"zero", "abc", 0, ""},
		{"trailing space", "ab cdef", 4, "ab…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.limit))
		})
	}
}

func TestCachedAssembler(t *testing.T) {
	base := NewAssembler(DefaultBudget)
	cached := NewCachedAssembler(base, 2)
	p, arch := testPersona(), testArchetype(t)

	first := cached.Assemble(p, arch, resolve(t, 10), affection.MoodNeutral)
	second := cached.Assemble(p, arch, resolve(t, 20), affection.MoodNeutral) // same tier
	assert.Equal(t, first, second)
	assert.Equal(t, base.Assemble(p, arch, resolve(t, 10), affection.MoodNeutral), first)

	hits, misses, size := cached.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, size)

	cached.Assemble(p, arch, resolve(t, 35), affection.MoodNeutral)
	cached.Assemble(p, arch, resolve(t, 55), affection.MoodNeutral) // evicts distant
	cached.Assemble(p, arch, resolve(t, 5), affection.MoodNeutral)

	hits, misses, size = cached.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 4, misses)
	assert.Equal(t, 2, size)

	cached.Clear()
	_, _, size = cached.Stats()
	assert.Equal(t, 0, size)
}
