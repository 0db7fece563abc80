package persona

import (
	"encoding/json"
	"errors"
	"testing"

	apperrors "companion/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPersona() Persona {
	return Persona{
		ID:          "lea",
		Name:        "Léa",
		Age:         24,
		Occupation:  "bookseller",
		Locale:      "Lyon",
		ArchetypeID: "timide",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Persona)
		field  string
	}{
		{"valid", func(p *Persona) {}, ""},
		{"missing id", func(p *Persona) { p.ID = " " }, "id"},
		{"dotted id", func(p *Persona) { p.ID = "marie.dupont" }, "id"},
		{"path id", func(p *Persona) { p.ID = "../lea" }, "id"},
		{"dashed id", func(p *Persona) { p.ID = "marie-dupont_2" }, ""},
		{"missing name", func(p *Persona) { p.Name = "" }, "name"},
		{"minor", func(p *Persona) { p.Age = 17 }, "age"},
		{"missing archetype", func(p *Persona) { p.ArchetypeID = "" }, "archetype_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPersona()
			tt.mutate(&p)
			err := p.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *apperrors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestParseSender(t *testing.T) {
	s, err := ParseSender("USER")
	require.NoError(t, err)
	assert.Equal(t, SenderUser, s)

	s, err = ParseSender("bot")
	require.NoError(t, err)
	assert.Equal(t, SenderPersona, s)

	_, err = ParseSender("narrator")
	assert.Error(t, err)
}

func TestSender_JSON(t *testing.T) {
	turn := Turn{PersonaID: "lea", UserID: "u1", Sender: SenderPersona, Text: "coucou"}
	data, err := json.Marshal(turn)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sender":"persona"`)

	var decoded Turn
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, SenderPersona, decoded.Sender)

	_, err = json.Marshal(Turn{Sender: Sender(9)})
	assert.Error(t, err)

	assert.Error(t, json.Unmarshal([]byte(`{"sender":"ghost"}`), &decoded))
}

func TestPhotoType_Gating(t *testing.T) {
	assert.True(t, PhotoPortrait.AllowedAt(0))
	assert.False(t, PhotoSuggestive.AllowedAt(0))
	assert.True(t, PhotoSuggestive.AllowedAt(1))
	assert.False(t, PhotoExplicit.AllowedAt(2))
	assert.True(t, PhotoExplicit.AllowedAt(3))
	assert.False(t, PhotoType(0).AllowedAt(3))

	assert.Equal(t, PhotoPortrait, MaxPhotoType(0))
	assert.Equal(t, PhotoRevealing, MaxPhotoType(2))
	assert.Equal(t, PhotoExplicit, MaxPhotoType(3))
}

func TestParsePhotoType(t *testing.T) {
	for _, p := range PhotoTypes() {
		parsed, err := ParsePhotoType(p.Slug())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := ParsePhotoType("nsfw")
	assert.Error(t, err)
	assert.Equal(t, "", PhotoType(42).Slug())
	assert.Equal(t, "photo(42)", PhotoType(42).String())
}
