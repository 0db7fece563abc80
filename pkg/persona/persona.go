package persona

import (
	"regexp"
	"strings"
	"time"

	"companion/pkg/affection"
	apperrors "companion/pkg/errors"
)

// MinAge is the youngest a persona may be. Explicit tiers exist, so every
// persona is an adult.
const MinAge = 18

// idPattern is the shape of a persona id. Ids end up as storage path
// segments and record keys.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidID reports whether id can name a persona.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Persona is a character users chat with. Shared read-only across users.
type Persona struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Age         int      `json:"age" yaml:"age"`
	Occupation  string   `json:"occupation" yaml:"occupation"`
	Locale      string   `json:"locale" yaml:"locale"`
	Personality string   `json:"personality" yaml:"personality"`
	Likes       []string `json:"likes" yaml:"likes"`
	Dislikes    []string `json:"dislikes" yaml:"dislikes"`
	ArchetypeID string   `json:"archetype_id" yaml:"archetype_id"`
	Custom      bool     `json:"custom" yaml:"custom"` // user-authored
}

// Validate checks the fields the engine relies on.
func (p Persona) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return &apperrors.ValidationError{Field: "id", Message: "required"}
	}
	if !ValidID(p.ID) {
		return &apperrors.ValidationError{Field: "id", Value: p.ID, Message: "must match [a-zA-Z0-9_-]+"}
	}
	if strings.TrimSpace(p.Name) == "" {
		return &apperrors.ValidationError{Field: "name", Message: "required"}
	}
	if p.Age < MinAge {
		return &apperrors.ValidationError{Field: "age", Value: p.Age, Message: "persona must be an adult"}
	}
	if strings.TrimSpace(p.ArchetypeID) == "" {
		return &apperrors.ValidationError{Field: "archetype_id", Message: "required"}
	}
	return nil
}

// AffectionState is owned by a single (user, persona) pair.
type AffectionState struct {
	UserID    string         `json:"user_id"`
	PersonaID string         `json:"persona_id"`
	Score     int            `json:"score"`
	Mood      affection.Mood `json:"mood"`
}

// Turn is one chat message. Append-only.
type Turn struct {
	PersonaID string    `json:"persona_id"`
	UserID    string    `json:"user_id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	MediaURL  string    `json:"media_url,omitempty"` // photo delivered with the turn
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"seq"` // insertion order, breaks timestamp ties
}

// MediaAsset references a durably stored photo.
type MediaAsset struct {
	PersonaID   string    `json:"persona_id"`
	PhotoType   PhotoType `json:"photo_type"`
	Fingerprint string    `json:"fingerprint"`
	Path        string    `json:"path"`
	PublicURL   string    `json:"public_url"`
	ContentType string    `json:"content_type"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Size        int64     `json:"size"`
}
