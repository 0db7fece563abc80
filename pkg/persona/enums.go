package persona

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sender identifies who wrote a turn.
type Sender int

const (
	SenderUser Sender = iota + 1
	SenderPersona
)

func (s Sender) String() string {
	switch s {
	case SenderUser:
		return "user"
	case SenderPersona:
		return "persona"
	default:
		return fmt.Sprintf("sender(%d)", int(s))
	}
}

// ParseSender accepts the stored labels, including the legacy "bot" alias.
func ParseSender(s string) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return SenderUser, nil
	case "persona", "bot", "assistant":
		return SenderPersona, nil
	default:
		return 0, fmt.Errorf("unknown sender %q", s)
	}
}

func (s Sender) MarshalJSON() ([]byte, error) {
	if s != SenderUser && s != SenderPersona {
		return nil, fmt.Errorf("invalid sender %d", int(s))
	}
	return json.Marshal(s.String())
}

func (s *Sender) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSender(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// PhotoType classifies a photo by how explicit it is.
type PhotoType int

const (
	PhotoPortrait PhotoType = iota + 1
	PhotoSuggestive
	PhotoRevealing
	PhotoExplicit
)

var photoSlugs = map[PhotoType]string{
	PhotoPortrait:   "portrait",
	PhotoSuggestive: "suggestive",
	PhotoRevealing:  "revealing",
	PhotoExplicit:   "explicit",
}

// PhotoTypes lists every photo type, least explicit first.
func PhotoTypes() []PhotoType {
	return []PhotoType{PhotoPortrait, PhotoSuggestive, PhotoRevealing, PhotoExplicit}
}

// Slug is the stable label used in storage paths and records.
func (p PhotoType) Slug() string {
	if s, ok := photoSlugs[p]; ok {
		return s
	}
	return ""
}

func (p PhotoType) String() string {
	if s := p.Slug(); s != "" {
		return s
	}
	return fmt.Sprintf("photo(%d)", int(p))
}

// Valid reports whether p is one of the declared photo types.
func (p PhotoType) Valid() bool {
	_, ok := photoSlugs[p]
	return ok
}

// Explicitness is the ordinal (0..3) a tier must allow before this photo
// type unlocks.
func (p PhotoType) Explicitness() int {
	return int(p) - 1
}

// AllowedAt reports whether p unlocks at the given tier explicitness.
func (p PhotoType) AllowedAt(explicitness int) bool {
	return p.Valid() && p.Explicitness() <= explicitness
}

// MaxPhotoType returns the most explicit photo type unlocked at explicitness.
func MaxPhotoType(explicitness int) PhotoType {
	best := PhotoPortrait
	for _, p := range PhotoTypes() {
		if p.AllowedAt(explicitness) {
			best = p
		}
	}
	return best
}

// ParsePhotoType maps a slug back to its type.
func ParsePhotoType(s string) (PhotoType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, slug := range photoSlugs {
		if slug == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown photo type %q", s)
}

func (p PhotoType) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid photo type %d", int(p))
	}
	return json.Marshal(p.Slug())
}

func (p *PhotoType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePhotoType(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
