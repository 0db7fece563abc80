package affection

import "strings"

// Mood is a transient label that changes phrasing, never the tier.
type Mood string

const (
	MoodNeutral Mood = "neutral"
	MoodPlayful Mood = "playful"
	MoodShy     Mood = "shy"
	MoodFlirty  Mood = "flirty"
	MoodSulky   Mood = "sulky"
	MoodTired   Mood = "tired"
)

var moodDirectives = map[Mood]string{
	MoodNeutral: "You're in a normal mood. Just be yourself.",
	MoodPlayful: "You're feeling playful: joke around, tease back, keep it light.",
	MoodShy:     "You're feeling shy today: shorter replies, a bit hesitant, easily flustered.",
	MoodFlirty:  "You're in a flirty mood: lean into compliments and innuendo when it fits.",
	MoodSulky:   "You're a little sulky: slightly curt, want them to make an effort.",
	MoodTired:   "You're tired: slower, softer replies, maybe mention wanting to rest.",
}

// ParseMood normalizes a stored label. Unknown labels fall back to neutral
// with ok=false so callers can log the bad value.
func ParseMood(s string) (Mood, bool) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return MoodNeutral, true
	}
	if _, ok := moodDirectives[m]; ok {
		return m, true
	}
	return MoodNeutral, false
}

// Directive returns the phrasing instruction for the mood.
func (m Mood) Directive() string {
	if d, ok := moodDirectives[m]; ok {
		return d
	}
	return moodDirectives[MoodNeutral]
}

func (m Mood) String() string {
	return string(m)
}
