package affection

import (
	"fmt"

	apperrors "companion/pkg/errors"
)

// ==========================================
// CONTENT TIERS
// ==========================================

// Tier is the discrete closeness level derived from an affection score.
// Tiers are ordered: Distant < Opening < Warm < Unleashed.
type Tier int

const (
	Distant Tier = iota
	Opening
	Warm
	Unleashed
)

const (
	MinScore = 0
	MaxScore = 100
)

func (t Tier) String() string {
	switch t {
	case Distant:
		return "distant"
	case Opening:
		return "opening"
	case Warm:
		return "warm"
	case Unleashed:
		return "unleashed"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// tierBand is a half-open score range [Min, Max). The last band also
// includes MaxScore.
type tierBand struct {
	Tier         Tier
	Min          int
	Max          int
	Explicitness int
	Directive    string
}

var tierBands = []tierBand{
	{
		Tier: Distant, Min: 0, Max: 30, Explicitness: 0,
		Directive: `Relationship: DISTANT
You barely know this person. Stay friendly and a little guarded. Light teasing only, nothing explicit.
Photos: only casual portraits. Politely deflect requests for anything more.`,
	},
	{
		Tier: Opening, Min: 30, Max: 50, Explicitness: 1,
		Directive: `Relationship: OPENING UP
You're starting to enjoy their company. Flirting is fine and you can be suggestive, but keep it clothed.
Photos: portraits and suggestive shots, never nude.`,
	},
	{
		Tier: Warm, Min: 50, Max: 70, Explicitness: 2,
		Directive: `Relationship: WARM
You trust them and the chemistry is real. Explicit talk is allowed when they lead there.
Photos: up to revealing shots with partial exposure.`,
	},
	{
		Tier: Unleashed, Min: 70, Max: MaxScore, Explicitness: 3,
		Directive: `Relationship: UNLEASHED
No walls left between you. Be as bold and explicit as your archetype allows.
Photos: every photo type is unlocked.`,
	},
}

// Resolution is the outcome of resolving a score.
type Resolution struct {
	Score        int
	Tier         Tier
	Explicitness int
	Directive    string
}

// RangeError is returned for scores outside [MinScore, MaxScore].
type RangeError struct {
	Score int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("affection score %d outside [%d,%d]", e.Score, MinScore, MaxScore)
}

func (e *RangeError) Unwrap() error {
	return apperrors.ErrContractViolation
}

// Resolve maps a score to its tier. Out-of-range scores are a caller bug and
// are reported, never clamped.
func Resolve(score int) (Resolution, error) {
	if score < MinScore || score > MaxScore {
		return Resolution{}, &RangeError{Score: score}
	}
	for _, b := range tierBands {
		if score >= b.Min && (score < b.Max || (b.Max == MaxScore && score == MaxScore)) {
			return Resolution{
				Score:        score,
				Tier:         b.Tier,
				Explicitness: b.Explicitness,
				Directive:    b.Directive,
			}, nil
		}
	}
	// Unreachable while tierBands covers [MinScore, MaxScore]
	return Resolution{}, &RangeError{Score: score}
}

// Threshold returns the lowest score belonging to t.
func Threshold(t Tier) (int, bool) {
	for _, b := range tierBands {
		if b.Tier == t {
			return b.Min, true
		}
	}
	return 0, false
}

// Next returns the tier after the one score resolves to and the points still
// needed to reach it. ok is false at the top tier.
func Next(score int) (next Tier, needed int, ok bool, err error) {
	res, err := Resolve(score)
	if err != nil {
		return 0, 0, false, err
	}
	if res.Tier == Unleashed {
		return Unleashed, 0, false, nil
	}
	lower, _ := Threshold(res.Tier + 1)
	return res.Tier + 1, lower - score, true, nil
}

// ApplyDelta adds delta to a valid score and clamps the result to
// [MinScore, MaxScore]. The incoming score must already be valid.
func ApplyDelta(score, delta int) (int, error) {
	if score < MinScore || score > MaxScore {
		return 0, &RangeError{Score: score}
	}
	next := score + delta
	if next < MinScore {
		next = MinScore
	}
	if next > MaxScore {
		next = MaxScore
	}
	return next, nil
}
