package affection

import (
	"errors"
	"testing"

	apperrors "companion/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Boundaries(t *testing.T) {
	tests := []struct {
		score        int
		tier         Tier
		explicitness int
	}{
		{0, Distant, 0},
		{29, Distant, 0},
		{30, Opening, 1},
		{49, Opening, 1},
		{50, Warm, 2},
		{69, Warm, 2},
		{70, Unleashed, 3},
		{100, Unleashed, 3},
	}

	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			res, err := Resolve(tt.score)
			require.NoError(t, err)
			assert.Equal(t, tt.tier, res.Tier, "score %d", tt.score)
			assert.Equal(t, tt.explicitness, res.Explicitness, "score %d", tt.score)
			assert.NotEmpty(t, res.Directive)
		})
	}
}

func TestResolve_MonotonicAndTotal(t *testing.T) {
	prev := Distant
	for s := MinScore; s <= MaxScore; s++ {
		res, err := Resolve(s)
		require.NoError(t, err, "score %d", s)
		assert.GreaterOrEqual(t, res.Tier, prev, "tier went down at score %d", s)
		assert.Equal(t, int(res.Tier), res.Explicitness)
		prev = res.Tier
	}
}

func TestResolve_Deterministic(t *testing.T) {
	a, err := Resolve(55)
	require.NoError(t, err)
	b, err := Resolve(55)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResolve_OutOfRange(t *testing.T) {
	for _, s := range []int{-1, 101, -1000, 1 << 20} {
		_, err := Resolve(s)
		require.Error(t, err)

		var rangeErr *RangeError
		assert.True(t, errors.As(err, &rangeErr))
		assert.Equal(t, s, rangeErr.Score)
		assert.True(t, errors.Is(err, apperrors.ErrContractViolation))
	}
}

func TestNext(t *testing.T) {
	next, needed, ok, err := Next(25)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Opening, next)
	assert.Equal(t, 5, needed)

	_, _, ok, err = Next(85)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = Next(-3)
	assert.Error(t, err)
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name  string
		score int
		delta int
		want  int
	}{
		{"gain", 40, 5, 45},
		{"loss", 40, -5, 35},
		{"clamp top", 98, 10, 100},
		{"clamp bottom", 3, -10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyDelta(tt.score, tt.delta)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ApplyDelta(140, -50)
	assert.ErrorIs(t, err, apperrors.ErrContractViolation)
}

// Racing writers land 71 and 69; the resolver only tiers whatever value is
// finally read back.
func TestResolve_TimideScenario(t *testing.T) {
	res, err := Resolve(25)
	require.NoError(t, err)
	assert.Equal(t, Distant, res.Tier)
	assert.Equal(t, 0, res.Explicitness)

	res, err = Resolve(55)
	require.NoError(t, err)
	assert.Equal(t, Warm, res.Tier)
	assert.Equal(t, 2, res.Explicitness)

	for _, persisted := range []int{71, 69} {
		res, err = Resolve(persisted)
		require.NoError(t, err)
		if persisted == 71 {
			assert.Equal(t, Unleashed, res.Tier)
		} else {
			assert.Equal(t, Warm, res.Tier)
		}
	}
}

func TestParseMood(t *testing.T) {
	m, ok := ParseMood(" Flirty ")
	assert.True(t, ok)
	assert.Equal(t, MoodFlirty, m)

	m, ok = ParseMood("")
	assert.True(t, ok)
	assert.Equal(t, MoodNeutral, m)

	m, ok = ParseMood("furious")
	assert.False(t, ok)
	assert.Equal(t, MoodNeutral, m)

	assert.Equal(t, MoodNeutral.Directive(), Mood("bogus").Directive())
}
