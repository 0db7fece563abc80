package store

import (
	"context"

	"companion/pkg/affection"
	"companion/pkg/persona"
)

// Store persists personas and per-(user, persona) relationship state.
type Store interface {
	SavePersona(ctx context.Context, p persona.Persona) error
	GetPersona(ctx context.Context, id string) (*persona.Persona, error)

	// GetAffection returns score 0 and a neutral mood for a pair with no
	// history yet.
	GetAffection(ctx context.Context, userID, personaID string) (persona.AffectionState, error)
	// ApplyAffectionDelta adds delta to the stored score and clamps it into
	// [affection.MinScore, affection.MaxScore] in a single write.
	ApplyAffectionDelta(ctx context.Context, userID, personaID string, delta int) (persona.AffectionState, error)
	SetMood(ctx context.Context, userID, personaID string, mood affection.Mood) error

	// AppendTurn stores a turn and returns it with its sequence assigned.
	AppendTurn(ctx context.Context, turn persona.Turn) (persona.Turn, error)
	// RecentTurns returns at most limit of the latest turns, oldest first.
	RecentTurns(ctx context.Context, userID, personaID string, limit int) ([]persona.Turn, error)

	RecordMediaAsset(ctx context.Context, asset persona.MediaAsset) error
	MediaAssets(ctx context.Context, personaID string) ([]persona.MediaAsset, error)
}
