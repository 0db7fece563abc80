package store

import (
	"context"
	"sort"
	"sync"

	"companion/pkg/affection"
	apperrors "companion/pkg/errors"
	"companion/pkg/persona"
)

type pairKey struct {
	userID    string
	personaID string
}

// MemoryStore keeps everything in process. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	personas  map[string]persona.Persona
	affection map[pairKey]persona.AffectionState
	turns     map[pairKey][]persona.Turn
	assets    map[string]persona.MediaAsset // by path
	seq       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		personas:  make(map[string]persona.Persona),
		affection: make(map[pairKey]persona.AffectionState),
		turns:     make(map[pairKey][]persona.Turn),
		assets:    make(map[string]persona.MediaAsset),
	}
}

func (m *MemoryStore) SavePersona(ctx context.Context, p persona.Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Likes = append([]string(nil), p.Likes...)
	p.Dislikes = append([]string(nil), p.Dislikes...)
	m.personas[p.ID] = p
	return nil
}

func (m *MemoryStore) GetPersona(ctx context.Context, id string) (*persona.Persona, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.personas[id]
	if !ok {
		return nil, &NotFoundError{Kind: "persona", ID: id}
	}
	return &p, nil
}

func (m *MemoryStore) GetAffection(ctx context.Context, userID, personaID string) (persona.AffectionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked(userID, personaID), nil
}

func (m *MemoryStore) stateLocked(userID, personaID string) persona.AffectionState {
	if st, ok := m.affection[pairKey{userID, personaID}]; ok {
		return st
	}
	return persona.AffectionState{UserID: userID, PersonaID: personaID, Mood: affection.MoodNeutral}
}

func (m *MemoryStore) ApplyAffectionDelta(ctx context.Context, userID, personaID string, delta int) (persona.AffectionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateLocked(userID, personaID)
	score, err := affection.ApplyDelta(st.Score, delta)
	if err != nil {
		return persona.AffectionState{}, err
	}
	st.Score = score
	m.affection[pairKey{userID, personaID}] = st
	return st, nil
}

func (m *MemoryStore) SetMood(ctx context.Context, userID, personaID string, mood affection.Mood) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateLocked(userID, personaID)
	st.Mood = mood
	m.affection[pairKey{userID, personaID}] = st
	return nil
}

func (m *MemoryStore) AppendTurn(ctx context.Context, turn persona.Turn) (persona.Turn, error) {
	if err := validateTurn(turn); err != nil {
		return persona.Turn{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	turn.Seq = m.seq
	key := pairKey{turn.UserID, turn.PersonaID}
	m.turns[key] = append(m.turns[key], turn)
	return turn, nil
}

func (m *MemoryStore) RecentTurns(ctx context.Context, userID, personaID string, limit int) ([]persona.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []persona.Turn{}, nil
	}
	all := append([]persona.Turn(nil), m.turns[pairKey{userID, personaID}]...)
	sortTurns(all)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *MemoryStore) RecordMediaAsset(ctx context.Context, asset persona.MediaAsset) error {
	if asset.Path == "" || asset.PublicURL == "" {
		return &apperrors.ValidationError{Field: "path", Value: asset.Path, Message: "asset needs a path and a public url"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[asset.Path]; !ok {
		m.assets[asset.Path] = asset
	}
	return nil
}

func (m *MemoryStore) MediaAssets(ctx context.Context, personaID string) ([]persona.MediaAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []persona.MediaAsset
	for _, a := range m.assets {
		if a.PersonaID == personaID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
