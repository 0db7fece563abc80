package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"companion/pkg/affection"
	"companion/pkg/archetype"
	"companion/pkg/conversation"
	apperrors "companion/pkg/errors"
	"companion/pkg/llm"
	"companion/pkg/media"
	"companion/pkg/persona"
	"companion/pkg/prompt"
	"companion/pkg/store"
)

type ChatModel interface {
	Reply(ctx context.Context, messages []llm.Message) (string, error)
}

// ImageGenerator returns a provider-hosted, short-lived image URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type Ingester interface {
	Ingest(ctx context.Context, sourceURL, personaID string, photoType persona.PhotoType) (*media.Result, error)
}

type Options struct {
	MaxTurns int
	Now      func() time.Time
}

// Engine runs one conversation turn end to end: state lookup, tier
// resolution, prompt assembly, context building and the model call.
type Engine struct {
	archetypes *archetype.Registry
	prompts    *prompt.CachedAssembler
	store      store.Store
	chat       ChatModel
	images     ImageGenerator
	ingester   Ingester
	maxTurns   int
	now        func() time.Time
}

// New wires an engine. images and ingester may be nil; photos are then
// unavailable or delivered without durable storage respectively.
func New(archetypes *archetype.Registry, prompts *prompt.CachedAssembler, st store.Store, chat ChatModel, images ImageGenerator, ingester Ingester, opts Options) *Engine {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		archetypes: archetypes,
		prompts:    prompts,
		store:      st,
		chat:       chat,
		images:     images,
		ingester:   ingester,
		maxTurns:   opts.MaxTurns,
		now:        opts.Now,
	}
}

// Prepared is everything needed to ask the model for the next reply.
type Prepared struct {
	Persona      persona.Persona
	Archetype    archetype.Archetype
	State        persona.AffectionState
	Resolution   affection.Resolution
	SystemPrompt string
	History      []persona.Turn
	Messages     []llm.Message
}

type relationship struct {
	persona    *persona.Persona
	archetype  archetype.Archetype
	state      persona.AffectionState
	resolution affection.Resolution
}

func (e *Engine) relationship(ctx context.Context, userID, personaID string) (*relationship, error) {
	p, err := e.store.GetPersona(ctx, personaID)
	if err != nil {
		return nil, err
	}
	arch, err := e.archetypes.Lookup(p.ArchetypeID)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", p.ID, err)
	}
	state, err := e.store.GetAffection(ctx, userID, personaID)
	if err != nil {
		return nil, err
	}
	res, err := affection.Resolve(state.Score)
	if err != nil {
		return nil, fmt.Errorf("affection for %s/%s: %w", userID, personaID, err)
	}
	return &relationship{persona: p, archetype: arch, state: state, resolution: res}, nil
}

// Prepare loads state and builds the model input for the pair.
func (e *Engine) Prepare(ctx context.Context, userID, personaID string) (*Prepared, error) {
	rel, err := e.relationship(ctx, userID, personaID)
	if err != nil {
		return nil, err
	}

	system := e.prompts.Assemble(*rel.persona, rel.archetype, rel.resolution, rel.state.Mood)

	turns, err := e.store.RecentTurns(ctx, userID, personaID, e.maxTurns)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	history := conversation.BuildContext(turns, e.maxTurns)

	return &Prepared{
		Persona:      *rel.persona,
		Archetype:    rel.archetype,
		State:        rel.state,
		Resolution:   rel.resolution,
		SystemPrompt: system,
		History:      history,
		Messages:     conversation.ToMessages(system, history),
	}, nil
}

type Reply struct {
	Text        string
	UserTurn    persona.Turn
	PersonaTurn persona.Turn
	Resolution  affection.Resolution
	Mood        affection.Mood
}

// Chat stores the user's message, asks the model and stores its answer.
func (e *Engine) Chat(ctx context.Context, userID, personaID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &apperrors.ValidationError{Field: "text", Message: "empty message"}
	}

	prepared, err := e.Prepare(ctx, userID, personaID)
	if err != nil {
		return nil, err
	}

	userTurn, err := e.store.AppendTurn(ctx, persona.Turn{
		UserID:    userID,
		PersonaID: personaID,
		Sender:    persona.SenderUser,
		Text:      text,
		Timestamp: e.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store user turn: %w", err)
	}

	history := conversation.BuildContext(append(prepared.History, userTurn), e.maxTurns)
	answer, err := e.chat.Reply(ctx, conversation.ToMessages(prepared.SystemPrompt, history))
	if err != nil {
		log.Printf("Reply failed for %s/%s: %v", userID, personaID, err)
		return nil, fmt.Errorf("%w: %w", ErrReplyUnavailable, err)
	}
	if answer == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrReplyUnavailable)
	}

	personaTurn, err := e.store.AppendTurn(ctx, persona.Turn{
		UserID:    userID,
		PersonaID: personaID,
		Sender:    persona.SenderPersona,
		Text:      answer,
		Timestamp: e.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store reply: %w", err)
	}

	return &Reply{
		Text:        answer,
		UserTurn:    userTurn,
		PersonaTurn: personaTurn,
		Resolution:  prepared.Resolution,
		Mood:        prepared.State.Mood,
	}, nil
}

// AffectionChange reports a score update and whether it crossed a tier.
type AffectionChange struct {
	Before      affection.Resolution
	After       affection.Resolution
	TierChanged bool
}

// AdjustAffection applies a delta decided by the caller. The score is
// clamped by the store, never here.
func (e *Engine) AdjustAffection(ctx context.Context, userID, personaID string, delta int) (*AffectionChange, error) {
	if _, err := e.store.GetPersona(ctx, personaID); err != nil {
		return nil, err
	}
	before, err := e.store.GetAffection(ctx, userID, personaID)
	if err != nil {
		return nil, err
	}
	beforeRes, err := affection.Resolve(before.Score)
	if err != nil {
		return nil, err
	}

	after, err := e.store.ApplyAffectionDelta(ctx, userID, personaID, delta)
	if err != nil {
		return nil, err
	}
	afterRes, err := affection.Resolve(after.Score)
	if err != nil {
		return nil, err
	}

	change := &AffectionChange{Before: beforeRes, After: afterRes, TierChanged: beforeRes.Tier != afterRes.Tier}
	if change.TierChanged {
		log.Printf("Tier change for %s/%s: %s -> %s (score %d)", userID, personaID, beforeRes.Tier, afterRes.Tier, after.Score)
	}
	return change, nil
}

// SetMood records a mood. Unknown labels are rejected here; on read they
// fall back to neutral.
func (e *Engine) SetMood(ctx context.Context, userID, personaID, mood string) (affection.Mood, error) {
	m, ok := affection.ParseMood(mood)
	if !ok {
		return "", &apperrors.ValidationError{Field: "mood", Value: mood, Message: "unknown mood"}
	}
	if _, err := e.store.GetPersona(ctx, personaID); err != nil {
		return "", err
	}
	if err := e.store.SetMood(ctx, userID, personaID, m); err != nil {
		return "", err
	}
	return m, nil
}
