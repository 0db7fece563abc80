package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"companion/pkg/affection"
	apperrors "companion/pkg/errors"
	"companion/pkg/persona"
)

// Photo is a delivered image. Durable is false when ingestion failed and URL
// is the provider's short-lived link.
type Photo struct {
	URL       string
	SourceURL string
	Durable   bool
	PhotoType persona.PhotoType
	Asset     *persona.MediaAsset
	Turn      persona.Turn
}

var photoStyles = map[persona.PhotoType]string{
	persona.PhotoPortrait:   "casual portrait, fully clothed, natural light",
	persona.PhotoSuggestive: "flirty pose, fully clothed, soft light",
	persona.PhotoRevealing:  "swimwear or lingerie, tasteful boudoir lighting",
	persona.PhotoExplicit:   "intimate boudoir photo, artistic lighting",
}

func imagePrompt(p persona.Persona, photoType persona.PhotoType, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Photo of %s, a %d-year-old adult", p.Name, p.Age)
	if p.Occupation != "" {
		fmt.Fprintf(&b, " %s", p.Occupation)
	}
	fmt.Fprintf(&b, ". Style: %s.", photoStyles[photoType])
	if d := strings.TrimSpace(description); d != "" {
		fmt.Fprintf(&b, " Scene: %s.", d)
	}
	return b.String()
}

// SendPhoto generates a photo the current tier allows, stores it durably and
// records it as a persona turn. A failed ingestion degrades to the
// provider's URL; it never fails the call.
func (e *Engine) SendPhoto(ctx context.Context, userID, personaID string, photoType persona.PhotoType, description string) (*Photo, error) {
	if !photoType.Valid() {
		return nil, &apperrors.ValidationError{Field: "photo_type", Value: int(photoType), Message: "unknown photo type"}
	}
	// Checked before generating so a photo is never produced for an id
	// that cannot be stored
	if !persona.ValidID(personaID) {
		return nil, &apperrors.ValidationError{Field: "persona_id", Value: personaID, Message: "must match [a-zA-Z0-9_-]+"}
	}
	if e.images == nil {
		return nil, ErrImagesDisabled
	}

	rel, err := e.relationship(ctx, userID, personaID)
	if err != nil {
		return nil, err
	}
	if !photoType.AllowedAt(rel.resolution.Explicitness) {
		return nil, lockedError(photoType, rel)
	}

	sourceURL, err := e.images.GenerateImage(ctx, imagePrompt(*rel.persona, photoType, description))
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	photo := &Photo{URL: sourceURL, SourceURL: sourceURL, PhotoType: photoType}
	if e.ingester != nil {
		result, err := e.ingester.Ingest(ctx, sourceURL, personaID, photoType)
		switch {
		case err == nil:
			photo.URL = result.PublicURL
			photo.Durable = true
			asset := result.Asset
			photo.Asset = &asset
			if err := e.store.RecordMediaAsset(ctx, asset); err != nil {
				log.Printf("Error recording media asset %s: %v", asset.Path, err)
			}
		case errors.Is(err, apperrors.ErrFetchFailed), errors.Is(err, apperrors.ErrUploadFailed):
			log.Printf("Ingest failed for %s (%s), sending provider URL: %v", personaID, photoType, err)
		default:
			return nil, err
		}
	}

	turn, err := e.store.AppendTurn(ctx, persona.Turn{
		UserID:    userID,
		PersonaID: personaID,
		Sender:    persona.SenderPersona,
		MediaURL:  photo.URL,
		Timestamp: e.now(),
	})
	if err != nil {
		log.Printf("Error storing photo turn for %s/%s: %v", userID, personaID, err)
	} else {
		photo.Turn = turn
	}
	return photo, nil
}

func lockedError(photoType persona.PhotoType, rel *relationship) error {
	required := affection.Tier(photoType.Explicitness())
	needed := 0
	if threshold, ok := affection.Threshold(required); ok {
		needed = threshold - rel.state.Score
	}
	return &PhotoLockedError{
		PhotoType: photoType,
		Current:   rel.resolution.Tier,
		Required:  required,
		Needed:    needed,
	}
}

// UnlockedPhotoTypes lists what the pair can currently receive.
func (e *Engine) UnlockedPhotoTypes(ctx context.Context, userID, personaID string) ([]persona.PhotoType, error) {
	rel, err := e.relationship(ctx, userID, personaID)
	if err != nil {
		return nil, err
	}
	var out []persona.PhotoType
	for _, pt := range persona.PhotoTypes() {
		if pt.AllowedAt(rel.resolution.Explicitness) {
			out = append(out, pt)
		}
	}
	return out, nil
}
