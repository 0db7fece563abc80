package engine

import (
	"errors"
	"fmt"

	"companion/pkg/affection"
	"companion/pkg/persona"
)

var (
	// ErrReplyUnavailable means the model could not answer this turn. The
	// user turn is already stored, so a retry continues the conversation.
	ErrReplyUnavailable = errors.New("reply unavailable")

	ErrPhotoLocked = errors.New("photo locked")

	ErrImagesDisabled = errors.New("image generation not configured")
)

// PhotoLockedError is returned when the relationship tier does not allow the
// requested photo type yet.
type PhotoLockedError struct {
	PhotoType persona.PhotoType
	Current   affection.Tier
	Required  affection.Tier
	Needed    int // points still missing
}

func (e *PhotoLockedError) Error() string {
	return fmt.Sprintf("%s photos unlock at tier %s (currently %s, %d points to go)", e.PhotoType, e.Required, e.Current, e.Needed)
}

func (e *PhotoLockedError) Unwrap() error {
	return ErrPhotoLocked
}
