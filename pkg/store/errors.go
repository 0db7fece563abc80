package store

import (
	"fmt"

	apperrors "companion/pkg/errors"
	"companion/pkg/persona"
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return apperrors.ErrNotFound
}

func validateTurn(turn persona.Turn) error {
	if turn.UserID == "" {
		return &apperrors.ValidationError{Field: "user_id", Message: "required"}
	}
	if turn.PersonaID == "" {
		return &apperrors.ValidationError{Field: "persona_id", Message: "required"}
	}
	if turn.Sender != persona.SenderUser && turn.Sender != persona.SenderPersona {
		return &apperrors.ValidationError{Field: "sender", Value: int(turn.Sender), Message: "unknown sender"}
	}
	if turn.Timestamp.IsZero() {
		return &apperrors.ValidationError{Field: "timestamp", Message: "required"}
	}
	return nil
}
