package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"companion/pkg/affection"
	"companion/pkg/engine"
	apperrors "companion/pkg/errors"
	"companion/pkg/persona"

	"github.com/spf13/cobra"
)

func newChatCommand(cfg configFunc) *cobra.Command {
	var personaID, personaFile, userID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a persona in the terminal",
		Long: `Chat with a persona in the terminal.

Lines starting with a slash are commands:
  /photo <type> [scene]   ask for a photo
  /affection <delta>      adjust the affection score
  /mood <mood>            set the persona's mood
  /status                 show tier and unlocked photos
  /quit                   leave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := Build(ctx, cfg())
			if err != nil {
				return err
			}
			defer rt.Close()

			if personaFile != "" {
				p, err := readPersonaFile(personaFile)
				if err != nil {
					return err
				}
				if err := rt.Store.SavePersona(ctx, p); err != nil {
					return err
				}
				personaID = p.ID
			}
			if personaID == "" {
				return &apperrors.ValidationError{Field: "persona", Message: "--persona or --persona-file is required"}
			}
			if userID == "" {
				userID = os.Getenv("USER")
			}
			if userID == "" {
				userID = "local"
			}

			s := &chatSession{engine: rt.Engine, userID: userID, personaID: personaID, out: cmd.OutOrStdout()}
			return s.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&personaID, "persona", "", "stored persona id")
	cmd.Flags().StringVar(&personaFile, "persona-file", "", "persona YAML file, saved before chatting")
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to $USER)")
	return cmd
}

// chatEngine is the part of the engine the terminal session drives.
type chatEngine interface {
	Chat(ctx context.Context, userID, personaID, text string) (*engine.Reply, error)
	SendPhoto(ctx context.Context, userID, personaID string, photoType persona.PhotoType, description string) (*engine.Photo, error)
	AdjustAffection(ctx context.Context, userID, personaID string, delta int) (*engine.AffectionChange, error)
	SetMood(ctx context.Context, userID, personaID, mood string) (affection.Mood, error)
	Prepare(ctx context.Context, userID, personaID string) (*engine.Prepared, error)
	UnlockedPhotoTypes(ctx context.Context, userID, personaID string) ([]persona.PhotoType, error)
}

type chatSession struct {
	engine    chatEngine
	userID    string
	personaID string
	out       io.Writer
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	prepared, err := s.engine.Prepare(ctx, s.userID, s.personaID)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Chatting with %s (%s, tier %s). /quit to leave.\n", prepared.Persona.Name, prepared.Archetype.Name, prepared.Resolution.Tier)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if err := s.handle(ctx, line); err != nil {
			return err
		}
	}
}

// handle processes one line. Only errors that make the session unusable are
// returned; everything else is printed.
func (s *chatSession) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		reply, err := s.engine.Chat(ctx, s.userID, s.personaID, line)
		if errors.Is(err, engine.ErrReplyUnavailable) {
			fmt.Fprintln(s.out, "(no reply this time, try again)")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, reply.Text)
		return nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/photo":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, "usage: /photo <type> [scene]")
			return nil
		}
		pt, err := persona.ParsePhotoType(fields[1])
		if err != nil {
			fmt.Fprintln(s.out, err)
			return nil
		}
		photo, err := s.engine.SendPhoto(ctx, s.userID, s.personaID, pt, strings.Join(fields[2:], " "))
		var locked *engine.PhotoLockedError
		switch {
		case errors.As(err, &locked):
			fmt.Fprintf(s.out, "(locked: %v)\n", locked)
		case errors.Is(err, engine.ErrImagesDisabled):
			fmt.Fprintln(s.out, "(photos are not configured)")
		case err != nil:
			fmt.Fprintf(s.out, "(photo failed: %v)\n", err)
		default:
			suffix := ""
			if !photo.Durable {
				suffix = " (temporary link)"
			}
			fmt.Fprintf(s.out, "[photo] %s%s\n", photo.URL, suffix)
		}

	case "/affection":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: /affection <delta>")
			return nil
		}
		delta, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintln(s.out, "delta must be an integer")
			return nil
		}
		change, err := s.engine.AdjustAffection(ctx, s.userID, s.personaID, delta)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "affection %d -> %d (%s)\n", change.Before.Score, change.After.Score, change.After.Tier)

	case "/mood":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: /mood <mood>")
			return nil
		}
		mood, err := s.engine.SetMood(ctx, s.userID, s.personaID, fields[1])
		if errors.Is(err, apperrors.ErrInvalidInput) {
			fmt.Fprintln(s.out, err)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "mood set to %s\n", mood)

	case "/status":
		prepared, err := s.engine.Prepare(ctx, s.userID, s.personaID)
		if err != nil {
			return err
		}
		types, err := s.engine.UnlockedPhotoTypes(ctx, s.userID, s.personaID)
		if err != nil {
			return err
		}
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = t.Slug()
		}
		fmt.Fprintf(s.out, "score %d, tier %s, mood %s, photos: %s\n",
			prepared.State.Score, prepared.Resolution.Tier, prepared.State.Mood, strings.Join(names, ", "))

	default:
		fmt.Fprintf(s.out, "unknown command %s\n", fields[0])
	}
	return nil
}
