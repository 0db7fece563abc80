package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"companion/pkg/affection"
	"companion/pkg/archetype"
	"companion/pkg/config"
	"companion/pkg/persona"
	"companion/pkg/prompt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type configFunc func() *config.Config

func newArchetypesCommand(cfg configFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "archetypes",
		Short: "List the archetype catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := archetype.LoadWithOverrides(cfg().Archetypes.OverrideDir)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tALIASES")
			for _, id := range reg.IDs() {
				a, err := reg.Lookup(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Name, strings.Join(a.Aliases, ","))
			}
			return w.Flush()
		},
	}
}

func newTierCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tier <score>",
		Short: "Resolve an affection score to its tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("score must be an integer: %w", err)
			}
			res, err := affection.Resolve(score)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "score:        %d\n", res.Score)
			fmt.Fprintf(out, "tier:         %s\n", res.Tier)
			fmt.Fprintf(out, "explicitness: %d\n", res.Explicitness)
			fmt.Fprintf(out, "max photo:    %s\n", persona.MaxPhotoType(res.Explicitness))

			next, needed, ok, err := affection.Next(score)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(out, "next:         %s in %d points\n", next, needed)
			}
			return nil
		},
	}
}

func readPersonaFile(path string) (persona.Persona, error) {
	var p persona.Persona
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse persona file: %w", err)
	}
	return p, p.Validate()
}

func newPromptCommand(cfg configFunc) *cobra.Command {
	var personaFile, mood string
	var score int

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt for a persona at a given score",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPersonaFile(personaFile)
			if err != nil {
				return err
			}
			reg, err := archetype.LoadWithOverrides(cfg().Archetypes.OverrideDir)
			if err != nil {
				return err
			}
			arch, err := reg.Lookup(p.ArchetypeID)
			if err != nil {
				return err
			}
			res, err := affection.Resolve(score)
			if err != nil {
				return err
			}
			m, ok := affection.ParseMood(mood)
			if !ok {
				return fmt.Errorf("unknown mood %q", mood)
			}

			text := prompt.NewAssembler(cfg().Prompt).Assemble(p, arch, res, m)
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&personaFile, "persona-file", "", "persona YAML file")
	cmd.Flags().IntVar(&score, "score", 0, "affection score (0-100)")
	cmd.Flags().StringVar(&mood, "mood", "neutral", "current mood")
	cmd.MarkFlagRequired("persona-file")
	return cmd
}

func newIngestCommand(cfg configFunc) *cobra.Command {
	var personaID, photoType string

	cmd := &cobra.Command{
		Use:   "ingest <url>",
		Short: "Copy a generated image into durable storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := persona.ParsePhotoType(photoType)
			if err != nil {
				return err
			}
			ingester, err := newIngester(cfg(), nil)
			if err != nil {
				return err
			}
			res, err := ingester.Ingest(cmd.Context(), args[0], personaID, pt)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.PublicURL)
			if res.Deduplicated {
				fmt.Fprintln(cmd.ErrOrStderr(), "(already stored)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&personaID, "persona", "", "persona id")
	cmd.Flags().StringVar(&photoType, "type", "portrait", "photo type (portrait, suggestive, revealing, explicit)")
	cmd.MarkFlagRequired("persona")
	return cmd
}

func newPersonaCommand(cfg configFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage stored personas",
	}

	save := &cobra.Command{
		Use:   "save <file>",
		Short: "Validate a persona file and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPersonaFile(args[0])
			if err != nil {
				return err
			}
			rt, err := Build(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer rt.Close()
			if _, err := rt.Archetypes.Lookup(p.ArchetypeID); err != nil {
				return err
			}
			if err := rt.Store.SavePersona(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", p.ID, p.ArchetypeID)
			return nil
		},
	}
	cmd.AddCommand(save)
	return cmd
}
