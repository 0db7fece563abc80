package cli

import (
	"log"
	"os"

	"companion/pkg/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the companion command tree.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	var cfg *config.Config

	root := &cobra.Command{
		Use:   "companion",
		Short: "Persona state and progressive disclosure engine",
		Long: `companion keeps per-user relationship state with AI personas, assembles
their system prompts and stores the photos they send.

Secrets (LLM_API_KEYS, SURREAL_DB_*, S3_*) are read from the environment or a
.env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env for secrets
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, relying on environment variables")
			}
			loaded, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			loaded.ApplyEnv()
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "config file")

	getConfig := func() *config.Config { return cfg }
	root.AddCommand(
		newArchetypesCommand(getConfig),
		newTierCommand(),
		newPromptCommand(getConfig),
		newIngestCommand(getConfig),
		newPersonaCommand(getConfig),
		newChatCommand(getConfig),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
