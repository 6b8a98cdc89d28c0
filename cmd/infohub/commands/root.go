// Package commands defines all Cobra CLI commands for the infohub binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/infohub-go/internal/audit"
	"github.com/54b3r/infohub-go/internal/config"
	"github.com/54b3r/infohub-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// secretsPath holds the --secrets flag value used to locate the backend URL.
var secretsPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "infohub",
		Short: "InfoHub: answers about LangChain, grounded in its documentation",
		Long: `InfoHub answers questions about LangChain by retrieving the most relevant
passages of its documentation and asking a language model to answer from them.

Run 'infohub serve' to start the query service, then 'infohub chat' for the
interactive terminal client or 'infohub ask' for one-shot questions.
'infohub ingest' builds the passage index the service searches.

Settings come from the environment, a .env file, or a YAML config file
(~/.infohub/config.yaml). Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.infohub/config.yaml)")
	root.PersistentFlags().StringVar(&secretsPath, "secrets", "", "Path to secrets file holding backend_url (default: ~/.infohub/secrets.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewChatCmd(),
		NewAskCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
