package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/infohub-go/internal/chat"
	"github.com/54b3r/infohub-go/internal/client"
	"github.com/54b3r/infohub-go/internal/config"
	"github.com/54b3r/infohub-go/internal/logging"
	"github.com/54b3r/infohub-go/internal/tui"
)

// NewChatCmd constructs the `infohub chat` command, which opens the
// interactive terminal client against a running query service.
func NewChatCmd() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat client",
		Long: `Open an interactive terminal chat with a running InfoHub query service.

The backend address is resolved from, in order: --url, the secrets file
(--secrets, INFOHUB_SECRETS, ~/.infohub/secrets.yaml, key backend_url),
INFOHUB_BACKEND_URL, then http://localhost:8000.

Keys:
  enter      send the question
  ctrl+l     clear the conversation
  pgup/pgdn  scroll
  ctrl+c     quit

The terminal belongs to the UI, so logs go to INFOHUB_CHAT_LOG
(default: ~/.infohub/chat.log).

Examples:
  infohub chat
  infohub chat --url http://docs-qa.internal:8000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			baseURL, source, err := backendURL(backend)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			logPath, err := chatLogPath()
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			log, closeLog, err := logging.NewFile(logPath)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer func() { _ = closeLog() }()
			ctx = logging.WithLogger(ctx, log)

			log.Info("chat session starting",
				slog.String("backend", baseURL),
				slog.String("backend_source", string(source)),
			)

			c := client.New(baseURL)
			session := chat.NewSession(c, baseURL)

			if err := tui.Run(ctx, session, c, baseURL); err != nil {
				log.Error("chat session failed", slog.Any("error", err))
				return fmt.Errorf("chat: %w", err)
			}

			log.Info("chat session ended", slog.Int("messages", len(session.Messages())))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "url", "", "Query service base URL (overrides secrets file and INFOHUB_BACKEND_URL)")

	return cmd
}

// backendURL returns explicit when set, otherwise the address resolved from
// the secrets file and environment.
func backendURL(explicit string) (string, config.BackendSource, error) {
	if explicit != "" {
		return explicit, "flag", nil
	}
	return config.ResolveBackendURL(secretsPath)
}

// chatLogPath resolves INFOHUB_CHAT_LOG, defaulting to ~/.infohub/chat.log.
func chatLogPath() (string, error) {
	if p := config.EnvOr("INFOHUB_CHAT_LOG", ""); p != "" {
		return p, nil
	}
	dir, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chat.log"), nil
}
