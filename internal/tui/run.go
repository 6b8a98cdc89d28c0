package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/54b3r/infohub-go/internal/chat"
)

// Run starts the chat program in the alternate screen and blocks until the
// user quits or ctx is cancelled.
func Run(ctx context.Context, session *chat.Session, prober Prober, backend string) error {
	p := tea.NewProgram(
		New(ctx, session, prober, backend),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
